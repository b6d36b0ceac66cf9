package paper

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftbot/internal/domain"
	"github.com/driftline/driftbot/internal/state"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestExchange() *Exchange {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExchange(state.NewMarket("BTCUSDT", 64), logger)
}

func place(x *Exchange, side domain.Side, price, qty string) domain.OrderID {
	out := x.Place(domain.PlaceOrder{
		Symbol: "BTCUSDT",
		Side:   side,
		Price:  dec(price),
		Qty:    dec(qty),
	})
	if out.Status != domain.OutcomeAccepted {
		panic("place rejected: " + out.Reason)
	}
	return out.OrderID
}

func trade(side domain.Side, price, qty string) domain.Trade {
	return domain.Trade{
		Symbol: "BTCUSDT",
		Side:   side,
		Price:  dec(price),
		Qty:    dec(qty),
		Time:   time.Now(),
	}
}

func TestExchange_FullFill(t *testing.T) {
	x := newTestExchange()
	id := place(x, domain.SideBuy, "50000", "10")

	x.Apply(trade(domain.SideSell, "50000", "10"))

	require.NoError(t, x.Err())
	assert.Empty(t, x.OpenOrders(), "fully filled order must leave the book")
	assert.True(t, x.Market().Position().Net().Equal(dec("10")))
	_ = id
}

func TestExchange_PartialFill(t *testing.T) {
	x := newTestExchange()
	id := place(x, domain.SideBuy, "50000", "10")

	x.Apply(trade(domain.SideSell, "50000", "4"))

	require.NoError(t, x.Err())
	open := x.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, id, open[0].ID)
	assert.Equal(t, domain.OrderStatusPartiallyFilled, open[0].Status())
	assert.True(t, open[0].Remaining().Equal(dec("6")))
	assert.True(t, x.Market().Position().Net().Equal(dec("4")))
}

func TestExchange_PriceTimePriority(t *testing.T) {
	x := newTestExchange()
	a := place(x, domain.SideBuy, "50000", "5")
	b := place(x, domain.SideBuy, "50000", "5")

	// Trade for 5 fills only the earlier order at the level.
	x.Apply(trade(domain.SideSell, "50000", "5"))

	require.NoError(t, x.Err())
	open := x.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, b, open[0].ID)
	assert.True(t, open[0].Remaining().Equal(dec("5")))
	_ = a
}

func TestExchange_BetterPricedLevelFillsFirst(t *testing.T) {
	x := newTestExchange()
	worse := place(x, domain.SideBuy, "49990", "5")
	better := place(x, domain.SideBuy, "50000", "5")

	// Both levels cross a sell at 49990; the higher bid fills first.
	x.Apply(trade(domain.SideSell, "49990", "5"))

	require.NoError(t, x.Err())
	open := x.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, worse, open[0].ID)
	_ = better
}

func TestExchange_NonCrossingTradeFillsNothing(t *testing.T) {
	x := newTestExchange()
	place(x, domain.SideBuy, "49000", "5")

	x.Apply(trade(domain.SideSell, "50000", "5"))

	require.NoError(t, x.Err())
	require.Len(t, x.OpenOrders(), 1)
	assert.True(t, x.Market().Position().Flat())
}

func TestExchange_TradeSpansBothSides(t *testing.T) {
	x := newTestExchange()
	place(x, domain.SideBuy, "50000", "3")
	place(x, domain.SideSell, "50000", "3")

	x.Apply(trade(domain.SideSell, "50000", "6"))

	require.NoError(t, x.Err())
	assert.Empty(t, x.OpenOrders())
	// Buy 3 and sell 3 at the same price nets out flat.
	assert.True(t, x.Market().Position().Flat())
}

func TestExchange_Cancel(t *testing.T) {
	x := newTestExchange()
	id := place(x, domain.SideBuy, "50000", "5")

	out := x.Cancel(domain.CancelOrder{Symbol: "BTCUSDT", OrderID: id})
	assert.Equal(t, domain.OutcomeAccepted, out.Status)
	assert.Empty(t, x.OpenOrders())

	// Cancelling again is a rejection, never an invariant violation.
	out = x.Cancel(domain.CancelOrder{Symbol: "BTCUSDT", OrderID: id})
	assert.Equal(t, domain.OutcomeRejected, out.Status)
	assert.NoError(t, x.Err())
}

func TestExchange_CancelledOrderNeverFills(t *testing.T) {
	x := newTestExchange()
	id := place(x, domain.SideBuy, "50000", "5")
	x.Cancel(domain.CancelOrder{Symbol: "BTCUSDT", OrderID: id})

	x.Apply(trade(domain.SideSell, "50000", "5"))

	require.NoError(t, x.Err())
	assert.True(t, x.Market().Position().Flat())
}

func TestExchange_ModifyQty(t *testing.T) {
	x := newTestExchange()
	id := place(x, domain.SideBuy, "50000", "10")
	x.Apply(trade(domain.SideSell, "50000", "4"))

	// Shrinking below the filled quantity is rejected.
	out := x.Modify(domain.ModifyOrder{Symbol: "BTCUSDT", OrderID: id, NewQty: dec("2")})
	assert.Equal(t, domain.OutcomeRejected, out.Status)

	out = x.Modify(domain.ModifyOrder{Symbol: "BTCUSDT", OrderID: id, NewQty: dec("6")})
	require.Equal(t, domain.OutcomeAccepted, out.Status)
	open := x.OpenOrders()
	require.Len(t, open, 1)
	assert.True(t, open[0].Remaining().Equal(dec("2")))
}

func TestExchange_ModifyQtyToFilledRejected(t *testing.T) {
	x := newTestExchange()
	id := place(x, domain.SideBuy, "50000", "10")
	x.Apply(trade(domain.SideSell, "50000", "4"))

	// Shrinking to exactly the filled quantity would turn the order
	// terminal while it still rests; that must be rejected.
	out := x.Modify(domain.ModifyOrder{Symbol: "BTCUSDT", OrderID: id, NewQty: dec("4")})
	assert.Equal(t, domain.OutcomeRejected, out.Status)

	require.NoError(t, x.Err())
	open := x.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, domain.OrderStatusPartiallyFilled, open[0].Status())
	assert.True(t, open[0].Remaining().Equal(dec("6")))
	for _, o := range open {
		assert.False(t, o.Terminal(), "no terminal order may rest on the book")
	}
}

func TestExchange_ModifyPriceForfeitsPriority(t *testing.T) {
	x := newTestExchange()
	a := place(x, domain.SideBuy, "50000", "5")
	b := place(x, domain.SideBuy, "49990", "5")

	// Move b up to a's level: it must queue behind a.
	out := x.Modify(domain.ModifyOrder{Symbol: "BTCUSDT", OrderID: b, NewPrice: dec("50000")})
	require.Equal(t, domain.OutcomeAccepted, out.Status)

	x.Apply(trade(domain.SideSell, "50000", "5"))

	require.NoError(t, x.Err())
	open := x.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, b, open[0].ID)
	_ = a
}

func TestExchange_PlaceCrossingBookFillsImmediately(t *testing.T) {
	x := newTestExchange()
	x.Apply(domain.BookSnapshot{
		Symbol: "BTCUSDT",
		Bids:   []domain.BookLevel{{Price: dec("49990"), Qty: dec("5")}},
		Asks: []domain.BookLevel{
			{Price: dec("50010"), Qty: dec("2")},
			{Price: dec("50020"), Qty: dec("2")},
		},
		Time: time.Now(),
	})

	// A buy limit at 50015 crosses the best ask and takes its 2, leaving 1
	// resting at the limit.
	place(x, domain.SideBuy, "50015", "3")

	require.NoError(t, x.Err())
	open := x.OpenOrders()
	require.Len(t, open, 1)
	assert.True(t, open[0].Remaining().Equal(dec("1")))
	assert.True(t, x.Market().Position().Net().Equal(dec("2")))
}

func TestExchange_RejectsNonPositiveOrders(t *testing.T) {
	x := newTestExchange()

	out := x.Place(domain.PlaceOrder{Symbol: "BTCUSDT", Side: domain.SideBuy, Price: dec("0"), Qty: dec("1")})
	assert.Equal(t, domain.OutcomeRejected, out.Status)

	out = x.Place(domain.PlaceOrder{Symbol: "BTCUSDT", Side: domain.SideBuy, Price: dec("50000"), Qty: dec("-1")})
	assert.Equal(t, domain.OutcomeRejected, out.Status)
}

func TestExchange_UnknownFillHalts(t *testing.T) {
	x := newTestExchange()

	x.Apply(domain.Fill{
		OrderID: 99,
		Symbol:  "BTCUSDT",
		Side:    domain.SideBuy,
		Price:   dec("50000"),
		Qty:     dec("1"),
		Time:    time.Now(),
	})

	var violation *domain.InvariantViolation
	require.ErrorAs(t, x.Err(), &violation)
	assert.Equal(t, domain.OrderID(99), violation.OrderID)

	// A halted exchange refuses further actions.
	out := x.Place(domain.PlaceOrder{Symbol: "BTCUSDT", Side: domain.SideBuy, Price: dec("50000"), Qty: dec("1")})
	assert.Equal(t, domain.OutcomeRejected, out.Status)
}

func TestExchange_OverfillHalts(t *testing.T) {
	x := newTestExchange()
	id := place(x, domain.SideBuy, "50000", "5")

	x.Apply(domain.Fill{
		OrderID: id,
		Symbol:  "BTCUSDT",
		Side:    domain.SideBuy,
		Price:   dec("50000"),
		Qty:     dec("6"),
		Time:    time.Now(),
	})

	var violation *domain.InvariantViolation
	require.ErrorAs(t, x.Err(), &violation)
}

func TestExchange_EmitHookSeesFills(t *testing.T) {
	x := newTestExchange()
	var fills []domain.Fill
	x.OnEvent(func(ev domain.Event) {
		if f, ok := ev.(domain.Fill); ok {
			fills = append(fills, f)
		}
	})

	place(x, domain.SideBuy, "50000", "4")
	x.Apply(trade(domain.SideSell, "50000", "4"))

	require.Len(t, fills, 1)
	assert.True(t, fills[0].Qty.Equal(dec("4")))
	assert.True(t, fills[0].Maker)
}

func TestExchange_Summarize(t *testing.T) {
	x := newTestExchange()
	place(x, domain.SideBuy, "100", "2")
	x.Apply(trade(domain.SideSell, "100", "2"))
	place(x, domain.SideSell, "110", "2")
	x.Apply(trade(domain.SideBuy, "110", "2"))
	place(x, domain.SideBuy, "90", "1")

	s := x.Summarize()
	require.Len(t, s.OpenOrders, 1)
	assert.True(t, s.Net.IsZero())
	assert.True(t, s.RealizedPnL.Equal(dec("20")))
}

func TestExchange_ReplayDeterminism(t *testing.T) {
	run := func() ([]domain.Order, decimal.Decimal) {
		x := newTestExchange()
		place(x, domain.SideBuy, "50000", "5")
		place(x, domain.SideSell, "50100", "5")
		x.Apply(trade(domain.SideSell, "50000", "2"))
		x.Apply(trade(domain.SideBuy, "50100", "3"))
		x.Apply(trade(domain.SideSell, "50000", "1"))
		return x.OpenOrders(), x.Market().Position().Net()
	}

	orders1, net1 := run()
	orders2, net2 := run()
	assert.Equal(t, orders1, orders2)
	assert.True(t, net1.Equal(net2))
}

package state

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftbot/internal/domain"
)

func lvl(price, qty string) domain.BookLevel {
	return domain.BookLevel{
		Price: decimal.RequireFromString(price),
		Qty:   decimal.RequireFromString(qty),
	}
}

func snapshot(bids, asks []domain.BookLevel) domain.BookSnapshot {
	return domain.BookSnapshot{Symbol: "BTCUSDT", Bids: bids, Asks: asks, Time: time.Now()}
}

func delta(side domain.Side, price, qty string) domain.BookDelta {
	return domain.BookDelta{
		Symbol: "BTCUSDT",
		Side:   side,
		Price:  decimal.RequireFromString(price),
		Qty:    decimal.RequireFromString(qty),
		Time:   time.Now(),
	}
}

func TestApplySnapshot_SortsAndDropsZeroQty(t *testing.T) {
	b := NewOrderBook("BTCUSDT")

	b.ApplySnapshot(snapshot(
		[]domain.BookLevel{lvl("49990", "1"), lvl("50000", "2"), lvl("49995", "0")},
		[]domain.BookLevel{lvl("50020", "1"), lvl("50010", "3")},
	))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.RequireFromString("50000")))

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Price.Equal(decimal.RequireFromString("50010")))

	bids, asks := b.Depth()
	assert.Equal(t, 2, bids) // zero-qty level dropped
	assert.Equal(t, 2, asks)
}

func TestApplyDelta_InsertOverwriteRemove(t *testing.T) {
	b := NewOrderBook("BTCUSDT")
	b.ApplySnapshot(snapshot(
		[]domain.BookLevel{lvl("50000", "1")},
		[]domain.BookLevel{lvl("50010", "1")},
	))

	// Insert a new best bid.
	b.ApplyDelta(delta(domain.SideBuy, "50005", "2"))
	bid, _ := b.BestBid()
	assert.True(t, bid.Price.Equal(decimal.RequireFromString("50005")))

	// Overwrite its quantity.
	b.ApplyDelta(delta(domain.SideBuy, "50005", "5"))
	bid, _ = b.BestBid()
	assert.True(t, bid.Qty.Equal(decimal.RequireFromString("5")))
	bids, _ := b.Depth()
	assert.Equal(t, 2, bids)

	// Zero quantity removes the level.
	b.ApplyDelta(delta(domain.SideBuy, "50005", "0"))
	bid, _ = b.BestBid()
	assert.True(t, bid.Price.Equal(decimal.RequireFromString("50000")))
}

func TestApplyDelta_RemoveAbsentLevelIsNoop(t *testing.T) {
	b := NewOrderBook("BTCUSDT")
	b.ApplySnapshot(snapshot(
		[]domain.BookLevel{lvl("50000", "1")},
		[]domain.BookLevel{lvl("50010", "1")},
	))

	b.ApplyDelta(delta(domain.SideSell, "60000", "0"))

	bids, asks := b.Depth()
	assert.Equal(t, 1, bids)
	assert.Equal(t, 1, asks)
}

func TestMidPrice(t *testing.T) {
	b := NewOrderBook("BTCUSDT")

	_, ok := b.MidPrice()
	assert.False(t, ok, "empty book has no mid")

	b.ApplyDelta(delta(domain.SideBuy, "49990", "1"))
	_, ok = b.MidPrice()
	assert.False(t, ok, "one-sided book has no mid")

	b.ApplyDelta(delta(domain.SideSell, "50010", "1"))
	mid, ok := b.MidPrice()
	require.True(t, ok)
	assert.True(t, mid.Equal(decimal.RequireFromString("50000")))
}

func TestOrderBook_LevelsStaySorted(t *testing.T) {
	b := NewOrderBook("BTCUSDT")
	for _, p := range []string{"50005", "49995", "50010", "50000", "49990"} {
		b.ApplyDelta(delta(domain.SideBuy, p, "1"))
		b.ApplyDelta(delta(domain.SideSell, p, "1"))
	}

	bids := b.Bids()
	for i := 1; i < len(bids); i++ {
		assert.True(t, bids[i-1].Price.GreaterThan(bids[i].Price), "bids must descend")
	}
	asks := b.Asks()
	for i := 1; i < len(asks); i++ {
		assert.True(t, asks[i-1].Price.LessThan(asks[i].Price), "asks must ascend")
	}
}

func TestMarket_IgnoresOtherSymbols(t *testing.T) {
	m := NewMarket("BTCUSDT", 16)

	m.Apply(domain.BookDelta{
		Symbol: "ETHUSDT",
		Side:   domain.SideBuy,
		Price:  decimal.RequireFromString("3000"),
		Qty:    decimal.RequireFromString("1"),
	})

	bids, asks := m.Book().Depth()
	assert.Equal(t, 0, bids)
	assert.Equal(t, 0, asks)
}

// Package strategy contains the pure decision logic. A strategy never
// touches shared state: it sees only the Input snapshot built for the cycle
// and returns an ordered action list, which makes every strategy fully
// testable with canned inputs.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
)

// Bot is the decision interface every strategy here implements. It matches
// the engine's bot contract instantiated with this package's Input.
type Bot interface {
	Name() string
	Decide(in Input) []domain.Action
}

// Input is the point-in-time snapshot a market-making strategy decides on.
// Absent readings (empty book, cold indicators) are flagged rather than
// zero-valued so strategies can skip a cycle instead of quoting nonsense.
type Input struct {
	MidPrice decimal.Decimal
	HasMid   bool

	RSI     decimal.Decimal
	HasRSI  bool
	NATR    decimal.Decimal
	HasNATR bool

	// OpenOrders are the bot's resting orders at snapshot time.
	OpenOrders []domain.Order

	// Net is the bot's signed position.
	Net decimal.Decimal
}

// requote cancels every resting order away from the target prices and
// places fresh quotes at targets that are not already occupied by a live
// order. Cancels come first so the venue processes them before the new
// quotes.
func requote(symbol string, open []domain.Order, bidPrice, askPrice, qty decimal.Decimal) []domain.Action {
	var actions []domain.Action
	haveBid, haveAsk := false, false

	for _, o := range open {
		switch {
		case o.Side == domain.SideBuy && o.Price.Equal(bidPrice):
			haveBid = true
		case o.Side == domain.SideSell && o.Price.Equal(askPrice):
			haveAsk = true
		default:
			actions = append(actions, domain.CancelOrder{Symbol: symbol, OrderID: o.ID})
		}
	}

	if !haveBid {
		actions = append(actions, domain.PlaceOrder{
			Symbol: symbol, Side: domain.SideBuy, Price: bidPrice, Qty: qty,
		})
	}
	if !haveAsk {
		actions = append(actions, domain.PlaceOrder{
			Symbol: symbol, Side: domain.SideSell, Price: askPrice, Qty: qty,
		})
	}
	return actions
}

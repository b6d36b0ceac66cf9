package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
)

var two = decimal.NewFromInt(2)

// SimpleMarketMaker quotes both sides of the book at a fixed distance from
// the mid price: bid at mid − spread/2, ask at mid + spread/2. Resting
// orders away from the current targets are cancelled first.
type SimpleMarketMaker struct {
	symbol string
	spread decimal.Decimal
	qty    decimal.Decimal
}

// NewSimpleMarketMaker creates the strategy for symbol with the full quoted
// spread and per-quote size.
func NewSimpleMarketMaker(symbol string, spread, qty decimal.Decimal) *SimpleMarketMaker {
	return &SimpleMarketMaker{symbol: symbol, spread: spread, qty: qty}
}

// Name implements engine.Bot.
func (s *SimpleMarketMaker) Name() string { return "simple_mm" }

// Decide implements engine.Bot.
func (s *SimpleMarketMaker) Decide(in Input) []domain.Action {
	if !in.HasMid {
		return nil
	}
	half := s.spread.Div(two)
	bid := in.MidPrice.Sub(half)
	ask := in.MidPrice.Add(half)
	return requote(s.symbol, in.OpenOrders, bid, ask, s.qty)
}

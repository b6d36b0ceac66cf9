package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
)

// DynamicSpreadConfig parameterizes the volatility- and momentum-aware
// market maker.
type DynamicSpreadConfig struct {
	Symbol string
	Qty    decimal.Decimal

	// BaseSpread is the half-distance from mid in calm markets; NATR above
	// VolatilityTarget widens it proportionally.
	BaseSpread       decimal.Decimal
	VolatilityTarget decimal.Decimal

	// SkewStrength is the fraction of mid by which quotes shift when RSI
	// leaves the neutral band.
	SkewStrength decimal.Decimal
	Overbought   decimal.Decimal
	Oversold     decimal.Decimal
}

// DynamicSpreadMarketMaker quotes around an RSI-skewed reference price with
// a NATR-scaled spread. High volatility widens both quotes; an overbought
// reading shifts the reference down and an oversold reading shifts it up,
// leaning the quotes toward the side mean reversion favors.
type DynamicSpreadMarketMaker struct {
	cfg DynamicSpreadConfig
}

// NewDynamicSpreadMarketMaker creates the strategy.
func NewDynamicSpreadMarketMaker(cfg DynamicSpreadConfig) *DynamicSpreadMarketMaker {
	return &DynamicSpreadMarketMaker{cfg: cfg}
}

// Name implements engine.Bot.
func (d *DynamicSpreadMarketMaker) Name() string { return "dynamic_spread_mm" }

// Decide implements engine.Bot. Without a mid price or warm indicators it
// emits nothing and waits for the next cycle.
func (d *DynamicSpreadMarketMaker) Decide(in Input) []domain.Action {
	if !in.HasMid || !in.HasRSI || !in.HasNATR {
		return nil
	}

	one := decimal.NewFromInt(1)
	spread := d.cfg.BaseSpread.Mul(one.Add(in.NATR.Div(d.cfg.VolatilityTarget)))

	var skew decimal.Decimal
	switch {
	case in.RSI.GreaterThan(d.cfg.Overbought):
		skew = d.cfg.SkewStrength.Neg()
	case in.RSI.LessThan(d.cfg.Oversold):
		skew = d.cfg.SkewStrength
	}

	ref := in.MidPrice.Add(in.MidPrice.Mul(skew))
	bid := ref.Sub(spread)
	ask := ref.Add(spread)
	return requote(d.cfg.Symbol, in.OpenOrders, bid, ask, d.cfg.Qty)
}

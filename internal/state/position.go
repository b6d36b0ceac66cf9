package state

import (
	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
)

// Position tracks the bot's signed net exposure for one symbol. It mutates
// only through fill application; unrealized P&L re-marks only against the
// latest tick so it can never reflect a stale price.
type Position struct {
	symbol     string
	net        decimal.Decimal // positive long, negative short
	avgEntry   decimal.Decimal
	realized   decimal.Decimal
	unrealized decimal.Decimal
	lastMark   decimal.Decimal
	marked     bool
}

// NewPosition creates a flat position for symbol.
func NewPosition(symbol string) *Position {
	return &Position{symbol: symbol}
}

// Net returns the signed net position.
func (p *Position) Net() decimal.Decimal { return p.net }

// AvgEntry returns the volume-weighted average entry price of the open
// exposure. Zero when flat.
func (p *Position) AvgEntry() decimal.Decimal { return p.avgEntry }

// RealizedPnL returns P&L locked in by fills that reduced exposure.
func (p *Position) RealizedPnL() decimal.Decimal { return p.realized }

// UnrealizedPnL returns the open exposure marked at the last tick.
func (p *Position) UnrealizedPnL() decimal.Decimal { return p.unrealized }

// Flat reports whether there is no open exposure.
func (p *Position) Flat() bool { return p.net.IsZero() }

// ApplyFill folds one fill into the position. Same-direction fills extend
// the exposure at a quantity-weighted average entry. Opposite fills first
// realize P&L on the portion closed at the old average; if the fill pushes
// through zero, the residual opens fresh exposure at the fill price.
func (p *Position) ApplyFill(f domain.Fill) {
	signed := f.Qty.Mul(decimal.NewFromInt(f.Side.Sign()))

	switch {
	case p.net.IsZero():
		p.net = signed
		p.avgEntry = f.Price

	case p.net.Sign() == signed.Sign():
		total := p.net.Add(signed)
		p.avgEntry = p.avgEntry.Mul(p.net.Abs()).
			Add(f.Price.Mul(signed.Abs())).
			Div(total.Abs())
		p.net = total

	default:
		closed := decimal.Min(p.net.Abs(), signed.Abs())
		direction := decimal.NewFromInt(int64(p.net.Sign()))
		p.realized = p.realized.Add(f.Price.Sub(p.avgEntry).Mul(closed).Mul(direction))

		p.net = p.net.Add(signed)
		if p.net.IsZero() {
			p.avgEntry = decimal.Decimal{}
		} else if p.net.Sign() != int(direction.IntPart()) {
			// Flipped through zero: the residual is a new position at the
			// fill price.
			p.avgEntry = f.Price
		}
	}

	if p.marked {
		p.remark()
	}
}

// Mark updates the reference price and recomputes unrealized P&L.
func (p *Position) Mark(price decimal.Decimal) {
	p.lastMark = price
	p.marked = true
	p.remark()
}

func (p *Position) remark() {
	if p.net.IsZero() {
		p.unrealized = decimal.Decimal{}
		return
	}
	p.unrealized = p.lastMark.Sub(p.avgEntry).Mul(p.net)
}

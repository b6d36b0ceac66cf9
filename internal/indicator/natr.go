package indicator

import "github.com/shopspring/decimal"

// NATRName is the registry key for the normalized average true range.
const NATRName = "natr"

// NATR computes the normalized average true range: the mean true range of
// the last period candles divided by the latest close, as a percentage.
// Candles are built from raw prices with a fixed duration per candle.
type NATR struct {
	period     int
	trueRanges []decimal.Decimal
	current    decimal.Decimal
	ready      bool

	candleMs     int64
	lastClosedAt int64
	open         decimal.Decimal
	high         decimal.Decimal
	low          decimal.Decimal
	close        decimal.Decimal
}

// NewNATR creates a NATR over period candles of candleMs milliseconds each.
func NewNATR(period int, candleMs int64) *NATR {
	return &NATR{period: period, candleMs: candleMs}
}

// Name implements Indicator.
func (n *NATR) Name() string { return NATRName }

// Value implements Indicator.
func (n *NATR) Value() (decimal.Decimal, bool) {
	return n.current, n.ready
}

// Update implements Indicator.
func (n *NATR) Update(price decimal.Decimal, ts int64) {
	if n.lastClosedAt == 0 {
		n.open = price
		n.high = price
		n.low = price
		n.close = price
		n.lastClosedAt = ts
		return
	}

	n.high = decimal.Max(n.high, price)
	n.low = decimal.Min(n.low, price)
	n.close = price

	if ts-n.lastClosedAt < n.candleMs {
		return
	}

	n.pushTrueRange()

	if len(n.trueRanges) < n.period {
		n.ready = false
	} else {
		var sum decimal.Decimal
		for _, tr := range n.trueRanges {
			sum = sum.Add(tr)
		}
		atr := sum.Div(decimal.NewFromInt(int64(n.period)))
		n.current = atr.Div(n.close).Mul(hundred)
		n.ready = true
	}

	// Roll the candle.
	n.open = n.close
	n.high = price
	n.low = price
	n.lastClosedAt = ts
}

func (n *NATR) pushTrueRange() {
	hl := n.high.Sub(n.low)
	hc := n.high.Sub(n.open).Abs()
	lc := n.low.Sub(n.open).Abs()
	tr := decimal.Max(hl, hc, lc)

	if len(n.trueRanges) == n.period {
		n.trueRanges = n.trueRanges[1:]
	}
	n.trueRanges = append(n.trueRanges, tr)
}

// Reset implements Indicator.
func (n *NATR) Reset() {
	n.trueRanges = nil
	n.ready = false
	n.lastClosedAt = 0
}

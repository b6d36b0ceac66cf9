package indicator

import "github.com/shopspring/decimal"

// RSIName is the registry key for the relative strength index.
const RSIName = "rsi"

var hundred = decimal.NewFromInt(100)

// RSI computes the relative strength index over a fixed number of sampled
// prices. Samples are taken at most once per updateInterval milliseconds so
// a bursty feed does not collapse the window into a few microseconds.
type RSI struct {
	period        int
	values        []decimal.Decimal
	current       decimal.Decimal
	ready         bool
	lastUpdatedAt int64
	interval      int64
}

// NewRSI creates an RSI over period samples spaced at least
// updateIntervalMs apart.
func NewRSI(period int, updateIntervalMs int64) *RSI {
	return &RSI{period: period, interval: updateIntervalMs}
}

// Name implements Indicator.
func (r *RSI) Name() string { return RSIName }

// Value implements Indicator.
func (r *RSI) Value() (decimal.Decimal, bool) {
	return r.current, r.ready
}

// Update implements Indicator.
func (r *RSI) Update(price decimal.Decimal, ts int64) {
	if r.lastUpdatedAt != 0 && ts-r.lastUpdatedAt < r.interval {
		return
	}
	r.lastUpdatedAt = ts

	if len(r.values) == r.period {
		r.values = r.values[1:]
	}
	r.values = append(r.values, price)

	if len(r.values) < r.period {
		r.ready = false
		return
	}

	var gains, losses decimal.Decimal
	for i := 1; i < len(r.values); i++ {
		diff := r.values[i].Sub(r.values[i-1])
		if diff.IsPositive() {
			gains = gains.Add(diff)
		} else {
			losses = losses.Sub(diff)
		}
	}

	if losses.IsZero() {
		r.current = hundred
		r.ready = true
		return
	}

	rs := gains.Div(losses)
	r.current = hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
	r.ready = true
}

// Reset implements Indicator.
func (r *RSI) Reset() {
	r.values = nil
	r.ready = false
	r.lastUpdatedAt = 0
}

// Package indicator implements the rolling price indicators strategies read
// through their input snapshots. Indicators are updated on the engine's
// sequential path and are not safe for concurrent use.
package indicator

import "github.com/shopspring/decimal"

// Indicator consumes a stream of (price, timestamp) observations and exposes
// a current value once enough history has accumulated.
type Indicator interface {
	Name() string
	// Value returns the current reading. ok is false until the indicator
	// has seen a full window.
	Value() (v decimal.Decimal, ok bool)
	// Update observes a price at a unix-millisecond timestamp.
	Update(price decimal.Decimal, ts int64)
	Reset()
}

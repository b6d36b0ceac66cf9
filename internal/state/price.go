package state

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
	"github.com/driftline/driftbot/internal/indicator"
)

// PricePoint is a single observed price.
type PricePoint struct {
	Price decimal.Decimal
	Time  time.Time
}

// PriceSeries keeps a bounded window of recent prices and drives the
// registered indicators. Trades and ticks both feed it.
type PriceSeries struct {
	maxPoints  int
	points     []PricePoint
	indicators map[string]indicator.Indicator
}

// NewPriceSeries creates a series retaining at most maxPoints observations.
func NewPriceSeries(maxPoints int) *PriceSeries {
	if maxPoints <= 0 {
		maxPoints = 1024
	}
	return &PriceSeries{
		maxPoints:  maxPoints,
		indicators: make(map[string]indicator.Indicator),
	}
}

// AddIndicator registers an indicator under its name. A second indicator
// with the same name replaces the first.
func (s *PriceSeries) AddIndicator(ind indicator.Indicator) {
	s.indicators[ind.Name()] = ind
}

// Indicator returns the current value of the named indicator. ok is false
// when the indicator is unknown or not warmed up yet.
func (s *PriceSeries) Indicator(name string) (decimal.Decimal, bool) {
	ind, found := s.indicators[name]
	if !found {
		return decimal.Decimal{}, false
	}
	return ind.Value()
}

// Observe appends a price observation, trims the retention window, and
// updates every registered indicator.
func (s *PriceSeries) Observe(price decimal.Decimal, ts time.Time) {
	s.points = append(s.points, PricePoint{Price: price, Time: ts})
	if len(s.points) > s.maxPoints {
		s.points = s.points[len(s.points)-s.maxPoints:]
	}
	ms := ts.UnixMilli()
	for _, ind := range s.indicators {
		ind.Update(price, ms)
	}
}

// Last returns the most recent observation.
func (s *PriceSeries) Last() (PricePoint, bool) {
	if len(s.points) == 0 {
		return PricePoint{}, false
	}
	return s.points[len(s.points)-1], true
}

// Len returns the number of retained observations.
func (s *PriceSeries) Len() int { return len(s.points) }

// observeEvent feeds trade and tick prices into the series.
func (s *PriceSeries) observeEvent(ev domain.Event) {
	switch e := ev.(type) {
	case domain.Trade:
		s.Observe(e.Price, e.Time)
	case domain.PriceTick:
		s.Observe(e.Price, e.Time)
	}
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a market occurrence flowing through the pipeline. The variant set
// is closed: every implementation lives in this package, so switches over
// Event stay exhaustive. Events are immutable and consumed exactly once by
// state application.
type Event interface {
	isEvent()
}

// BookLevel is a single price level of an order book.
type BookLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// BookSnapshot replaces the entire order book for a symbol.
type BookSnapshot struct {
	Symbol string
	Bids   []BookLevel // descending by price
	Asks   []BookLevel // ascending by price
	Time   time.Time
}

// BookDelta inserts, overwrites, or (when Qty is zero) removes one price
// level on one side of the book.
type BookDelta struct {
	Symbol string
	Side   Side
	Price  decimal.Decimal
	Qty    decimal.Decimal
	Time   time.Time
}

// Trade is a public market trade observed on the feed. Side is the taker
// side.
type Trade struct {
	Symbol string
	Side   Side
	Price  decimal.Decimal
	Qty    decimal.Decimal
	Time   time.Time
}

// Fill reports quantity of one of the bot's own orders matched at a price.
// Fills are produced by the venue: the live exchange bindings or the paper
// matching engine.
type Fill struct {
	OrderID OrderID
	Symbol  string
	Side    Side
	Price   decimal.Decimal
	Qty     decimal.Decimal
	Maker   bool
	Time    time.Time
}

// PriceTick is a bare mark-price observation used to re-mark unrealized
// P&L and feed indicators between trades.
type PriceTick struct {
	Symbol string
	Price  decimal.Decimal
	Time   time.Time
}

func (BookSnapshot) isEvent() {}
func (BookDelta) isEvent()    {}
func (Trade) isEvent()        {}
func (Fill) isEvent()         {}
func (PriceTick) isEvent()    {}

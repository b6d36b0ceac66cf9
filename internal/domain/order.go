package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderID identifies an order within one bot instance. The venue assigns it
// at acceptance time; the paper exchange issues them sequentially so replays
// are deterministic.
type OrderID uint64

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Order is a limit order owned by the venue from creation until it reaches a
// terminal status. FilledQty never exceeds Qty; Status derives from the two
// quantities and the cancelled flag.
type Order struct {
	ID        OrderID
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Qty       decimal.Decimal
	FilledQty decimal.Decimal
	Cancelled bool
	CreatedAt time.Time
}

// Remaining returns the unfilled quantity.
func (o Order) Remaining() decimal.Decimal {
	return o.Qty.Sub(o.FilledQty)
}

// Status derives the lifecycle status from the filled quantity and the
// cancelled flag.
func (o Order) Status() OrderStatus {
	switch {
	case o.Cancelled:
		return OrderStatusCancelled
	case o.FilledQty.GreaterThanOrEqual(o.Qty):
		return OrderStatusFilled
	case o.FilledQty.IsPositive():
		return OrderStatusPartiallyFilled
	default:
		return OrderStatusOpen
	}
}

// Terminal reports whether the order can no longer change.
func (o Order) Terminal() bool {
	s := o.Status()
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

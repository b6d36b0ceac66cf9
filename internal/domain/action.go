package domain

import "github.com/shopspring/decimal"

// Action is a decision emitted by a strategy for the executor to perform.
// Like Event, the variant set is closed. Actions are not retained after
// dispatch.
type Action interface {
	isAction()
}

// PlaceOrder requests a new limit order.
type PlaceOrder struct {
	Symbol string
	Side   Side
	Price  decimal.Decimal
	Qty    decimal.Decimal
}

// CancelOrder requests removal of a resting order.
type CancelOrder struct {
	Symbol  string
	OrderID OrderID
}

// ModifyOrder requests a price and/or quantity change on a resting order.
// On the paper venue a price change forfeits time priority at the old level.
type ModifyOrder struct {
	Symbol   string
	OrderID  OrderID
	NewPrice decimal.Decimal
	NewQty   decimal.Decimal
}

func (PlaceOrder) isAction()  {}
func (CancelOrder) isAction() {}
func (ModifyOrder) isAction() {}

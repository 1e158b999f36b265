package models

import "time"

// Order represents a broker-facing order. Quantity is signed: positive
// quantities buy, negative quantities sell.
type Order struct {
	ID           string
	Symbol       string
	Quantity     int
	Type         OrderType
	LimitPrice   float64
	StopPrice    float64
	Status       OrderStatus
	FilledQty    int
	AvgFillPrice float64
	Tag          string
	PlacedAt     time.Time
}

// Side derives the order side from the signed quantity.
func (o *Order) Side() OrderSide {
	if o.Quantity < 0 {
		return OrderSideSell
	}
	return OrderSideBuy
}

// AbsQuantity returns the unsigned order size.
func (o *Order) AbsQuantity() int {
	if o.Quantity < 0 {
		return -o.Quantity
	}
	return o.Quantity
}

// Remaining returns the unfilled quantity (unsigned).
func (o *Order) Remaining() int {
	r := o.AbsQuantity() - o.FilledQty
	if r < 0 {
		return 0
	}
	return r
}

// Fill represents an execution report for an order.
type Fill struct {
	OrderID       string
	Symbol        string
	Quantity      int // signed, same convention as Order.Quantity
	Price         float64
	CumulativeQty int
	RemainingQty  int
	Timestamp     time.Time
}

// AbsQuantity returns the unsigned fill size.
func (f *Fill) AbsQuantity() int {
	if f.Quantity < 0 {
		return -f.Quantity
	}
	return f.Quantity
}

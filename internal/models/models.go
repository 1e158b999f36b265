// Package models provides domain models for the trading engine.
package models

import "time"

// OrderSide represents the side of an order or position.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the reverse side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// Terminal reports whether the status is final.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// OrderRole identifies the role an order plays within an order group.
type OrderRole string

const (
	RoleMain       OrderRole = "main"
	RoleStop       OrderRole = "stop"
	RoleTarget     OrderRole = "target"
	RoleScale      OrderRole = "scale"
	RoleDoubleDown OrderRole = "doubledown"
)

// Roles lists every order role.
func Roles() []OrderRole {
	return []OrderRole{RoleMain, RoleStop, RoleTarget, RoleScale, RoleDoubleDown}
}

// Signal represents an inbound prediction signal.
type Signal struct {
	Symbol     string
	Side       OrderSide
	Confidence float64 // [0, 1]
	Price      float64
	Timestamp  time.Time
}

// Candle is one OHLC bar.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

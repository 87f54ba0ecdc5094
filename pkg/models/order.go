package models

import (
	"time"
)

type AccountType string

const (
	AccountTypeSpot   AccountType = "SPOT"
	AccountTypeFuture AccountType = "FUTURE"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// OrderRequest is one leg slice ready for submission. Price and TimeInForce
// are only set for limit orders.
type OrderRequest struct {
	Account     AccountType
	Symbol      string
	Side        OrderSide
	Type        OrderType
	Quantity    float64
	Price       float64
	TimeInForce string
}

type Order struct {
	OrderID    string
	Account    AccountType
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Price      float64
	Quantity   float64
	FilledSize float64
	Status     OrderStatus
	CreatedAt  time.Time
}

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the venue-neutral order direction. Venues encode it differently
// ("BUY" vs "Buy"); adapters translate at the boundary.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the reversed direction, used for rollback orders.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType is the venue-neutral order type.
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// TimeInForce modes supported across venues.
type TimeInForce string

const (
	GoodTillCancel    TimeInForce = "GTC"
	ImmediateOrCancel TimeInForce = "IOC"
	FillOrKill        TimeInForce = "FOK"
	GoodTillCrossing  TimeInForce = "GTX"
)

// OrderStatus is the venue-neutral terminal and non-terminal order state.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// MarginMode selects how a position is collateralized.
type MarginMode string

const (
	Isolated MarginMode = "ISOLATED"
	Crossed  MarginMode = "CROSSED"
)

// PositionSide tags which leg of the arbitrage a venue holds.
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// Order is the immutable identity record a venue produces for a placed order.
// Status refresh produces a new value; orders are never mutated client-side.
type Order struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Price         decimal.Decimal
	Status        OrderStatus
}

// Rejected reports whether the venue refused the order.
func (o Order) Rejected() bool {
	return o.Status == StatusRejected
}

// OrderInfo is an Order augmented after settlement with fill aggregates.
// AvgPrice is total quote over total base across all fills.
type OrderInfo struct {
	Order
	Side         Side
	PositionSide PositionSide
	AvgPrice     decimal.Decimal
	QuoteQty     decimal.Decimal
	Qty          decimal.Decimal
	Fee          decimal.Decimal
	OrderTime    time.Time
}

// OrderRequest describes a single order placement. Price is ignored for
// market orders.
type OrderRequest struct {
	Side          Side
	Qty           decimal.Decimal
	Type          OrderType
	TimeInForce   TimeInForce
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	ReduceOnly    bool
	ClosePosition bool
	PositionSide  PositionSide
}

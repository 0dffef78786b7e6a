package domain

import (
	"math/big"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeFAK OrderType = "FAK" // Fill-And-Kill
)

// OrderState is the venue-reported lifecycle state of an order.
type OrderState string

const (
	OrderStateOpen      OrderState = "open"
	OrderStatePartial   OrderState = "partial"
	OrderStateFilled    OrderState = "filled"
	OrderStateCancelled OrderState = "canceled"
	OrderStateUnknown   OrderState = "unknown"
)

// Resting reports whether the order is still (at least partly) on the book.
func (s OrderState) Resting() bool {
	return s == OrderStateOpen || s == OrderStatePartial
}

// Order is a signed order ready for submission.
type Order struct {
	ID          string
	TokenID     string
	Wallet      string
	Side        OrderSide
	Type        OrderType
	PriceTicks  int64    // fixed-point: price * 1e6
	SizeUnits   int64    // fixed-point: size  * 1e6
	MakerAmount *big.Int // integer notional used in signed payload
	TakerAmount *big.Int // integer quantity used in signed payload
	Signature   string   // EIP-712 hex
	CreatedAt   time.Time
}

// Price returns the float64 display price from fixed-point ticks.
func (o Order) Price() float64 {
	return float64(o.PriceTicks) / 1e6
}

// Size returns the float64 display size from fixed-point units.
func (o Order) Size() float64 {
	return float64(o.SizeUnits) / 1e6
}

// OrderResult wraps the venue response after order submission.
type OrderResult struct {
	Success     bool
	OrderID     string
	Message     string
	ShouldRetry bool
	FilledSize  float64
	FilledPrice float64
	FeeUSD      float64
}

// OrderStatusReport is the normalized answer to an order-status poll.
type OrderStatusReport struct {
	OrderID    string
	State      OrderState
	FilledSize float64
	AvgPrice   float64
	FeeUSD     float64
}

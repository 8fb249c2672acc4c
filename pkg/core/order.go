package core

import (
	"time"

	"github.com/google/uuid"
)

// Side is the direction of an order or fill.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side; used by stop/bracket generators that
// derive an exit order's side from the entry position's side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates the order shapes the matching engine understands.
// TrailingStop carries its activation state separately; see
// internal/matching's TrailingStopState.
type OrderType string

const (
	OrderMarket          OrderType = "MARKET"
	OrderLimit           OrderType = "LIMIT"
	OrderStopLoss        OrderType = "STOP_LOSS"
	OrderStopLossLimit   OrderType = "STOP_LOSS_LIMIT"
	OrderTakeProfit      OrderType = "TAKE_PROFIT"
	OrderTakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT"
	OrderTrailingStop    OrderType = "TRAILING_STOP"
)

// IsStopType reports whether the order only becomes live once a trigger
// price is crossed (as opposed to Market/Limit, which are live immediately).
func (t OrderType) IsStopType() bool {
	switch t {
	case OrderStopLoss, OrderStopLossLimit, OrderTakeProfit, OrderTakeProfitLimit, OrderTrailingStop:
		return true
	default:
		return false
	}
}

// OrderStatus is the closed set of lifecycle states an Order passes through.
type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderOpen            OrderStatus = "OPEN"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether no further fills or state transitions can occur.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderExpired:
		return true
	default:
		return false
	}
}

// TimeInForce controls how long an order remains live once accepted.
type TimeInForce string

const (
	TIFGoodTilCancel  TimeInForce = "GTC"
	TIFImmediateOrCancel TimeInForce = "IOC"
	TIFFillOrKill     TimeInForce = "FOK"
)

// OrderRequest is the input to the matching engine's Submit operation. It is
// intentionally separate from Order: a request has no identity or status
// until the engine accepts it.
type OrderRequest struct {
	Ticker       Ticker
	Side         Side
	Type         OrderType
	Quantity     Decimal
	LimitPrice   *Decimal // required for LIMIT, STOP_LOSS_LIMIT, TAKE_PROFIT_LIMIT
	TriggerPrice *Decimal // required for stop-type orders other than TRAILING_STOP
	TrailAmount  *Decimal // TRAILING_STOP only; absolute price or percentage per TrailIsPct
	TrailIsPct   bool
	TimeInForce  TimeInForce
	StrategyID   string
	PositionID   *string // links an exit order back to the position it closes
	ClientTag    string  // free-form correlation id set by the caller
}

// Order is the engine's live record of an accepted OrderRequest.
type Order struct {
	ID              string
	Ticker          Ticker
	Side            Side
	Type            OrderType
	Quantity        Decimal
	FilledQuantity  Decimal
	LimitPrice      *Decimal
	TriggerPrice    *Decimal
	TrailAmount     *Decimal
	TrailIsPct      bool
	TimeInForce     TimeInForce
	Status          OrderStatus
	StrategyID      string
	PositionID      *string
	ClientTag       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Triggered       bool // stop-type orders: true once the trigger price has been crossed
}

// NewOrderID generates a fresh random (UUID) identifier; the position
// tracker uses it for position IDs as well.
func NewOrderID() string {
	return uuid.NewString()
}

// Remaining returns the quantity still unfilled.
func (o Order) Remaining() Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Fill is a single execution against an Order, produced by the matching
// engine and consumed by the position tracker.
type Fill struct {
	ID         string
	OrderID    string
	Ticker     Ticker
	Side       Side
	Price      Decimal
	Quantity   Decimal
	Fee        Decimal
	StrategyID string
	PositionID *string
	Timestamp  time.Time
}

// Notional returns Price * Quantity, the gross value of the fill before fees.
func (f Fill) Notional() Decimal {
	return f.Price.Mul(f.Quantity)
}

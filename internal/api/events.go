package api

import (
	"time"

	"trader-core/pkg/core"
)

// DashboardEvent is the wrapper for every event pushed to connected
// dashboard WebSocket clients.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot", "fill", "order", "position", "kill"
	Timestamp time.Time   `json:"timestamp"`
	Ticker    string      `json:"ticker,omitempty"`
	Data      interface{} `json:"data"`
}

// FillEvent announces a single execution from the matching engine.
type FillEvent struct {
	OrderID    string       `json:"order_id"`
	Ticker     string       `json:"ticker"`
	Side       core.Side    `json:"side"`
	Price      core.Decimal `json:"price"`
	Quantity   core.Decimal `json:"quantity"`
	Fee        core.Decimal `json:"fee"`
	StrategyID string       `json:"strategy_id"`
}

// NewFillEvent builds a FillEvent from a matching-engine Fill.
func NewFillEvent(f core.Fill) FillEvent {
	return FillEvent{
		OrderID:    f.OrderID,
		Ticker:     f.Ticker.String(),
		Side:       f.Side,
		Price:      f.Price,
		Quantity:   f.Quantity,
		Fee:        f.Fee,
		StrategyID: f.StrategyID,
	}
}

// OrderEvent announces an order lifecycle transition.
type OrderEvent struct {
	OrderID string          `json:"order_id"`
	Ticker  string          `json:"ticker"`
	Status  core.OrderStatus `json:"status"`
	Side    core.Side       `json:"side"`
	Type    core.OrderType  `json:"type"`
}

// NewOrderEvent builds an OrderEvent from a core.Order.
func NewOrderEvent(o core.Order) OrderEvent {
	return OrderEvent{OrderID: o.ID, Ticker: o.Ticker.String(), Status: o.Status, Side: o.Side, Type: o.Type}
}

// PositionEvent announces a position's state after a change.
type PositionEvent struct {
	PositionSummary
}

// NewPositionEvent wraps a position for broadcast.
func NewPositionEvent(p *core.Position) PositionEvent {
	return PositionEvent{PositionSummary: NewPositionSummary(p)}
}

// KillEvent announces a Risk Gate kill-switch transition.
type KillEvent struct {
	Active bool      `json:"active"`
	Until  time.Time `json:"until,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

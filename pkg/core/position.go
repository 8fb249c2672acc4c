package core

import "time"

// PositionSide mirrors Side but reads more naturally on a Position (a long
// position was entered on the Buy side, a short on the Sell side).
type PositionSide = Side

// Position is the tracker's live record for one open or recently-closed
// ticker+strategy pair. Exactly one open Position may exist per
// (Ticker, StrategyID) at a time; see internal/position's one-open-position
// invariant.
type Position struct {
	ID               string
	Ticker           Ticker
	StrategyID       string
	Side             PositionSide
	Quantity         Decimal
	AvgEntryPrice    Decimal
	RealizedPnL      Decimal
	UnrealizedPnL    Decimal
	LastMarkPrice    Decimal
	OpenedAt         time.Time
	ClosedAt         *time.Time
	FeesPaid         Decimal
}

// IsOpen reports whether the position still carries quantity.
func (p Position) IsOpen() bool {
	return p.ClosedAt == nil && !p.Quantity.IsZero()
}

// PositionEventKind enumerates the state transitions a Position emits into
// its bounded event ring.
type PositionEventKind string

const (
	PositionOpened      PositionEventKind = "OPENED"
	PositionIncreased   PositionEventKind = "INCREASED"
	PositionDecreased   PositionEventKind = "DECREASED"
	PositionClosed      PositionEventKind = "CLOSED"
	PositionPriceUpdate PositionEventKind = "PRICE_UPDATED"
)

// PositionEvent is one entry in a Position's bounded history ring. The ring
// defaults to 10,000 entries per position; oldest entries are evicted first.
type PositionEvent struct {
	Kind          PositionEventKind
	PositionID    string
	Ticker        Ticker
	Quantity      Decimal
	Price         Decimal
	RealizedDelta Decimal
	Timestamp     time.Time
}

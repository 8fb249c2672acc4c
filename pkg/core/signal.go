package core

import "time"

// SignalType distinguishes an entry signal (open or add to a position) from
// an exit signal (reduce or close one).
type SignalType string

const (
	SignalEntry SignalType = "ENTRY"
	SignalExit  SignalType = "EXIT"
)

// Signal is a strategy's request for the engine to act. The Risk Gate
// inspects StopLossPrice/TakeProfitPrice/ReasonCode directly; anything
// strategy-specific that the gate does not need to understand (e.g. a grid
// level index) goes in Metadata instead.
type Signal struct {
	Type            SignalType
	Ticker          Ticker
	Side            Side
	StrategyID      string
	Strength        float64 // in [0,1]; strategies' confidence in the signal
	Quantity        *Decimal // nil lets the engine size the order (e.g. full close)
	LimitPrice      *Decimal
	StopLossPrice   *Decimal
	TakeProfitPrice *Decimal
	ReasonCode      *string
	Timeframe       Timeframe
	GeneratedAt     time.Time
	Metadata        map[string]any
}

// DedupKey returns the key used by the Strategy Engine's signal-deduplication
// window: identical (StrategyID, Ticker, Type, Side) signals within the
// dedup interval are collapsed to one.
func (s Signal) DedupKey() string {
	return s.StrategyID + "|" + s.Ticker.String() + "|" + string(s.Type) + "|" + string(s.Side)
}

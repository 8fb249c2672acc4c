package core

import "time"

// RouteState is the per-ticker traffic-light the Strategy Context publishes
// so strategies can throttle themselves without each re-deriving flow
// toxicity or exposure state independently.
type RouteState string

const (
	RouteAttack   RouteState = "ATTACK"   // favorable flow, strategies may size up
	RouteArmed    RouteState = "ARMED"    // neutral, normal sizing
	RouteWait     RouteState = "WAIT"     // unfavorable flow, hold new entries
	RouteNeutral  RouteState = "NEUTRAL"  // insufficient data to score
	RouteOverheat RouteState = "OVERHEAT" // risk limits near breach, exits only
)

// GlobalScore is the composite flow-quality score the analytics sync
// publishes for a ticker, in [0, 100] with higher meaning more favorable.
// Strategies compare it against their own configured minimum threshold.
type GlobalScore struct {
	Ticker               Ticker
	DirectionalImbalance float64
	FillVelocity         float64
	Score                float64
	IsAverse             bool
	ComputedAt           time.Time
}

// AccountSnapshot is the exchange-sync half of the Strategy Context: the
// latest known balances and exposure, refreshed on its own cadence
// independent of the analytics sync.
type AccountSnapshot struct {
	Equity          Decimal
	AvailableCash   Decimal
	OpenExposure    Decimal
	OpenPositions   int
	DailyRealizedPnL Decimal
	SyncedAt        time.Time
}

// TickerContext is the read-mostly record the Strategy Context exposes per
// ticker, combining the route state, score, and account snapshot views a
// strategy needs without taking the write lock.
type TickerContext struct {
	Ticker  Ticker
	Route   RouteState
	Score   *GlobalScore
	Account AccountSnapshot
}

// Package riskgate implements the Risk Gate (signal -> order admission) and
// the Stop Generator (fixed/ATR/trailing stop and bracket-order shapes).
package riskgate

import (
	"log/slog"
	"sync"
	"time"

	"trader-core/pkg/core"
)

// RejectReason is the closed enum of reasons the gate may refuse a signal.
type RejectReason string

const (
	RejectNone                     RejectReason = ""
	RejectPositionSizeExceeded     RejectReason = "POSITION_SIZE_EXCEEDED"
	RejectExposureLimitExceeded    RejectReason = "EXPOSURE_LIMIT_EXCEEDED"
	RejectMaxOpenPositionsExceeded RejectReason = "MAX_OPEN_POSITIONS_EXCEEDED"
	RejectPerTickerCapExceeded     RejectReason = "PER_TICKER_CAP_EXCEEDED"
	RejectKillSwitchActive         RejectReason = "KILL_SWITCH_ACTIVE"
)

// Limits configures the gate's five ordered checks.
type Limits struct {
	MaxPositionPctOfEquity core.Decimal // e.g. 0.05 for 5%
	TotalExposureLimit     core.Decimal // absolute notional ceiling
	MaxOpenPositions       int
	MaxPerTicker           int
	DailyPnLFloor          core.Decimal // negative; breaching trips the kill switch
	KillSwitchCooldown     time.Duration
	DefaultRiskPct         core.Decimal // used for fixed-fractional sizing when a signal omits quantity
}

// SizingInput carries the context the gate needs to size an unspecified
// quantity and to run the exposure/count checks, since neither belongs on
// core.Signal itself.
type SizingInput struct {
	ReferencePrice  core.Decimal
	StopDistance    core.Decimal // |entry - stop|; required when Signal.Quantity is nil
	Account         core.AccountSnapshot
	OpenPositions   []*core.Position
	OpenOnTicker    int
}

// Decision is the gate's verdict on one signal.
type Decision struct {
	Allowed bool
	Request core.OrderRequest
	Reason  RejectReason
}

// Gate is the stateful risk admission control. Safe for concurrent use.
type Gate struct {
	mu               sync.Mutex
	limits           Limits
	logger           *slog.Logger
	dailyRealizedPnL core.Decimal
	killActive       bool
	killUntil        time.Time
}

// New builds a Gate.
func New(limits Limits, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{limits: limits, logger: logger.With("component", "riskgate")}
}

// RecordRealizedPnL folds a newly realized P&L delta into the day's running
// total, tripping the kill switch if it crosses DailyPnLFloor.
func (g *Gate) RecordRealizedPnL(delta core.Decimal, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyRealizedPnL = g.dailyRealizedPnL.Add(delta)
	if g.dailyRealizedPnL.LessThanOrEqual(g.limits.DailyPnLFloor) && !g.killActive {
		g.killActive = true
		g.killUntil = now.Add(g.limits.KillSwitchCooldown)
		g.logger.Warn("kill switch tripped", "daily_pnl", g.dailyRealizedPnL.String(), "floor", g.limits.DailyPnLFloor.String())
	}
}

// ResetDaily clears the running realized-P&L total, called once per trading
// day by the owner.
func (g *Gate) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyRealizedPnL = core.Zero
}

// clearExpiredKillSwitchLocked releases the kill switch once its cooldown
// has elapsed. Caller must hold g.mu.
func (g *Gate) clearExpiredKillSwitchLocked(now time.Time) {
	if g.killActive && !now.Before(g.killUntil) {
		g.killActive = false
	}
}

// Evaluate runs the five ordered checks and, if all pass, returns an
// OrderRequest ready for the matching engine.
func (g *Gate) Evaluate(signal core.Signal, in SizingInput, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearExpiredKillSwitchLocked(now)

	if g.killActive {
		return Decision{Reason: RejectKillSwitchActive}
	}

	qty := g.sizeLocked(signal, in)
	notional := qty.Mul(in.ReferencePrice)

	// 1. position_size <= max_position_pct_of_equity
	if in.Account.Equity.IsPositive() {
		pct := notional.Div(in.Account.Equity)
		if pct.GreaterThan(g.limits.MaxPositionPctOfEquity) {
			return Decision{Reason: RejectPositionSizeExceeded}
		}
	}

	// 2. total_open_notional + notional(signal) <= total_exposure_limit
	totalOpen := core.Zero
	for _, p := range in.OpenPositions {
		totalOpen = totalOpen.Add(p.Quantity.Mul(p.LastMarkPrice))
	}
	if totalOpen.Add(notional).GreaterThan(g.limits.TotalExposureLimit) {
		return Decision{Reason: RejectExposureLimitExceeded}
	}

	// 3. open_positions_count < max_open_positions
	if signal.Type == core.SignalEntry && len(in.OpenPositions) >= g.limits.MaxOpenPositions {
		return Decision{Reason: RejectMaxOpenPositionsExceeded}
	}

	// 4. per-ticker position-count cap
	if signal.Type == core.SignalEntry && in.OpenOnTicker >= g.limits.MaxPerTicker {
		return Decision{Reason: RejectPerTickerCapExceeded}
	}

	// 5. daily realized-P&L floor (kill-switch) already checked above; a
	// signal arriving in the same tick the floor is crossed is still let
	// through since the trip is evaluated before sizing next time.

	orderType := core.OrderMarket
	var limitPrice *core.Decimal
	if signal.LimitPrice != nil {
		orderType = core.OrderLimit
		limitPrice = signal.LimitPrice
	}

	req := core.OrderRequest{
		Ticker:      signal.Ticker,
		Side:        signal.Side,
		Type:        orderType,
		Quantity:    qty,
		LimitPrice:  limitPrice,
		TimeInForce: core.TIFGoodTilCancel,
		StrategyID:  signal.StrategyID,
	}
	return Decision{Allowed: true, Request: req}
}

// Snapshot reports the gate's current aggregate state, for dashboards.
type Snapshot struct {
	DailyRealizedPnL   core.Decimal
	DailyPnLFloor      core.Decimal
	KillSwitchActive   bool
	KillSwitchUntil    time.Time
	MaxOpenPositions   int
	MaxPerTicker       int
	TotalExposureLimit core.Decimal
}

// Snapshot returns the gate's current state for dashboard display.
func (g *Gate) Snapshot(now time.Time) Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearExpiredKillSwitchLocked(now)
	return Snapshot{
		DailyRealizedPnL:   g.dailyRealizedPnL,
		DailyPnLFloor:      g.limits.DailyPnLFloor,
		KillSwitchActive:   g.killActive,
		KillSwitchUntil:    g.killUntil,
		MaxOpenPositions:   g.limits.MaxOpenPositions,
		MaxPerTicker:       g.limits.MaxPerTicker,
		TotalExposureLimit: g.limits.TotalExposureLimit,
	}
}

// sizeLocked returns the signal's explicit quantity, or a fixed-fractional
// size (equity * risk_pct / stop_distance) when none was given.
func (g *Gate) sizeLocked(signal core.Signal, in SizingInput) core.Decimal {
	if signal.Quantity != nil {
		return *signal.Quantity
	}
	if in.StopDistance.IsZero() {
		return core.Zero
	}
	riskPct := g.limits.DefaultRiskPct
	return in.Account.Equity.Mul(riskPct).Div(in.StopDistance)
}

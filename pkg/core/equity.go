package core

import "time"

// EquityPoint is one sample of the reconstructed equity curve. DrawdownPct
// and ReturnPct are always computed relative to the curve's running peak and
// initial capital respectively, never to the prior point alone.
type EquityPoint struct {
	Timestamp       time.Time
	Equity          Decimal
	DrawdownPct     Decimal
	ReturnPct       Decimal
	PeriodReturnPct Decimal
}

// DrawdownPeriod describes one peak-to-trough-to-recovery excursion found by
// analyzing a curve's point series.
type DrawdownPeriod struct {
	Start           time.Time
	Trough          time.Time
	End             *time.Time // nil if not yet recovered
	MaxDrawdownPct  Decimal
	PeakEquity      Decimal
	TroughEquity    Decimal
	DurationDays    int64
	RecoveryDays    *int64
}

// ExecutionCacheRow is one row of the durable execution cache the equity
// curve builder folds into daily portfolio value (§6). It mirrors a single
// fill plus enough position context to net P&L without re-joining the full
// position history.
type ExecutionCacheRow struct {
	ID            int64
	CredentialID  string
	OrderID       string
	Ticker        Ticker
	StrategyID    string
	Side          Side
	Price         Decimal
	Quantity      Decimal
	Fee           Decimal
	RealizedPnL   Decimal
	ExecutedAt    time.Time
}

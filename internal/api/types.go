package api

import (
	"time"

	"trader-core/internal/riskgate"
	"trader-core/pkg/core"
)

// DashboardSnapshot is the complete state a freshly-connected dashboard
// client (REST or WebSocket) receives.
type DashboardSnapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Positions []PositionSummary  `json:"positions"`
	Risk      RiskSummary        `json:"risk"`
	Equity    EquitySummary      `json:"equity"`
}

// PositionSummary is the dashboard's flattened view of one open position.
type PositionSummary struct {
	Ticker        string       `json:"ticker"`
	StrategyID    string       `json:"strategy_id"`
	Side          core.Side    `json:"side"`
	Quantity      core.Decimal `json:"quantity"`
	AvgEntryPrice core.Decimal `json:"avg_entry_price"`
	LastMarkPrice core.Decimal `json:"last_mark_price"`
	RealizedPnL   core.Decimal `json:"realized_pnl"`
	UnrealizedPnL core.Decimal `json:"unrealized_pnl"`
	OpenedAt      time.Time    `json:"opened_at"`
}

// NewPositionSummary flattens a core.Position for the wire.
func NewPositionSummary(p *core.Position) PositionSummary {
	return PositionSummary{
		Ticker:        p.Ticker.String(),
		StrategyID:    p.StrategyID,
		Side:          p.Side,
		Quantity:      p.Quantity,
		AvgEntryPrice: p.AvgEntryPrice,
		LastMarkPrice: p.LastMarkPrice,
		RealizedPnL:   p.RealizedPnL,
		UnrealizedPnL: p.UnrealizedPnL,
		OpenedAt:      p.OpenedAt,
	}
}

// RiskSummary is the dashboard's view of the Risk Gate's aggregate state.
type RiskSummary struct {
	DailyRealizedPnL   core.Decimal `json:"daily_realized_pnl"`
	DailyPnLFloor      core.Decimal `json:"daily_pnl_floor"`
	KillSwitchActive   bool         `json:"kill_switch_active"`
	KillSwitchUntil    time.Time    `json:"kill_switch_until,omitempty"`
	MaxOpenPositions   int          `json:"max_open_positions"`
	MaxPerTicker       int          `json:"max_per_ticker"`
	TotalExposureLimit core.Decimal `json:"total_exposure_limit"`
}

// NewRiskSummary converts a riskgate.Snapshot for the wire.
func NewRiskSummary(s riskgate.Snapshot) RiskSummary {
	return RiskSummary{
		DailyRealizedPnL:   s.DailyRealizedPnL,
		DailyPnLFloor:      s.DailyPnLFloor,
		KillSwitchActive:   s.KillSwitchActive,
		KillSwitchUntil:    s.KillSwitchUntil,
		MaxOpenPositions:   s.MaxOpenPositions,
		MaxPerTicker:       s.MaxPerTicker,
		TotalExposureLimit: s.TotalExposureLimit,
	}
}

// EquitySummary is the dashboard's headline equity-curve view: the latest
// point plus the running peak/drawdown the curve maintains.
type EquitySummary struct {
	CurrentEquity core.Decimal `json:"current_equity"`
	PeakEquity    core.Decimal `json:"peak_equity"`
	DrawdownPct   core.Decimal `json:"drawdown_pct"`
	PointCount    int          `json:"point_count"`
}

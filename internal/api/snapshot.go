package api

import (
	"context"
	"time"

	"trader-core/internal/riskgate"
	"trader-core/pkg/core"
)

// SyncEquityRequest is the body of POST /sync-equity.
type SyncEquityRequest struct {
	CredentialID    string    `json:"credential_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	UseMarketPrices bool      `json:"use_market_prices"`
}

// Provider is the capability the API server needs from the running core;
// handlers depend only on this interface, never on a concrete engine type.
type Provider interface {
	Positions() []*core.Position
	RiskSnapshot(now time.Time) riskgate.Snapshot
	EquitySummary() EquitySummary
	EquityPoints(from, to time.Time) []core.EquityPoint

	SubmitOrder(ctx context.Context, req core.OrderRequest) (*core.Order, error)
	SyncEquity(ctx context.Context, req SyncEquityRequest) error

	StartSimulation() error
	StopSimulation() error

	DashboardEvents() <-chan DashboardEvent
}

// BuildSnapshot aggregates state from the provider into a dashboard snapshot.
func BuildSnapshot(provider Provider) DashboardSnapshot {
	positions := provider.Positions()
	summaries := make([]PositionSummary, 0, len(positions))
	for _, p := range positions {
		summaries = append(summaries, NewPositionSummary(p))
	}

	return DashboardSnapshot{
		Timestamp: time.Now(),
		Positions: summaries,
		Risk:      NewRiskSummary(provider.RiskSnapshot(time.Now())),
		Equity:    provider.EquitySummary(),
	}
}

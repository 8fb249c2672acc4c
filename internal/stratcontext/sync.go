package stratcontext

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trader-core/pkg/core"
)

// AccountSource is the exchange-sync writer's data source: typically the
// venue provider's account/position query, fed in on its own ~5s cadence.
// Failures are logged and the previous snapshot is left in place.
type AccountSource interface {
	FetchAccounts(ctx context.Context) (map[core.Ticker]core.AccountSnapshot, error)
}

// Scorer is the analytics-sync writer's data source: anything that can
// produce a RouteState/GlobalScore per ticker. FlowScorer is the built-in
// implementation; tests and alternate analytics pipelines can substitute
// their own.
type Scorer interface {
	Score(ticker core.Ticker) (core.GlobalScore, core.RouteState)
	Tickers() []core.Ticker
}

// Sync owns the two independent periodic writers that keep a Context
// fresh: an exchange sync (~5s) and an analytics sync (~60s). Neither
// writer ever calls strategy code; they only swap Context entries.
type Sync struct {
	ctx               *Context
	accounts          AccountSource
	scorer            Scorer
	exchangeInterval  time.Duration
	analyticsInterval time.Duration
	logger            *slog.Logger
	wg                sync.WaitGroup
}

// NewSync builds a Sync. accounts may be nil to disable the exchange sync
// (e.g. in backtest/simulation mode with no live venue).
func NewSync(ctx *Context, accounts AccountSource, scorer Scorer, exchangeInterval, analyticsInterval time.Duration, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	if exchangeInterval <= 0 {
		exchangeInterval = 5 * time.Second
	}
	if analyticsInterval <= 0 {
		analyticsInterval = 60 * time.Second
	}
	return &Sync{
		ctx: ctx, accounts: accounts, scorer: scorer,
		exchangeInterval: exchangeInterval, analyticsInterval: analyticsInterval,
		logger: logger.With("component", "stratcontext.sync"),
	}
}

// Run launches both periodic loops and blocks until ctx is cancelled; each
// loop finishes its current cycle (best-effort) before exiting.
func (s *Sync) Run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runExchangeLoop(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runAnalyticsLoop(ctx)
	}()

	s.wg.Wait()
}

func (s *Sync) runExchangeLoop(ctx context.Context) {
	if s.accounts == nil {
		return
	}
	ticker := time.NewTicker(s.exchangeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exchangeCycle(ctx)
		}
	}
}

func (s *Sync) exchangeCycle(ctx context.Context) {
	snapshots, err := s.accounts.FetchAccounts(ctx)
	if err != nil {
		s.logger.Warn("exchange sync cycle failed, keeping previous snapshot", "error", err)
		return
	}
	for ticker, snap := range snapshots {
		s.ctx.setAccount(ticker, snap)
	}
}

func (s *Sync) runAnalyticsLoop(ctx context.Context) {
	if s.scorer == nil {
		return
	}
	ticker := time.NewTicker(s.analyticsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.analyticsCycle()
		}
	}
}

func (s *Sync) analyticsCycle() {
	for _, t := range s.scorer.Tickers() {
		score, route := s.scorer.Score(t)
		s.ctx.setAnalytics(t, route, score)
	}
}

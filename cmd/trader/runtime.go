package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trader-core/internal/api"
	"trader-core/internal/config"
	"trader-core/internal/coreerr"
	"trader-core/internal/equitycurve"
	"trader-core/internal/matching"
	"trader-core/internal/metrics"
	"trader-core/internal/position"
	"trader-core/internal/ratelimit"
	"trader-core/internal/riskgate"
	"trader-core/internal/store"
	"trader-core/internal/stratcontext"
	"trader-core/internal/stratengine"
	"trader-core/internal/venue"
	"trader-core/pkg/core"
)

// Runtime wires every core component into the single object the dashboard
// API depends on (api.Provider) and that owns the signal → order pipeline:
// MarketData -> StrategyEngine -> Signal -> RiskGate -> MatchingEngine.
type Runtime struct {
	cfg config.Config

	logger     *slog.Logger
	store      *store.Store
	gate       *riskgate.Gate
	matching   *matching.Engine
	positions  *position.Tracker
	stratCtx   *stratcontext.Context
	strategies *stratengine.Engine
	limiter    *ratelimit.Limiter
	connector  *venue.RESTConnector

	equityMu sync.RWMutex
	equity   *equitycurve.Curve

	lastPriceMu sync.RWMutex
	lastPrice   map[core.Ticker]core.Decimal

	events chan api.DashboardEvent

	runMu      sync.Mutex
	simCancel  context.CancelFunc
	simRunning bool
}

// NewRuntime constructs every component from cfg but starts nothing.
func NewRuntime(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	st, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	limiterCfg := ratelimit.DefaultConfig()
	if !cfg.RateLimit.Disabled {
		name, rpm, burst := cfg.RateLimit.RatelimitPreset()
		limiterCfg = ratelimit.NewConfig(rpm)
		if name == "strict" {
			limiterCfg = ratelimit.StrictConfig(rpm)
		} else if burst > 0 {
			limiterCfg.BurstSize = burst
		}
	}

	r := &Runtime{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		positions: position.New(position.Config{}),
		stratCtx:  stratcontext.New(),
		limiter:   ratelimit.New(limiterCfg),
		equity:    equitycurve.NewCurve(core.D(cfg.Simulation.InitialCapital)),
		lastPrice: make(map[core.Ticker]core.Decimal),
		events:    make(chan api.DashboardEvent, 256),
	}

	// MaxDailyLossPct is a percentage of starting equity; the gate checks
	// against the absolute daily realized P&L, so convert once here.
	initialCapital := core.D(cfg.Simulation.InitialCapital)
	dailyPnLFloor := core.D(cfg.Risk.MaxDailyLossPct).Div(core.Hundred).Mul(initialCapital).Neg()

	// MaxPositionPerTicker is configured as an absolute notional ceiling;
	// the gate's check is percentage-of-equity, so convert once here too.
	maxPositionPct := core.D(cfg.Risk.MaxPositionPerTicker).Div(initialCapital)

	r.gate = riskgate.New(riskgate.Limits{
		MaxPositionPctOfEquity: maxPositionPct,
		TotalExposureLimit:     core.D(cfg.Risk.MaxGlobalExposure),
		MaxOpenPositions:       cfg.Risk.MaxOpenPositions,
		MaxPerTicker:           1,
		DailyPnLFloor:          dailyPnLFloor,
		KillSwitchCooldown:     cfg.Risk.KillSwitchCooldown,
		DefaultRiskPct:         core.D(0.01),
	}, logger)

	matchingCfg := matching.Config{
		DefaultTickSize: core.D(0.01),
		TickSizes:       make(map[core.Ticker]core.Decimal),
		FeeRate:         core.D(cfg.Simulation.FeeRate),
		SlippageRate:    core.D(cfg.Simulation.SlippageRate),
	}
	for sym, tick := range cfg.Simulation.TickSizes {
		matchingCfg.TickSizes[core.NewTicker(sym, "USDT")] = core.D(tick)
	}
	r.matching = matching.New(matchingCfg, r.onFill)

	r.strategies = stratengine.New(stratengine.Config{
		MaxStrategies: cfg.Engine.MaxStrategies,
		DedupWindow:   cfg.Engine.DedupWindow,
		SignalBuffer:  cfg.Engine.MarketDataChannelCapacity,
	}, r.stratCtx, logger)

	if cfg.Venue.BaseURL != "" {
		r.connector = venue.NewRESTConnector(cfg.Venue.Name, venue.RESTConfig{
			BaseURL: cfg.Venue.BaseURL,
			Timeout: cfg.Venue.Timeout,
		}, logger)
	}

	for _, entry := range cfg.Strategies {
		impl, ok := stratengine.NewByID(entry.ID)
		if !ok {
			return nil, fmt.Errorf("runtime: no strategy factory registered for id %q", entry.ID)
		}
		paramsJSON, err := json.Marshal(entry.Params)
		if err != nil {
			return nil, fmt.Errorf("runtime: marshal params for strategy %q: %w", entry.ID, err)
		}
		if err := r.strategies.Register(entry.ID, impl, paramsJSON, entry.CustomName); err != nil {
			return nil, fmt.Errorf("runtime: register strategy %q: %w", entry.ID, err)
		}
		if err := r.strategies.Start(entry.ID); err != nil {
			return nil, fmt.Errorf("runtime: start strategy %q: %w", entry.ID, err)
		}
	}

	metrics.Init()

	return r, nil
}

// Shutdown releases the store handle. Caller must have already stopped the
// simulation loop.
func (r *Runtime) Shutdown() error {
	return r.store.Shutdown()
}

// --- api.Provider ---

func (r *Runtime) Positions() []*core.Position { return r.positions.All() }

func (r *Runtime) RiskSnapshot(now time.Time) riskgate.Snapshot { return r.gate.Snapshot(now) }

func (r *Runtime) EquitySummary() api.EquitySummary {
	r.equityMu.RLock()
	defer r.equityMu.RUnlock()
	current := r.equity.CurrentEquity()
	points := r.equity.EquitySeries()
	return api.EquitySummary{
		CurrentEquity: current,
		PeakEquity:    r.equity.PeakEquity,
		DrawdownPct:   drawdownPct(r.equity.PeakEquity, current),
		PointCount:    len(points),
	}
}

func (r *Runtime) EquityPoints(from, to time.Time) []core.EquityPoint {
	r.equityMu.RLock()
	defer r.equityMu.RUnlock()
	return r.equity.FilterRange(from, to)
}

func drawdownPct(peak, current core.Decimal) core.Decimal {
	if !peak.IsPositive() {
		return core.Zero
	}
	return peak.Sub(current).Div(peak).Mul(core.Hundred)
}

// SubmitOrder places a manual order directly against the matching engine,
// bypassing the Risk Gate: an operator-initiated override rather than a
// strategy-originated signal.
func (r *Runtime) SubmitOrder(ctx context.Context, req core.OrderRequest) (*core.Order, error) {
	return r.matching.Submit(req)
}

// SyncEquity refreshes the execution cache from the configured venue and
// rebuilds the equity curve from the refreshed rows.
func (r *Runtime) SyncEquity(ctx context.Context, req api.SyncEquityRequest) error {
	if r.connector == nil {
		return coreerr.New(coreerr.KindConfigInvalid, "runtime.SyncEquity")
	}

	rows, err := venue.SyncExecutionHistory(ctx, r.connector, req.StartDate, req.EndDate, r.cfg.Venue.IsISAccount)
	if err != nil {
		return err
	}
	for _, row := range rows {
		row.CredentialID = req.CredentialID
		if err := r.store.AppendExecution(row); err != nil {
			return fmt.Errorf("runtime: persist execution: %w", err)
		}
	}

	all, err := r.store.Executions()
	if err != nil {
		return fmt.Errorf("runtime: read executions: %w", err)
	}

	if !req.UseMarketPrices {
		return coreerr.New(coreerr.KindConfigInvalid, "runtime.SyncEquity: cash-flow mode is not implemented, use_market_prices must be true")
	}
	curve := equitycurve.Build(all, r.store, core.D(r.cfg.Simulation.InitialCapital))

	r.equityMu.Lock()
	r.equity = curve
	r.equityMu.Unlock()

	for _, p := range curve.FilterRange(time.Time{}, time.Now().AddDate(1, 0, 0)) {
		if err := r.store.SaveEquityPoint(p); err != nil {
			r.logger.Error("failed to persist equity point", "error", err)
		}
	}
	return nil
}

func (r *Runtime) StartSimulation() error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.simRunning {
		return coreerr.New(coreerr.KindAlreadyRunning, "runtime.StartSimulation")
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.simCancel = cancel
	r.simRunning = true
	go r.strategies.Run(ctx)
	go r.consumeSignals(ctx)
	r.logger.Info("simulation started")
	return nil
}

func (r *Runtime) StopSimulation() error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if !r.simRunning {
		return coreerr.New(coreerr.KindNotRunning, "runtime.StopSimulation")
	}
	r.simCancel()
	r.simRunning = false
	r.logger.Info("simulation stopped")
	return nil
}

func (r *Runtime) DashboardEvents() <-chan api.DashboardEvent { return r.events }

// IngestMarketData feeds one market data event through the matching engine
// (resting-order evaluation), the strategy engine (signal generation), and
// updates the local last-price cache the Risk Gate sizes against.
func (r *Runtime) IngestMarketData(event core.MarketDataEvent) {
	var ticker core.Ticker
	var price core.Decimal
	switch {
	case event.Kline != nil:
		ticker, price = event.Kline.Ticker, event.Kline.Close
		r.matching.SetLastPrice(ticker, price)
		fills := r.matching.OnCandle(*event.Kline)
		for _, f := range fills {
			r.broadcastFill(f)
		}
	case event.TickerSnap != nil:
		ticker, price = event.TickerSnap.Ticker, event.TickerSnap.LastPrice
		r.matching.SetLastPrice(ticker, price)
	default:
		return
	}

	r.lastPriceMu.Lock()
	r.lastPrice[ticker] = price
	r.lastPriceMu.Unlock()

	r.strategies.ProcessMarketData(event)
}

// consumeSignals drains the Strategy Engine's signal channel and pushes
// each surviving signal through the Risk Gate and, if allowed, the
// matching engine. Runs until ctx is cancelled.
func (r *Runtime) consumeSignals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-r.strategies.Signals():
			if !ok {
				return
			}
			r.handleSignal(sig)
		}
	}
}

func (r *Runtime) handleSignal(sig core.Signal) {
	open := r.positions.OpenByTicker(sig.Ticker)

	r.lastPriceMu.RLock()
	refPrice := r.lastPrice[sig.Ticker]
	r.lastPriceMu.RUnlock()

	stopDistance := core.Zero
	if sig.StopLossPrice != nil && refPrice.IsPositive() {
		stopDistance = refPrice.Sub(*sig.StopLossPrice).Abs()
	}

	decision := r.gate.Evaluate(sig, riskgate.SizingInput{
		ReferencePrice: refPrice,
		StopDistance:   stopDistance,
		Account:        r.accountSnapshot(),
		OpenPositions:  r.positions.All(),
		OpenOnTicker:   len(open),
	}, time.Now())

	if !decision.Allowed {
		metrics.RecordRiskRejection(string(decision.Reason))
		return
	}

	if _, err := r.matching.Submit(decision.Request); err != nil {
		r.logger.Error("order submit failed", "ticker", sig.Ticker.String(), "error", err)
	}
}

func (r *Runtime) accountSnapshot() core.AccountSnapshot {
	snap := r.gate.Snapshot(time.Now())
	return core.AccountSnapshot{
		Equity:           r.equity.CurrentEquity(),
		OpenExposure:     r.positions.TotalExposure(),
		OpenPositions:    r.positions.Count(),
		DailyRealizedPnL: snap.DailyRealizedPnL,
		SyncedAt:         time.Now(),
	}
}

// onFill is the matching engine's single post-fill hook: it folds the
// fill into the position tracker, records realized P&L against the Risk
// Gate's daily floor, notifies running strategies, and broadcasts to the
// dashboard. Must not block.
func (r *Runtime) onFill(fill core.Fill, order *core.Order) {
	metrics.RecordFill(string(order.Type), string(fill.Side))

	result, err := r.positions.ApplyFill(fill)
	if err != nil {
		r.logger.Error("position apply failed", "order_id", fill.OrderID, "error", err)
		return
	}
	if !result.RealizedDelta.IsZero() {
		r.gate.RecordRealizedPnL(result.RealizedDelta, time.Now())
	}

	r.strategies.NotifyOrderFilled(*order)
	if result.Position != nil {
		r.strategies.NotifyPositionUpdate(*result.Position)
	}

	r.broadcastFill(fill)
}

func (r *Runtime) broadcastFill(fill core.Fill) {
	select {
	case r.events <- api.DashboardEvent{Type: "fill", Timestamp: time.Now(), Ticker: fill.Ticker.String(), Data: api.NewFillEvent(fill)}:
	default:
		r.logger.Warn("dashboard event channel full, dropping fill event")
	}
}

// Package stratengine implements the Strategy Engine: the registry and
// single-writer dispatch loop that owns every running strategy instance,
// fans market data out to them, deduplicates their signals, and forwards
// the survivors to a signal channel for the Risk Gate to consume.
package stratengine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"trader-core/internal/coreerr"
	"trader-core/internal/stratcontext"
	"trader-core/pkg/core"
)

// Stats tracks per-strategy operational counters, readable by the
// dashboard without touching strategy internals.
type Stats struct {
	SignalsEmitted int
	LastError      error
	LastEventAt    time.Time
}

type registered struct {
	id         string
	impl       Strategy
	config     json.RawMessage
	customName string
	running    bool
	mtCfg      *MultiTimeframeConfig
	stats      Stats
}

// Config tunes the engine.
type Config struct {
	MaxStrategies  int
	DedupWindow    time.Duration
	Clock          Clock
	CandleHistory  int
	SignalBuffer   int
}

// Engine owns the strategy registry and the single dispatch path. Every
// mutating/dispatching method takes the exclusive lock for its full
// duration; strategy callbacks must not block or call back into the
// engine, matching spec.md's "one event at a time under an exclusive lock"
// discipline.
type Engine struct {
	mu         sync.Mutex
	cfg        Config
	strategies map[string]*registered
	ctx        *stratcontext.Context
	dedup      *dedupWindow
	candles    *candleStore
	signalCh   chan core.Signal
	logger     *slog.Logger
}

// New builds an Engine bound to a shared Strategy Context.
func New(cfg Config, sctx *stratcontext.Context, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 1000 * time.Millisecond
	}
	if cfg.SignalBuffer <= 0 {
		cfg.SignalBuffer = 256
	}
	return &Engine{
		cfg:        cfg,
		strategies: make(map[string]*registered),
		ctx:        sctx,
		dedup:      newDedupWindow(cfg.DedupWindow, cfg.Clock),
		candles:    newCandleStore(cfg.CandleHistory),
		signalCh:   make(chan core.Signal, cfg.SignalBuffer),
		logger:     logger.With("component", "stratengine"),
	}
}

// Signals returns the channel signals are forwarded to after dedup.
func (e *Engine) Signals() <-chan core.Signal { return e.signalCh }

// Register adds an inactive strategy instance under id.
func (e *Engine) Register(id string, impl Strategy, config json.RawMessage, customName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.strategies[id]; exists {
		return coreerr.New(coreerr.KindStrategyAlreadyExists, "stratengine.Register")
	}
	if e.cfg.MaxStrategies > 0 && len(e.strategies) >= e.cfg.MaxStrategies {
		return coreerr.New(coreerr.KindConfigInvalid, "stratengine.Register: registration cap reached")
	}
	impl.SetContext(e.ctx)
	r := &registered{id: id, impl: impl, config: config, customName: customName}
	if mt, ok := impl.(MultiTimeframeStrategy); ok {
		r.mtCfg = mt.MultiTimeframeConfig()
	}
	e.strategies[id] = r
	return nil
}

// Start calls the strategy's Initialize and marks it running on success.
func (e *Engine) Start(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.strategies[id]
	if !ok {
		return coreerr.New(coreerr.KindStrategyNotFound, "stratengine.Start")
	}
	if r.running {
		return coreerr.New(coreerr.KindAlreadyRunning, "stratengine.Start")
	}
	if err := r.impl.Initialize(r.config); err != nil {
		return coreerr.Wrap(coreerr.KindConfigInvalid, "stratengine.Start", err)
	}
	r.running = true
	return nil
}

// Stop calls the strategy's Shutdown and marks it not-running, retaining
// its stats.
func (e *Engine) Stop(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.strategies[id]
	if !ok {
		return coreerr.New(coreerr.KindStrategyNotFound, "stratengine.Stop")
	}
	if !r.running {
		return coreerr.New(coreerr.KindNotRunning, "stratengine.Stop")
	}
	r.impl.Shutdown()
	r.running = false
	return nil
}

// Unregister removes a not-running strategy.
func (e *Engine) Unregister(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.strategies[id]
	if !ok {
		return coreerr.New(coreerr.KindStrategyNotFound, "stratengine.Unregister")
	}
	if r.running {
		return coreerr.New(coreerr.KindAlreadyRunning, "stratengine.Unregister: stop before unregistering")
	}
	delete(e.strategies, id)
	return nil
}

// UpdateConfig swaps a strategy's config; if running, this is a hot reload
// (Initialize is called again on the same instance). If the new config
// carries a top-level "name" field, it becomes the strategy's custom_name.
func (e *Engine) UpdateConfig(id string, newConfig json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.strategies[id]
	if !ok {
		return coreerr.New(coreerr.KindStrategyNotFound, "stratengine.UpdateConfig")
	}
	r.config = newConfig
	if name, ok := extractName(newConfig); ok {
		r.customName = name
	}
	if r.running {
		if err := r.impl.Initialize(newConfig); err != nil {
			return coreerr.Wrap(coreerr.KindConfigInvalid, "stratengine.UpdateConfig", err)
		}
	}
	return nil
}

func extractName(config json.RawMessage) (string, bool) {
	var probe struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(config, &probe); err != nil || probe.Name == "" {
		return "", false
	}
	return probe.Name, true
}

// ProcessMarketData dispatches event to every running strategy, collects
// their signals, deduplicates them, and forwards survivors to the signal
// channel (non-blocking; a full channel drops the signal with a warning,
// matching the engine's drop-rather-than-stall discipline elsewhere).
func (e *Engine) ProcessMarketData(event core.MarketDataEvent) []core.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	if event.Kind == core.EventKline && event.Kline != nil {
		e.candles.append(*event.Kline)
	}

	var accepted []core.Signal
	for id, r := range e.strategies {
		if !r.running {
			continue
		}
		signals := e.dispatchOneLocked(r, event)
		r.stats.LastEventAt = time.Now()
		for _, sig := range signals {
			if !e.dedup.allow(sig.DedupKey()) {
				continue
			}
			r.stats.SignalsEmitted++
			accepted = append(accepted, sig)
			select {
			case e.signalCh <- sig:
			default:
				e.logger.Warn("signal channel full, dropping signal", "strategy", id, "ticker", sig.Ticker.String())
			}
		}
	}
	return accepted
}

// dispatchOneLocked calls the strategy's data callback, isolating any
// thrown error so one strategy cannot poison the dispatch of others.
func (e *Engine) dispatchOneLocked(r *registered, event core.MarketDataEvent) (signals []core.Signal) {
	defer func() {
		if rec := recover(); rec != nil {
			r.stats.LastError = coreerr.New(coreerr.KindInternal, "stratengine.dispatch")
			e.logger.Error("strategy panicked during market data dispatch", "strategy", r.id, "panic", rec)
			signals = nil
		}
	}()

	if r.mtCfg != nil {
		mt := r.impl.(MultiTimeframeStrategy)
		if event.Kind != core.EventKline || event.Kline == nil || event.Kline.Timeframe != r.mtCfg.Primary {
			return nil
		}
		recent := make(map[core.Timeframe][]core.Candle, len(r.mtCfg.CandleCounts))
		for tf, n := range r.mtCfg.CandleCounts {
			recent[tf] = e.candles.recent(event.Kline.Ticker, tf, n)
		}
		return mt.OnMultiTimeframeData(*event.Kline, recent)
	}
	return r.impl.OnMarketData(event)
}

// NotifyOrderFilled fans an execution out to every running strategy.
func (e *Engine) NotifyOrderFilled(order core.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.strategies {
		if r.running {
			r.impl.OnOrderFilled(order)
		}
	}
}

// NotifyPositionUpdate fans a position change out to every running strategy.
func (e *Engine) NotifyPositionUpdate(position core.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.strategies {
		if r.running {
			r.impl.OnPositionUpdate(position)
		}
	}
}

// StatsOf returns a copy of id's current stats.
func (e *Engine) StatsOf(id string) (Stats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.strategies[id]
	if !ok {
		return Stats{}, false
	}
	return r.stats, true
}

// Run blocks pruning the dedup window on a fixed cadence until ctx is
// cancelled, then stops every running strategy.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.DedupWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.stopAll()
			return
		case <-ticker.C:
			e.dedup.prune()
		}
	}
}

func (e *Engine) stopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.strategies {
		if r.running {
			r.impl.Shutdown()
			r.running = false
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"trader-core/internal/api"
	"trader-core/internal/config"
	"trader-core/internal/coreerr"
	"trader-core/internal/stratcontext"
	"trader-core/internal/stratengine"
	"trader-core/pkg/core"
)

// fakeStrategy emits one ENTRY signal the first time it sees a Kline event,
// then stays silent. Registered under a test-only factory id so it never
// collides with a real built-in strategy.
type fakeStrategy struct {
	fired bool
}

func (s *fakeStrategy) Initialize(cfg json.RawMessage) error { return nil }
func (s *fakeStrategy) SetContext(ctx *stratcontext.Context) {}
func (s *fakeStrategy) OnOrderFilled(order core.Order)        {}
func (s *fakeStrategy) OnPositionUpdate(position core.Position) {}
func (s *fakeStrategy) Shutdown()                             {}

func (s *fakeStrategy) OnMarketData(event core.MarketDataEvent) []core.Signal {
	if s.fired || event.Kline == nil {
		return nil
	}
	s.fired = true
	return []core.Signal{{
		Type:       core.SignalEntry,
		Ticker:     event.Kline.Ticker,
		Side:       core.Buy,
		StrategyID: "test-fake",
		Quantity:   decimalPtr(core.D(1)),
	}}
}

func decimalPtr(d core.Decimal) *core.Decimal { return &d }

func init() {
	stratengine.RegisterFactory("test-fake", func() stratengine.Strategy { return &fakeStrategy{} })
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Engine: config.EngineConfig{
			DedupWindow:               time.Minute,
			MaxStrategies:             5,
			MarketDataChannelCapacity: 64,
		},
		Risk: config.RiskConfig{
			MaxPositionPerTicker: 5000,
			MaxGlobalExposure:    20000,
			MaxOpenPositions:     10,
			MaxDailyLossPct:      5,
			KillSwitchCooldown:   time.Hour,
		},
		RateLimit: config.RateLimitConfig{Disabled: true},
		Store:     config.StoreConfig{DSN: filepath.Join(t.TempDir(), "test.db")},
		Dashboard: config.DashboardConfig{Enabled: false},
		Logging:   config.LoggingConfig{Level: "error", Format: "text"},
		Simulation: config.SimulationConfig{
			FeeRate:        0.001,
			SlippageRate:   0,
			TickSizes:      map[string]float64{"BTC": 0.01},
			InitialCapital: 10000,
		},
		Strategies: []config.StrategyConfig{
			{ID: "test-fake", CustomName: "fake-1"},
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRuntimeRegistersConfiguredStrategies(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Shutdown()

	if _, ok := rt.strategies.StatsOf("test-fake"); !ok {
		t.Fatalf("expected strategy %q to be registered", "test-fake")
	}
}

func TestNewRuntimeUnknownStrategyIDFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategies = []config.StrategyConfig{{ID: "does-not-exist"}}
	if _, err := NewRuntime(cfg, testLogger()); err == nil {
		t.Fatal("expected NewRuntime to fail for an unregistered strategy id")
	}
}

func TestIngestMarketDataProducesFillThroughSignalPipeline(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Shutdown()

	ticker := core.NewTicker("BTC", "USDT")
	candle := core.Candle{
		Ticker: ticker, Timeframe: core.M1,
		Open: core.D(100), High: core.D(101), Low: core.D(99), Close: core.D(100),
		OpenTime: time.Now(), CloseTime: time.Now(),
	}
	rt.IngestMarketData(core.MarketDataEvent{Kind: core.EventKline, Kline: &candle})

	// ProcessMarketData pushed the fake strategy's signal onto the signal
	// channel synchronously; drain and process it directly rather than
	// starting the background consumeSignals loop, to keep the test
	// deterministic.
	select {
	case sig := <-rt.strategies.Signals():
		rt.handleSignal(sig)
	case <-time.After(time.Second):
		t.Fatal("expected a signal from the fake strategy")
	}

	positions := rt.Positions()
	if len(positions) != 1 {
		t.Fatalf("expected 1 open position after the signal was filled, got %d", len(positions))
	}
	if !positions[0].Quantity.Equal(core.D(1)) {
		t.Fatalf("expected quantity 1, got %s", positions[0].Quantity.String())
	}
}

func TestSubmitOrderBypassesRiskGate(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Shutdown()

	ticker := core.NewTicker("ETH", "USDT")
	rt.matching.SetLastPrice(ticker, core.D(2000))

	// A quantity whose notional exceeds MaxPositionPerTicker would be
	// rejected by the Risk Gate, but SubmitOrder is an operator override
	// that talks straight to the matching engine.
	order, err := rt.SubmitOrder(context.Background(), core.OrderRequest{
		Ticker: ticker, Side: core.Buy, Type: core.OrderMarket, Quantity: core.D(100),
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if order.Status != core.OrderFilled {
		t.Fatalf("expected market order to fill immediately, got status %v", order.Status)
	}
}

func TestStartStopSimulationDoubleCallsRejected(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Shutdown()

	if err := rt.StartSimulation(); err != nil {
		t.Fatalf("StartSimulation: %v", err)
	}
	if err := rt.StartSimulation(); !coreerr.Is(err, coreerr.KindAlreadyRunning) {
		t.Fatalf("expected KindAlreadyRunning on double start, got %v", err)
	}
	if err := rt.StopSimulation(); err != nil {
		t.Fatalf("StopSimulation: %v", err)
	}
	if err := rt.StopSimulation(); !coreerr.Is(err, coreerr.KindNotRunning) {
		t.Fatalf("expected KindNotRunning on double stop, got %v", err)
	}
}

func TestSyncEquityRequiresConfiguredVenue(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Shutdown()

	err = rt.SyncEquity(context.Background(), api.SyncEquityRequest{UseMarketPrices: true})
	if !coreerr.Is(err, coreerr.KindConfigInvalid) {
		t.Fatalf("expected KindConfigInvalid without a configured venue, got %v", err)
	}
}

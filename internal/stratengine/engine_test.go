package stratengine

import (
	"encoding/json"
	"testing"
	"time"

	"trader-core/internal/stratcontext"
	"trader-core/pkg/core"
)

type fakeStrategy struct {
	initErr   error
	signal    *core.Signal
	sctx      *stratcontext.Context
	filled    []core.Order
	shutdowns int
}

func (f *fakeStrategy) Initialize(json.RawMessage) error { return f.initErr }
func (f *fakeStrategy) OnMarketData(core.MarketDataEvent) []core.Signal {
	if f.signal == nil {
		return nil
	}
	return []core.Signal{*f.signal}
}
func (f *fakeStrategy) OnOrderFilled(o core.Order)         { f.filled = append(f.filled, o) }
func (f *fakeStrategy) OnPositionUpdate(core.Position)     {}
func (f *fakeStrategy) Shutdown()                          { f.shutdowns++ }
func (f *fakeStrategy) SetContext(ctx *stratcontext.Context) { f.sctx = ctx }

func testSignal(ticker core.Ticker) core.Signal {
	return core.Signal{Type: core.SignalEntry, Ticker: ticker, Side: core.Buy, StrategyID: "grid-1"}
}

func TestRegisterStartDispatchStop(t *testing.T) {
	t.Parallel()
	sctx := stratcontext.New()
	e := New(Config{}, sctx, nil)
	ticker := core.NewTicker("BTC", "USDT")
	sig := testSignal(ticker)
	strat := &fakeStrategy{signal: &sig}

	if err := e.Register("grid-1", strat, nil, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := e.Start("grid-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if strat.sctx != sctx {
		t.Error("expected SetContext to be called with the shared context")
	}

	signals := e.ProcessMarketData(core.MarketDataEvent{Kind: core.EventTicker})
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}

	if err := e.Stop("grid-1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if strat.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", strat.shutdowns)
	}

	// Not running: should no longer receive events.
	signals = e.ProcessMarketData(core.MarketDataEvent{Kind: core.EventTicker})
	if len(signals) != 0 {
		t.Fatalf("expected no signals while stopped, got %d", len(signals))
	}
}

func TestDoubleRegisterRejected(t *testing.T) {
	t.Parallel()
	sctx := stratcontext.New()
	e := New(Config{}, sctx, nil)
	strat := &fakeStrategy{}
	if err := e.Register("grid-1", strat, nil, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := e.Register("grid-1", strat, nil, ""); err == nil {
		t.Fatal("expected AlreadyExists error on duplicate register")
	}
}

func TestDedupCollapsesIdenticalSignalsWithinWindow(t *testing.T) {
	t.Parallel()
	sctx := stratcontext.New()
	ticker := core.NewTicker("BTC", "USDT")
	sig := testSignal(ticker)
	strat := &fakeStrategy{signal: &sig}

	now := time.Unix(0, 0)
	clock := &manualClock{t: now}
	e := New(Config{DedupWindow: time.Second, Clock: clock}, sctx, nil)
	_ = e.Register("grid-1", strat, nil, "")
	_ = e.Start("grid-1")

	first := e.ProcessMarketData(core.MarketDataEvent{Kind: core.EventTicker})
	second := e.ProcessMarketData(core.MarketDataEvent{Kind: core.EventTicker})
	if len(first) != 1 || len(second) != 0 {
		t.Fatalf("expected first delivery then suppression, got %d then %d", len(first), len(second))
	}

	clock.t = clock.t.Add(2 * time.Second)
	third := e.ProcessMarketData(core.MarketDataEvent{Kind: core.EventTicker})
	if len(third) != 1 {
		t.Fatalf("expected delivery after window elapses, got %d", len(third))
	}
}

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time { return c.t }

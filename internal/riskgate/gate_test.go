package riskgate

import (
	"testing"
	"time"

	"trader-core/pkg/core"
)

func testLimits() Limits {
	return Limits{
		MaxPositionPctOfEquity: core.D(0.5),
		TotalExposureLimit:     core.D(100000),
		MaxOpenPositions:       5,
		MaxPerTicker:           1,
		DailyPnLFloor:          core.D(-1000),
		KillSwitchCooldown:     time.Hour,
		DefaultRiskPct:         core.D(0.01),
	}
}

func testSignal() core.Signal {
	return core.Signal{
		Type: core.SignalEntry, Ticker: core.NewTicker("BTC", "USDT"),
		Side: core.Buy, StrategyID: "grid-1",
	}
}

func TestEvaluateAllowsWithinLimits(t *testing.T) {
	t.Parallel()
	g := New(testLimits(), nil)
	sig := testSignal()
	qty := core.D(0.1)
	sig.Quantity = &qty

	dec := g.Evaluate(sig, SizingInput{
		ReferencePrice: core.D(50000),
		Account:        core.AccountSnapshot{Equity: core.D(100000)},
	}, time.Now())

	if !dec.Allowed {
		t.Fatalf("expected allowed, got reject reason %q", dec.Reason)
	}
	if !dec.Request.Quantity.Equal(qty) {
		t.Errorf("request quantity = %v, want %v", dec.Request.Quantity, qty)
	}
}

func TestEvaluateRejectsOverExposedPosition(t *testing.T) {
	t.Parallel()
	g := New(testLimits(), nil)
	sig := testSignal()
	qty := core.D(10) // 10 * 50000 = 500000, way over 50% of 100000 equity
	sig.Quantity = &qty

	dec := g.Evaluate(sig, SizingInput{
		ReferencePrice: core.D(50000),
		Account:        core.AccountSnapshot{Equity: core.D(100000)},
	}, time.Now())

	if dec.Allowed || dec.Reason != RejectPositionSizeExceeded {
		t.Fatalf("expected RejectPositionSizeExceeded, got %+v", dec)
	}
}

func TestEvaluateRejectsPerTickerCap(t *testing.T) {
	t.Parallel()
	g := New(testLimits(), nil)
	sig := testSignal()
	qty := core.D(0.01)
	sig.Quantity = &qty

	dec := g.Evaluate(sig, SizingInput{
		ReferencePrice: core.D(50000),
		Account:        core.AccountSnapshot{Equity: core.D(100000)},
		OpenOnTicker:   1, // already at MaxPerTicker
	}, time.Now())

	if dec.Allowed || dec.Reason != RejectPerTickerCapExceeded {
		t.Fatalf("expected RejectPerTickerCapExceeded, got %+v", dec)
	}
}

func TestKillSwitchTripsAndExpires(t *testing.T) {
	t.Parallel()
	limits := testLimits()
	limits.KillSwitchCooldown = time.Millisecond
	g := New(limits, nil)
	now := time.Now()

	g.RecordRealizedPnL(core.D(-1500), now)

	sig := testSignal()
	qty := core.D(0.01)
	sig.Quantity = &qty
	dec := g.Evaluate(sig, SizingInput{ReferencePrice: core.D(50000), Account: core.AccountSnapshot{Equity: core.D(100000)}}, now)
	if dec.Allowed || dec.Reason != RejectKillSwitchActive {
		t.Fatalf("expected kill switch active, got %+v", dec)
	}

	later := now.Add(time.Second)
	dec = g.Evaluate(sig, SizingInput{ReferencePrice: core.D(50000), Account: core.AccountSnapshot{Equity: core.D(100000)}}, later)
	if !dec.Allowed {
		t.Fatalf("expected kill switch to have expired, got %+v", dec)
	}
}

func TestSizingFallsBackToFixedFractional(t *testing.T) {
	t.Parallel()
	g := New(testLimits(), nil)
	sig := testSignal() // no explicit Quantity

	dec := g.Evaluate(sig, SizingInput{
		ReferencePrice: core.D(50000),
		StopDistance:   core.D(1000),
		Account:        core.AccountSnapshot{Equity: core.D(100000)},
	}, time.Now())

	// sized = 100000 * 0.01 / 1000 = 1
	if !dec.Allowed {
		t.Fatalf("expected allowed, got %+v", dec)
	}
	if !dec.Request.Quantity.Equal(core.D(1)) {
		t.Errorf("sized quantity = %v, want 1", dec.Request.Quantity)
	}
}

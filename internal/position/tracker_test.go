package position

import (
	"testing"
	"time"

	"trader-core/pkg/core"
)

func fill(ticker core.Ticker, side core.Side, price, qty float64, at time.Time) core.Fill {
	return core.Fill{
		ID: "f", OrderID: "o", Ticker: ticker, Side: side,
		Price: core.D(price), Quantity: core.D(qty), StrategyID: "grid-1", Timestamp: at,
	}
}

func TestVolumeWeightedEntry(t *testing.T) {
	t.Parallel()
	tr := New(Config{})
	ticker := core.NewTicker("BTC", "USDT")
	now := time.Now()

	res, err := tr.ApplyFill(fill(ticker, core.Buy, 50000, 0.1, now))
	if err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if !res.Position.AvgEntryPrice.Equal(core.D(50000)) {
		t.Fatalf("entry after first fill = %v", res.Position.AvgEntryPrice)
	}

	res, err = tr.ApplyFill(fill(ticker, core.Buy, 52000, 0.1, now.Add(time.Minute)))
	if err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if !res.Position.AvgEntryPrice.Equal(core.D(51000)) {
		t.Errorf("entry_price = %v, want 51000", res.Position.AvgEntryPrice)
	}
	if !res.Position.Quantity.Equal(core.D(0.2)) {
		t.Errorf("quantity = %v, want 0.2", res.Position.Quantity)
	}
}

func TestReduceClosesPositionAndRealizesPnL(t *testing.T) {
	t.Parallel()
	tr := New(Config{})
	ticker := core.NewTicker("BTC", "USDT")
	now := time.Now()

	if _, err := tr.ApplyFill(fill(ticker, core.Buy, 50000, 0.1, now)); err != nil {
		t.Fatalf("open: %v", err)
	}
	res, err := tr.ApplyFill(fill(ticker, core.Sell, 51000, 0.1, now.Add(time.Minute)))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if res.Position != nil {
		t.Fatalf("expected position closed, got %+v", res.Position)
	}
	if !res.RealizedDelta.Equal(core.D(100)) {
		t.Errorf("realized pnl = %v, want 100", res.RealizedDelta)
	}
	if _, ok := tr.Open(ticker, "grid-1"); ok {
		t.Error("expected no open position after full close")
	}
}

func TestOverflowReduceTruncatesByDefault(t *testing.T) {
	t.Parallel()
	tr := New(Config{})
	ticker := core.NewTicker("BTC", "USDT")
	now := time.Now()

	if _, err := tr.ApplyFill(fill(ticker, core.Buy, 50000, 0.1, now)); err != nil {
		t.Fatalf("open: %v", err)
	}
	res, err := tr.ApplyFill(fill(ticker, core.Sell, 51000, 0.3, now.Add(time.Minute)))
	if err == nil {
		t.Fatal("expected InsufficientQuantity error")
	}
	if !res.Excess.Equal(core.D(0.2)) {
		t.Errorf("excess = %v, want 0.2", res.Excess)
	}
}

func TestBoundedEventRing(t *testing.T) {
	t.Parallel()
	tr := New(Config{MaxEvents: 3})
	ticker := core.NewTicker("BTC", "USDT")
	now := time.Now()

	res, _ := tr.ApplyFill(fill(ticker, core.Buy, 50000, 0.1, now))
	id := res.Position.ID
	for i := 0; i < 5; i++ {
		tr.MarkPrice(ticker, "grid-1", core.D(50000+float64(i)), now.Add(time.Duration(i)*time.Second))
	}
	events := tr.Events(id)
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
}

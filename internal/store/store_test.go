package store

import (
	"path/filepath"
	"testing"
	"time"

	"trader-core/pkg/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Shutdown() })
	return s
}

func TestAppendAndReadExecutionsInOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ticker := core.NewTicker("BTC", "USDT")

	second := core.ExecutionCacheRow{
		CredentialID: "acct-1", OrderID: "order-2",
		Ticker: ticker, StrategyID: "grid", Side: core.Sell, Price: core.D(51000),
		Quantity: core.D(0.1), Fee: core.D(1), RealizedPnL: core.D(100),
		ExecutedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	first := core.ExecutionCacheRow{
		CredentialID: "acct-1", OrderID: "order-1",
		Ticker: ticker, StrategyID: "grid", Side: core.Buy, Price: core.D(50000),
		Quantity: core.D(0.1), Fee: core.D(1), RealizedPnL: core.Zero,
		ExecutedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := s.AppendExecution(second); err != nil {
		t.Fatalf("AppendExecution: %v", err)
	}
	if err := s.AppendExecution(first); err != nil {
		t.Fatalf("AppendExecution: %v", err)
	}

	rows, err := s.Executions()
	if err != nil {
		t.Fatalf("Executions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !rows[0].ExecutedAt.Equal(first.ExecutedAt) {
		t.Errorf("expected chronological order, first row = %v", rows[0].ExecutedAt)
	}
	if !rows[0].Price.Equal(core.D(50000)) {
		t.Errorf("price round-trip = %s, want 50000", rows[0].Price)
	}
}

func TestAppendExecutionUpsertsOnCredentialOrderExecutedAt(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ticker := core.NewTicker("BTC", "USDT")
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	row := core.ExecutionCacheRow{
		CredentialID: "acct-1", OrderID: "order-1",
		Ticker: ticker, StrategyID: "grid", Side: core.Buy, Price: core.D(50000),
		Quantity: core.D(0.1), Fee: core.D(1), RealizedPnL: core.Zero, ExecutedAt: at,
	}
	if err := s.AppendExecution(row); err != nil {
		t.Fatalf("AppendExecution: %v", err)
	}

	// Re-syncing the same (credential_id, order_id, executed_at) with an
	// updated price must update the row in place, not duplicate it.
	row.Price = core.D(50500)
	if err := s.AppendExecution(row); err != nil {
		t.Fatalf("AppendExecution (re-sync): %v", err)
	}

	rows, err := s.Executions()
	if err != nil {
		t.Fatalf("Executions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (re-sync should upsert, not duplicate)", len(rows))
	}
	if !rows[0].Price.Equal(core.D(50500)) {
		t.Errorf("price after upsert = %s, want 50500", rows[0].Price)
	}
}

func TestSaveCloseUpsertsAndCloseLooksUpByDay(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ticker := core.NewTicker("AAPL", "USD")
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	candle := core.Candle{
		Ticker: ticker, Timeframe: core.D1, OpenTime: day, CloseTime: day.Add(24 * time.Hour),
		Open: core.D(100), High: core.D(105), Low: core.D(99), Close: core.D(102), Volume: core.D(1000),
	}
	if err := s.SaveClose(candle); err != nil {
		t.Fatalf("SaveClose: %v", err)
	}

	price, ok := s.Close(ticker, day)
	if !ok {
		t.Fatal("expected a close to be found")
	}
	if !price.Equal(core.D(102)) {
		t.Errorf("close = %s, want 102", price)
	}

	candle.Close = core.D(110)
	if err := s.SaveClose(candle); err != nil {
		t.Fatalf("SaveClose (update): %v", err)
	}
	price, _ = s.Close(ticker, day)
	if !price.Equal(core.D(110)) {
		t.Errorf("close after upsert = %s, want 110", price)
	}

	if _, ok := s.Close(ticker, day.AddDate(0, 0, 1)); ok {
		t.Error("expected no close for a day with no saved candle")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if _, ok := s.Meta("cursor"); ok {
		t.Error("expected no value for an unset key")
	}
	if err := s.SetMeta("cursor", "42"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	value, ok := s.Meta("cursor")
	if !ok || value != "42" {
		t.Errorf("Meta(cursor) = %q, %v, want 42, true", value, ok)
	}
	if err := s.SetMeta("cursor", "43"); err != nil {
		t.Fatalf("SetMeta (update): %v", err)
	}
	value, _ = s.Meta("cursor")
	if value != "43" {
		t.Errorf("Meta(cursor) after update = %q, want 43", value)
	}
}

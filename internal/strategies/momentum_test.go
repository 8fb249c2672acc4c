package strategies

import (
	"encoding/json"
	"testing"
	"time"

	"trader-core/pkg/core"
)

func dailyCandle(ticker core.Ticker, close float64, at time.Time) core.MarketDataEvent {
	return core.MarketDataEvent{
		Kind: core.EventKline,
		Kline: &core.Candle{
			Ticker: ticker, Timeframe: core.D1,
			Open: core.D(close), High: core.D(close + 1), Low: core.D(close - 1), Close: core.D(close),
			OpenTime: at, CloseTime: at.Add(24 * time.Hour),
		},
	}
}

func TestMarketCapTopRebalancesOnFirstDayOfMonth(t *testing.T) {
	t.Parallel()
	a := core.NewTicker("AAA", "USD")
	b := core.NewTicker("BBB", "USD")
	m := &MomentumRebalancer{variant: variantMarketCapTop}
	cfg := MomentumConfig{Offensive: []core.Ticker{a, b}, TopN: 1}
	raw, _ := json.Marshal(cfg)
	if err := m.Initialize(raw); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var lastSignals []core.Signal
	day := start
	price := 100.0
	for i := 0; i < 400; i++ {
		lastSignals = m.OnMarketData(dailyCandle(a, price, day))
		m.OnMarketData(dailyCandle(b, 100, day))
		isFirstOfMonth := day.Day() == 1
		day = day.AddDate(0, 0, 1)
		price += 0.5 // A trends up relative to flat B
		if i > 31 && isFirstOfMonth && len(lastSignals) > 0 {
			break
		}
	}
	if len(lastSignals) == 0 {
		t.Fatal("expected a rebalance signal on a month boundary")
	}
}

func TestNormalizeAndTopAsWeightsSumToOne(t *testing.T) {
	t.Parallel()
	ranked := []core.Ticker{core.NewTicker("A", "USD"), core.NewTicker("B", "USD")}
	targets := topAsWeights(ranked, 2)
	sum := core.Zero
	for _, tg := range targets {
		sum = sum.Add(tg.Weight)
	}
	if !sum.Equal(core.One) {
		t.Errorf("weights sum to %s, want 1", sum)
	}
}

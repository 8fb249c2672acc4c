package strategies

import (
	"encoding/json"
	"testing"
	"time"

	"trader-core/pkg/core"
)

func closesCandles(ticker core.Ticker, tf core.Timeframe, closes []float64) []core.Candle {
	out := make([]core.Candle, len(closes))
	base := time.Now().Add(-time.Duration(len(closes)) * tf.Duration())
	for i, c := range closes {
		out[i] = core.Candle{
			Ticker: ticker, Timeframe: tf,
			Open: core.D(c), High: core.D(c + 1), Low: core.D(c - 1), Close: core.D(c),
			OpenTime: base.Add(time.Duration(i) * tf.Duration()), CloseTime: base.Add(time.Duration(i+1) * tf.Duration()),
		}
	}
	return out
}

// Seed scenario 5: D1 closes rise steadily (RSI 100, trend up), H1 closes
// fall steadily (RSI 0, oversold), and M5 RSI moves from 0 on the priming
// bar to about 78 on the bounce bar, crossing up through 30. Expect no
// signal on the priming bar and exactly one Buy entry on the bounce bar.
// Replaying the bounce is not covered here; collapsing a repeated signal is
// the engine's dedup job, not the strategy's.
func TestMultiTFRSILongEntrySeedScenario(t *testing.T) {
	t.Parallel()
	ticker := core.NewTicker("BTC", "USDT")
	r := &MultiTFRSI{}
	cfg := MultiTFRSIConfig{Ticker: ticker, Quantity: 0.01}
	raw, _ := json.Marshal(cfg)
	if err := r.Initialize(raw); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	d1 := make([]float64, 15)
	for i := range d1 {
		d1[i] = 100 + float64(i)
	}
	h1 := make([]float64, 15)
	for i := range h1 {
		h1[i] = 100 - float64(i)
	}

	m5First := make([]float64, 16)
	for i := range m5First {
		m5First[i] = 100 - float64(i)
	}
	primary := closesCandles(ticker, core.M5, []float64{m5First[len(m5First)-1]})[0]

	first := r.OnMultiTimeframeData(primary, map[core.Timeframe][]core.Candle{
		core.M5: closesCandles(ticker, core.M5, m5First),
		core.H1: closesCandles(ticker, core.H1, h1),
		core.D1: closesCandles(ticker, core.D1, d1),
	})
	if len(first) != 0 {
		t.Fatalf("expected no signal on the first (priming) bar, got %d", len(first))
	}

	m5Second := append([]float64(nil), m5First[1:]...)
	m5Second = append(m5Second, 130) // sharp bounce

	second := r.OnMultiTimeframeData(primary, map[core.Timeframe][]core.Candle{
		core.M5: closesCandles(ticker, core.M5, m5Second),
		core.H1: closesCandles(ticker, core.H1, h1),
		core.D1: closesCandles(ticker, core.D1, d1),
	})
	if len(second) != 1 {
		t.Fatalf("expected exactly one entry signal on the bounce bar, got %d", len(second))
	}
	if second[0].Side != core.Buy || second[0].Type != core.SignalEntry {
		t.Errorf("expected a Buy entry signal, got %+v", second[0])
	}
}

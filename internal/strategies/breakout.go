package strategies

import (
	"encoding/json"
	"fmt"
	"time"

	"trader-core/internal/stratcontext"
	"trader-core/internal/stratengine"
	"trader-core/pkg/core"
)

func init() {
	stratengine.RegisterFactory("volatility-breakout", func() stratengine.Strategy { return &Breakout{} })
}

// BreakoutConfig configures one Breakout instance.
type BreakoutConfig struct {
	Ticker       core.Ticker `json:"ticker"`
	K            float64     `json:"k"`               // range multiplier for the breakout levels
	StopMult     float64     `json:"stop_mult"`
	TPMult       float64     `json:"tp_mult"`
	UseATR       bool        `json:"use_atr"`
	ATRPeriod    int         `json:"atr_period"`
	VolumeFilter bool        `json:"volume_filter"`
	VolumeMult   float64     `json:"volume_mult"`
	Quantity     float64     `json:"quantity"`
}

// Breakout implements the Larry Williams volatility-breakout strategy: on
// each period it projects upper/lower trigger levels from the previous
// period's range, and fires at most one entry per period on first crossing.
type Breakout struct {
	cfg       BreakoutConfig
	history   []core.Candle
	triggered bool
	inPos     bool
}

func (b *Breakout) Initialize(raw json.RawMessage) error {
	var cfg BreakoutConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("volatility-breakout: invalid config: %w", err)
	}
	if cfg.K <= 0 {
		return fmt.Errorf("volatility-breakout: k must be positive")
	}
	b.cfg = cfg
	return nil
}

func (b *Breakout) SetContext(*stratcontext.Context) {}
func (b *Breakout) OnOrderFilled(core.Order)          {}
func (b *Breakout) OnPositionUpdate(p core.Position)  { b.inPos = p.IsOpen() }
func (b *Breakout) Shutdown()                         {}

func (b *Breakout) OnMarketData(event core.MarketDataEvent) []core.Signal {
	if event.Kind != core.EventKline || event.Kline == nil || event.Kline.Ticker != b.cfg.Ticker {
		return nil
	}
	candle := *event.Kline
	prev := b.history
	b.history = append(b.history, candle)
	if len(b.history) > 256 {
		b.history = b.history[len(b.history)-256:]
	}
	// New period: reset the triggered flag and flatten (flattening itself is
	// the order/risk layer's job; the strategy only emits the exit signal).
	var signals []core.Signal
	if b.triggered {
		b.triggered = false
		if b.inPos {
			signals = append(signals, core.Signal{
				Type: core.SignalExit, Ticker: b.cfg.Ticker, StrategyID: "volatility-breakout",
				ReasonCode: reason("period_close"), Timeframe: candle.Timeframe, GeneratedAt: time.Now(),
			})
		}
	}
	if len(prev) == 0 {
		return signals
	}

	var rng core.Decimal
	if b.cfg.UseATR {
		period := b.cfg.ATRPeriod
		if period <= 0 {
			period = 14
		}
		a, ok := atr(prev, period)
		if !ok {
			return signals
		}
		rng = a
	} else {
		last := prev[len(prev)-1]
		rng = last.High.Sub(last.Low)
	}

	if b.cfg.VolumeFilter {
		avgVol, ok := smaVolume(prev, 20)
		if !ok || candle.Volume.LessThan(avgVol.Mul(core.D(b.cfg.VolumeMult))) {
			return signals
		}
	}

	upper := candle.Open.Add(rng.Mul(core.D(b.cfg.K)))
	lower := candle.Open.Sub(rng.Mul(core.D(b.cfg.K)))

	switch {
	case candle.High.GreaterThan(upper):
		b.triggered = true
		entry := upper
		stop := entry.Sub(rng.Mul(core.D(b.cfg.StopMult)))
		tp := entry.Add(rng.Mul(core.D(b.cfg.TPMult)))
		signals = append(signals, b.entrySignal(core.Buy, entry, stop, tp, candle.Timeframe))
	case candle.Low.LessThan(lower):
		b.triggered = true
		entry := lower
		stop := entry.Add(rng.Mul(core.D(b.cfg.StopMult)))
		tp := entry.Sub(rng.Mul(core.D(b.cfg.TPMult)))
		signals = append(signals, b.entrySignal(core.Sell, entry, stop, tp, candle.Timeframe))
	}
	return signals
}

func (b *Breakout) entrySignal(side core.Side, entry, stop, tp core.Decimal, tf core.Timeframe) core.Signal {
	sig := core.Signal{
		Type: core.SignalEntry, Ticker: b.cfg.Ticker, Side: side, StrategyID: "volatility-breakout",
		Strength: 0.6, LimitPrice: ptr(entry), StopLossPrice: ptr(stop), TakeProfitPrice: ptr(tp),
		ReasonCode: reason("range_breakout"), Timeframe: tf, GeneratedAt: time.Now(),
	}
	if b.cfg.Quantity > 0 {
		sig.Quantity = ptr(core.D(b.cfg.Quantity))
	}
	return sig
}

func smaVolume(candles []core.Candle, n int) (core.Decimal, bool) {
	if len(candles) < n || n <= 0 {
		return core.Zero, false
	}
	sum := core.Zero
	for _, c := range candles[len(candles)-n:] {
		sum = sum.Add(c.Volume)
	}
	return sum.Div(core.DI(int64(n))), true
}

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
	stratengine.RegisterFactory("multi-tf-rsi", func() stratengine.Strategy { return &MultiTFRSI{} })
}

const rsiPeriod = 14

// MultiTFRSIConfig configures one MultiTFRSI instance.
type MultiTFRSIConfig struct {
	Ticker         core.Ticker `json:"ticker"`
	CooldownBars   int         `json:"cooldown_bars"`
	Quantity       float64     `json:"quantity"`
}

// MultiTFRSI implements the multi-timeframe RSI strategy: M5 is the primary
// timeframe, H1 and D1 provide trend/oversold context. Long entries require
// a D1 trend filter, an H1 oversold reading, and an M5 bounce through 30.
type MultiTFRSI struct {
	cfg         MultiTFRSIConfig
	prevM5RSI   *core.Decimal
	barsSinceEntry int
	inPos       bool
}

func (r *MultiTFRSI) Initialize(raw json.RawMessage) error {
	var cfg MultiTFRSIConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("multi-tf-rsi: invalid config: %w", err)
	}
	r.cfg = cfg
	r.barsSinceEntry = cfg.CooldownBars
	return nil
}

func (r *MultiTFRSI) SetContext(*stratcontext.Context) {}
func (r *MultiTFRSI) OnOrderFilled(core.Order)          {}
func (r *MultiTFRSI) OnPositionUpdate(p core.Position)  { r.inPos = p.IsOpen() }
func (r *MultiTFRSI) Shutdown()                         {}

// OnMarketData is never called directly by the engine for this strategy;
// it satisfies stratengine.Strategy but all real work happens in
// OnMultiTimeframeData once the engine detects MultiTimeframeStrategy.
func (r *MultiTFRSI) OnMarketData(core.MarketDataEvent) []core.Signal { return nil }

func (r *MultiTFRSI) MultiTimeframeConfig() *stratengine.MultiTimeframeConfig {
	return &stratengine.MultiTimeframeConfig{
		Primary: core.M5,
		CandleCounts: map[core.Timeframe]int{
			core.M5: rsiPeriod + 2,
			core.H1: rsiPeriod + 1,
			core.D1: rsiPeriod + 1,
		},
	}
}

func (r *MultiTFRSI) OnMultiTimeframeData(primary core.Candle, recent map[core.Timeframe][]core.Candle) []core.Signal {
	r.barsSinceEntry++

	m5 := recent[core.M5]
	h1 := recent[core.H1]
	d1 := recent[core.D1]

	m5RSI, ok := wilderRSI(m5, rsiPeriod)
	if !ok {
		return nil
	}
	h1RSI, ok := wilderRSI(h1, rsiPeriod)
	if !ok {
		r.prevM5RSI = ptr(m5RSI)
		return nil
	}
	d1RSI, ok := wilderRSI(d1, rsiPeriod)
	if !ok {
		r.prevM5RSI = ptr(m5RSI)
		return nil
	}

	defer func() { r.prevM5RSI = ptr(m5RSI) }()

	if r.inPos {
		if m5RSI.GreaterThan(core.DI(70)) || h1RSI.GreaterThan(core.DI(70)) {
			r.inPos = false
			return []core.Signal{{
				Type: core.SignalExit, Ticker: r.cfg.Ticker, StrategyID: "multi-tf-rsi",
				ReasonCode: reason("rsi_overbought"), Timeframe: core.M5, GeneratedAt: time.Now(),
			}}
		}
		return nil
	}

	if r.prevM5RSI == nil {
		return nil
	}
	if r.barsSinceEntry < r.cfg.CooldownBars {
		return nil
	}

	trendOK := d1RSI.GreaterThan(core.DI(50))
	oversoldOK := h1RSI.LessThan(core.DI(30))
	bounced := r.prevM5RSI.LessThanOrEqual(core.DI(30)) && m5RSI.GreaterThan(core.DI(30))

	if !(trendOK && oversoldOK && bounced) {
		return nil
	}

	r.inPos = true
	r.barsSinceEntry = 0
	sig := core.Signal{
		Type: core.SignalEntry, Ticker: r.cfg.Ticker, Side: core.Buy, StrategyID: "multi-tf-rsi",
		Strength: 0.7, ReasonCode: reason("multi_tf_rsi_bounce"), Timeframe: core.M5, GeneratedAt: time.Now(),
	}
	if r.cfg.Quantity > 0 {
		sig.Quantity = ptr(core.D(r.cfg.Quantity))
	}
	return []core.Signal{sig}
}

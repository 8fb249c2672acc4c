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
	stratengine.RegisterFactory("magic-split", func() stratengine.Strategy { return &MagicSplit{} })
}

// SplitLevel is one rung of the stepwise-averaging ladder.
type SplitLevel struct {
	TargetRate   float64 `json:"target_rate"`  // exit when live return >= this
	TriggerRate  float64 `json:"trigger_rate"`  // this level enters when the level above's return <= this (negative)
	InvestAmount float64 `json:"invest_amount"`
}

// MagicSplitConfig configures one MagicSplit instance.
type MagicSplitConfig struct {
	Ticker           core.Ticker  `json:"ticker"`
	Levels           []SplitLevel `json:"levels"`
	BlockSameDayReentry bool      `json:"block_same_day_reentry"`
}

type splitState struct {
	bought    bool
	entry     core.Decimal
	qty       core.Decimal
	enteredAt time.Time
}

// MagicSplit implements the stepwise-averaging strategy: L1 always enters
// on the first tick; each subsequent level enters when the level above it
// has drawn down past its trigger_rate, and each level exits independently
// once its own return reaches its target_rate.
type MagicSplit struct {
	cfg    MagicSplitConfig
	states []splitState
	lastExitDay *time.Time
}

func (m *MagicSplit) Initialize(raw json.RawMessage) error {
	var cfg MagicSplitConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("magic-split: invalid config: %w", err)
	}
	if len(cfg.Levels) == 0 {
		return fmt.Errorf("magic-split: at least one level is required")
	}
	m.cfg = cfg
	m.states = make([]splitState, len(cfg.Levels))
	return nil
}

func (m *MagicSplit) SetContext(*stratcontext.Context) {}
func (m *MagicSplit) OnOrderFilled(core.Order)          {}
func (m *MagicSplit) OnPositionUpdate(core.Position)    {}
func (m *MagicSplit) Shutdown()                         {}

func (m *MagicSplit) OnMarketData(event core.MarketDataEvent) []core.Signal {
	if event.Kind != core.EventKline || event.Kline == nil || event.Kline.Ticker != m.cfg.Ticker {
		return nil
	}
	candle := *event.Kline
	var signals []core.Signal

	for i := range m.states {
		st := &m.states[i]
		lvl := m.cfg.Levels[i]

		if !st.bought {
			if i == 0 {
				if m.cfg.BlockSameDayReentry && m.lastExitDay != nil && sameDay(*m.lastExitDay, candle.CloseTime) {
					continue
				}
				m.enter(st, lvl, candle, &signals)
				continue
			}
			above := m.states[i-1]
			if !above.bought {
				continue
			}
			aboveReturn := liveReturn(above.entry, candle.Close)
			if aboveReturn.LessThanOrEqual(core.D(lvl.TriggerRate)) {
				m.enter(st, lvl, candle, &signals)
			}
			continue
		}

		ret := liveReturn(st.entry, candle.Close)
		if ret.GreaterThanOrEqual(core.D(lvl.TargetRate)) {
			signals = append(signals, core.Signal{
				Type: core.SignalExit, Ticker: m.cfg.Ticker, Side: core.Sell, StrategyID: "magic-split",
				Quantity: ptr(st.qty), ReasonCode: reason(fmt.Sprintf("split_level_%d_target", i+1)),
				Timeframe: candle.Timeframe, GeneratedAt: time.Now(),
				Metadata: map[string]any{"level": i + 1},
			})
			if i == 0 {
				t := candle.CloseTime
				m.lastExitDay = &t
			}
			*st = splitState{}
		}
	}
	return signals
}

func (m *MagicSplit) enter(st *splitState, lvl SplitLevel, candle core.Candle, signals *[]core.Signal) {
	qty := core.D(lvl.InvestAmount).Div(candle.Close)
	*st = splitState{bought: true, entry: candle.Close, qty: qty, enteredAt: candle.CloseTime}
	*signals = append(*signals, core.Signal{
		Type: core.SignalEntry, Ticker: m.cfg.Ticker, Side: core.Buy, StrategyID: "magic-split",
		Strength: 0.5, Quantity: ptr(qty), ReasonCode: reason("split_level_entry"),
		Timeframe: candle.Timeframe, GeneratedAt: time.Now(),
	})
}

func liveReturn(entry, price core.Decimal) core.Decimal {
	if !entry.IsPositive() {
		return core.Zero
	}
	return price.Sub(entry).Div(entry).Mul(core.Hundred)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

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
	stratengine.RegisterFactory("kosdaq-fire-rain", func() stratengine.Strategy { return &FireRain{} })
}

// FireRainPair couples a leveraged ETF with its inverse counterpart.
type FireRainPair struct {
	Leverage core.Ticker `json:"leverage"`
	Inverse  core.Ticker `json:"inverse"`
}

// FireRainConfig configures one FireRain instance.
type FireRainConfig struct {
	Pairs       []FireRainPair `json:"pairs"`
	MaxPositions int           `json:"max_positions"`
	Quantity    float64        `json:"quantity"`
}

type fireRainAssetState struct {
	history []core.Candle
	inPos   bool
}

// FireRain implements the KOSDAQ Fire Rain cross-ETF strategy: it buys the
// leveraged side of a pair when its OBV trend, MA alignment, and RSI agree
// bullishly, and the inverse side on the mirrored bearish condition,
// enforcing a shared max_positions cap across every tracked symbol.
type FireRain struct {
	cfg        FireRainConfig
	assets     map[core.Ticker]*fireRainAssetState
	pairOf     map[core.Ticker]FireRainPair
	openCount  int
}

func (f *FireRain) Initialize(raw json.RawMessage) error {
	var cfg FireRainConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("kosdaq-fire-rain: invalid config: %w", err)
	}
	if len(cfg.Pairs) == 0 {
		return fmt.Errorf("kosdaq-fire-rain: at least one pair is required")
	}
	f.cfg = cfg
	f.assets = make(map[core.Ticker]*fireRainAssetState)
	f.pairOf = make(map[core.Ticker]FireRainPair)
	for _, p := range cfg.Pairs {
		f.assets[p.Leverage] = &fireRainAssetState{}
		f.assets[p.Inverse] = &fireRainAssetState{}
		f.pairOf[p.Leverage] = p
		f.pairOf[p.Inverse] = p
	}
	return nil
}

func (f *FireRain) SetContext(*stratcontext.Context) {}
func (f *FireRain) OnOrderFilled(core.Order)          {}
func (f *FireRain) OnPositionUpdate(p core.Position) {
	st, ok := f.assets[p.Ticker]
	if !ok {
		return
	}
	was := st.inPos
	st.inPos = p.IsOpen()
	switch {
	case was && !st.inPos:
		f.openCount--
	case !was && st.inPos:
		f.openCount++
	}
}
func (f *FireRain) Shutdown() {}

func (f *FireRain) OnMarketData(event core.MarketDataEvent) []core.Signal {
	if event.Kind != core.EventKline || event.Kline == nil {
		return nil
	}
	candle := *event.Kline
	st, tracked := f.assets[candle.Ticker]
	if !tracked {
		return nil
	}
	st.history = append(st.history, candle)
	if len(st.history) > 120 {
		st.history = st.history[len(st.history)-120:]
	}

	rsi, ok := wilderRSI(st.history, rsiPeriod)
	if !ok {
		return nil
	}
	ma5, ok5 := sma(st.history, 5)
	ma20, ok20 := sma(st.history, 20)
	ma60, ok60 := sma(st.history, 60)
	if !ok5 || !ok20 || !ok60 {
		return nil
	}
	obvSeries := obv(st.history)
	obvRising := len(obvSeries) >= 2 && obvSeries[len(obvSeries)-1].GreaterThan(obvSeries[len(obvSeries)-2])
	obvFalling := len(obvSeries) >= 2 && obvSeries[len(obvSeries)-1].LessThan(obvSeries[len(obvSeries)-2])

	pair, isPaired := f.pairOf[candle.Ticker]
	isLeverage := isPaired && pair.Leverage == candle.Ticker

	if st.inPos {
		bullish := ma5.GreaterThan(ma20) && ma20.GreaterThan(ma60)
		bearish := ma5.LessThan(ma20) && ma20.LessThan(ma60)
		flip := (isLeverage && !bullish) || (!isLeverage && !bearish)
		if flip || obvFalling && isLeverage || obvRising && !isLeverage {
			return []core.Signal{{
				Type: core.SignalExit, Ticker: candle.Ticker, StrategyID: "kosdaq-fire-rain",
				ReasonCode: reason("ma_or_obv_flip"), Timeframe: candle.Timeframe, GeneratedAt: time.Now(),
			}}
		}
		return nil
	}

	if f.cfg.MaxPositions > 0 && f.openCount >= f.cfg.MaxPositions {
		return nil
	}

	bullishAligned := ma5.GreaterThan(ma20) && ma20.GreaterThan(ma60)
	bearishAligned := ma5.LessThan(ma20) && ma20.LessThan(ma60)
	rsiMid := rsi.GreaterThan(core.DI(30)) && rsi.LessThan(core.DI(70))
	rsiLow := rsi.LessThan(core.DI(40))

	var enter bool
	if isLeverage {
		enter = obvRising && bullishAligned && rsiMid
	} else {
		enter = obvFalling && bearishAligned && rsiLow
	}
	if !enter {
		return nil
	}

	sig := core.Signal{
		Type: core.SignalEntry, Ticker: candle.Ticker, Side: core.Buy, StrategyID: "kosdaq-fire-rain",
		Strength: 0.5, ReasonCode: reason("cross_etf_signal"), Timeframe: candle.Timeframe, GeneratedAt: time.Now(),
	}
	if f.cfg.Quantity > 0 {
		sig.Quantity = ptr(core.D(f.cfg.Quantity))
	}
	return []core.Signal{sig}
}

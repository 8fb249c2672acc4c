package strategies

import (
	"encoding/json"
	"fmt"
	"time"

	"trader-core/internal/stratengine"
	"trader-core/internal/stratcontext"
	"trader-core/pkg/core"
)

func init() {
	stratengine.RegisterFactory("grid", func() stratengine.Strategy { return &Grid{} })
}

// GridConfig configures one Grid instance.
type GridConfig struct {
	Ticker          core.Ticker `json:"ticker"`
	Center          float64     `json:"center"`
	SpacingPct      float64     `json:"spacing_pct"`       // used when ATRMultiplier is 0
	ATRMultiplier   float64     `json:"atr_multiplier"`    // spacing = ATR * this, when > 0
	Levels          int         `json:"levels"`
	AmountPerLevel  float64     `json:"amount_per_level"`
	MAPeriod        int         `json:"ma_period"`         // 0 disables the trend filter
	ResetFraction   float64     `json:"reset_fraction"`    // fraction of center that triggers full re-init
}

type gridLevel struct {
	price     core.Decimal
	side      core.Side
	triggered bool
}

// Grid implements the grid-trading strategy: a ladder of one-shot buy/sell
// triggers straddling a center price, optionally gated by a trend filter.
type Grid struct {
	cfg      GridConfig
	center   core.Decimal
	spacing  core.Decimal
	levels   []gridLevel
	history  []core.Candle
}

func (g *Grid) Initialize(raw json.RawMessage) error {
	var cfg GridConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("grid: invalid config: %w", err)
	}
	if cfg.Levels <= 0 || cfg.AmountPerLevel <= 0 {
		return fmt.Errorf("grid: levels and amount_per_level must be positive")
	}
	g.cfg = cfg
	g.center = core.D(cfg.Center)
	g.buildLevels()
	return nil
}

func (g *Grid) buildLevels() {
	spacing := g.spacing
	if spacing.IsZero() {
		spacing = g.center.Mul(core.D(g.cfg.SpacingPct / 100))
	}
	g.spacing = spacing
	g.levels = g.levels[:0]
	for i := 1; i <= g.cfg.Levels; i++ {
		offset := spacing.Mul(core.DI(int64(i)))
		g.levels = append(g.levels,
			gridLevel{price: g.center.Sub(offset), side: core.Buy},
			gridLevel{price: g.center.Add(offset), side: core.Sell},
		)
	}
}

func (g *Grid) SetContext(*stratcontext.Context) {}
func (g *Grid) OnOrderFilled(core.Order)          {}
func (g *Grid) OnPositionUpdate(core.Position)    {}
func (g *Grid) Shutdown()                         {}

func (g *Grid) OnMarketData(event core.MarketDataEvent) []core.Signal {
	if event.Kind != core.EventKline || event.Kline == nil || event.Kline.Ticker != g.cfg.Ticker {
		return nil
	}
	candle := *event.Kline
	g.history = append(g.history, candle)
	if len(g.history) > 256 {
		g.history = g.history[len(g.history)-256:]
	}

	if g.cfg.ATRMultiplier > 0 {
		if a, ok := atr(g.history, 14); ok {
			g.spacing = a.Mul(core.D(g.cfg.ATRMultiplier))
		}
	}

	if g.cfg.ResetFraction > 0 {
		driftLimit := g.center.Mul(core.D(g.cfg.ResetFraction))
		if candle.Close.Sub(g.center).Abs().GreaterThan(driftLimit) {
			g.center = candle.Close
			g.buildLevels()
			return nil
		}
	}

	trendUp, trendDown := true, true
	if g.cfg.MAPeriod > 0 {
		if ma, ok := sma(g.history, g.cfg.MAPeriod); ok {
			trendUp = candle.Close.GreaterThan(ma)
			trendDown = candle.Close.LessThan(ma)
		}
	}

	var signals []core.Signal
	halfSpacing := g.spacing.Div(core.DI(2))

	for i := range g.levels {
		lvl := &g.levels[i]
		crossed := crossesLevel(candle, lvl.price, lvl.side)

		if lvl.triggered {
			// Reset when price recrosses the level by half the spacing: back
			// above a buy level, or back below a sell level.
			recrossed := candle.Close.GreaterThan(lvl.price.Add(halfSpacing))
			if lvl.side == core.Sell {
				recrossed = candle.Close.LessThan(lvl.price.Sub(halfSpacing))
			}
			if recrossed {
				lvl.triggered = false
			}
			continue
		}
		if !crossed {
			continue
		}
		if lvl.side == core.Buy && !trendUp {
			continue
		}
		if lvl.side == core.Sell && !trendDown {
			continue
		}

		lvl.triggered = true
		price := lvl.price
		signals = append(signals, core.Signal{
			Type:        core.SignalEntry,
			Ticker:      g.cfg.Ticker,
			Side:        lvl.side,
			StrategyID:  "grid",
			Strength:    0.5,
			Quantity:    ptr(core.D(g.cfg.AmountPerLevel).Div(price)),
			LimitPrice:  ptr(price),
			ReasonCode:  reason("grid_level"),
			Timeframe:   candle.Timeframe,
			GeneratedAt: time.Now(),
			Metadata:    map[string]any{"grid_price": price.String()},
		})
	}
	return signals
}

// crossesLevel reports whether the candle actually moved through price
// rather than merely touching it: a buy level (below center) needs the low
// to dip strictly below it, a sell level (above center) needs the high to
// rise strictly above it.
func crossesLevel(c core.Candle, price core.Decimal, side core.Side) bool {
	if side == core.Buy {
		return c.Low.LessThan(price)
	}
	return c.High.GreaterThan(price)
}

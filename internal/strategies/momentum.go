package strategies

import (
	"encoding/json"
	"fmt"
	"time"

	"trader-core/internal/rebalance"
	"trader-core/internal/stratcontext"
	"trader-core/internal/stratengine"
	"trader-core/pkg/core"
)

func init() {
	stratengine.RegisterFactory("baa-bold", func() stratengine.Strategy { return &MomentumRebalancer{variant: variantBAABold} })
	stratengine.RegisterFactory("baa-defensive", func() stratengine.Strategy { return &MomentumRebalancer{variant: variantBAADefensive} })
	stratengine.RegisterFactory("pension-bot", func() stratengine.Strategy { return &MomentumRebalancer{variant: variantPensionBot} })
	stratengine.RegisterFactory("market-cap-top", func() stratengine.Strategy { return &MomentumRebalancer{variant: variantMarketCapTop} })
}

type momentumVariant string

const (
	variantBAABold      momentumVariant = "baa-bold"
	variantBAADefensive momentumVariant = "baa-defensive"
	variantPensionBot   momentumVariant = "pension-bot"
	variantMarketCapTop momentumVariant = "market-cap-top"
)

// MomentumConfig configures a monthly momentum rebalancer. Offensive assets
// are ranked by momentum score and rotated into; canary assets gate whether
// BAA variants go offensive or defensive; defensive assets (e.g. bonds/cash)
// are the fallback allocation.
type MomentumConfig struct {
	CashTicker    core.Ticker   `json:"cash_ticker"`
	Offensive     []core.Ticker `json:"offensive"`
	Defensive     []core.Ticker `json:"defensive"`
	Canary        []core.Ticker `json:"canary"`
	TopN          int           `json:"top_n"`
	AvgMomentumK  int           `json:"avg_momentum_months"` // Pension Bot's k
	Calculator    rebalance.Config `json:"calculator"`
}

// MomentumRebalancer drives BAA (Bold/Defensive), Pension Bot, and
// Market-Cap TOP: on the first D1 candle of a new month it scores every
// tracked asset with the 13612W momentum formula, selects/weights targets
// per its variant's rule, and hands the result to the shared
// rebalance.Calculator to turn into orders.
type MomentumRebalancer struct {
	variant  momentumVariant
	cfg      MomentumConfig
	calc     *rebalance.Calculator
	history  map[core.Ticker][]core.Candle
	lastMonth time.Month
	lastYear  int
}

func (m *MomentumRebalancer) Initialize(raw json.RawMessage) error {
	var cfg MomentumConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("%s: invalid config: %w", m.variant, err)
	}
	if len(cfg.Offensive) == 0 {
		return fmt.Errorf("%s: at least one offensive asset is required", m.variant)
	}
	m.cfg = cfg
	m.calc = rebalance.New(cfg.Calculator)
	m.history = make(map[core.Ticker][]core.Candle)
	m.lastMonth = 0
	return nil
}

func (m *MomentumRebalancer) SetContext(*stratcontext.Context) {}
func (m *MomentumRebalancer) OnOrderFilled(core.Order)          {}
func (m *MomentumRebalancer) OnPositionUpdate(core.Position)    {}
func (m *MomentumRebalancer) Shutdown()                         {}

func (m *MomentumRebalancer) tracked(ticker core.Ticker) bool {
	for _, t := range m.cfg.Offensive {
		if t == ticker {
			return true
		}
	}
	for _, t := range m.cfg.Defensive {
		if t == ticker {
			return true
		}
	}
	for _, t := range m.cfg.Canary {
		if t == ticker {
			return true
		}
	}
	return false
}

func (m *MomentumRebalancer) OnMarketData(event core.MarketDataEvent) []core.Signal {
	if event.Kind != core.EventKline || event.Kline == nil || event.Kline.Timeframe != core.D1 {
		return nil
	}
	candle := *event.Kline
	if !m.tracked(candle.Ticker) {
		return nil
	}
	bars := append(m.history[candle.Ticker], candle)
	if len(bars) > 400 {
		bars = bars[len(bars)-400:]
	}
	m.history[candle.Ticker] = bars

	y, mo, _ := candle.OpenTime.Date()
	isFirstOfMonth := y != m.lastYear || mo != m.lastMonth
	if !isFirstOfMonth {
		return nil
	}
	m.lastYear, m.lastMonth = y, mo

	return m.rebalanceSignals(candle.CloseTime)
}

func (m *MomentumRebalancer) rebalanceSignals(at time.Time) []core.Signal {
	scores := make(map[core.Ticker]float64, len(m.cfg.Offensive))
	for _, t := range m.cfg.Offensive {
		if bars, ok := m.history[t]; ok {
			scores[t] = momentumScore13612W(bars)
		}
	}

	var targets []rebalance.Target
	switch m.variant {
	case variantBAABold, variantBAADefensive:
		targets = m.baaTargets(scores)
	case variantPensionBot:
		targets = m.pensionBotTargets(scores)
	default: // market-cap-top
		targets = m.topNTargets(scores)
	}
	if len(targets) == 0 {
		return nil
	}
	targets = rebalance.NormalizeWeights(targets)

	var signals []core.Signal
	for _, tg := range targets {
		signals = append(signals, core.Signal{
			Type: core.SignalEntry, Ticker: tg.Ticker, Side: core.Buy, StrategyID: string(m.variant),
			Strength: 0.5, ReasonCode: reason("monthly_rebalance"), Timeframe: core.D1, GeneratedAt: at,
			Metadata: map[string]any{"target_weight": tg.Weight.String()},
		})
	}
	return signals
}

// canaryHealth treats a canary asset as healthy when its own momentum
// score is non-negative (the standard BAA canary rule: a negative score
// signals risk-off).
func (m *MomentumRebalancer) canaryHealth() (healthyCount, total int) {
	for _, t := range m.cfg.Canary {
		bars, ok := m.history[t]
		if !ok {
			continue
		}
		total++
		if momentumScore13612W(bars) >= 0 {
			healthyCount++
		}
	}
	return healthyCount, total
}

func (m *MomentumRebalancer) baaTargets(scores map[core.Ticker]float64) []rebalance.Target {
	healthy, total := m.canaryHealth()
	ranked := rankDesc(scores)

	if m.variant == variantBAABold {
		if total == 0 || healthy == total {
			return topAsWeights(ranked, 1)
		}
		return defensiveWeights(m.cfg.Defensive)
	}

	// BAA Defensive: 50/50 offensive/defensive mix when canaries are mixed.
	if total == 0 || healthy == total {
		return topAsWeights(ranked, 1)
	}
	if healthy == 0 {
		return defensiveWeights(m.cfg.Defensive)
	}
	offensive := topAsWeights(ranked, 1)
	for i := range offensive {
		offensive[i].Weight = core.D(0.5)
	}
	def := defensiveWeights(m.cfg.Defensive)
	for i := range def {
		def[i].Weight = def[i].Weight.Mul(core.D(0.5))
	}
	return append(offensive, def...)
}

func (m *MomentumRebalancer) pensionBotTargets(scores map[core.Ticker]float64) []rebalance.Target {
	k := m.cfg.AvgMomentumK
	if k <= 0 {
		k = 12
	}
	var out []rebalance.Target
	for _, t := range m.cfg.Offensive {
		bars, ok := m.history[t]
		if !ok {
			continue
		}
		avgMomentum := averageMomentum(bars, k)
		base := 1.0 / float64(len(m.cfg.Offensive))
		weight := base * avgMomentum
		out = append(out, rebalance.Target{Ticker: t, Weight: core.D(weight)})
	}
	// Distribute any leftover (1 - sum of risk weights) per the fixed
	// 45/45/10 rule across up to the first two defensive assets and cash.
	sum := core.Zero
	for _, tg := range out {
		sum = sum.Add(tg.Weight)
	}
	leftover := core.One.Sub(sum)
	if leftover.IsPositive() && len(m.cfg.Defensive) > 0 {
		shares := []float64{0.45, 0.45, 0.10}
		for i, t := range m.cfg.Defensive {
			if i >= len(shares) {
				break
			}
			out = append(out, rebalance.Target{Ticker: t, Weight: leftover.Mul(core.D(shares[i]))})
		}
	}
	return out
}

func (m *MomentumRebalancer) topNTargets(scores map[core.Ticker]float64) []rebalance.Target {
	n := m.cfg.TopN
	if n <= 0 {
		n = 1
	}
	ranked := rankDesc(scores)
	return topAsWeights(ranked, n)
}

func rankDesc(scores map[core.Ticker]float64) []core.Ticker {
	type pair struct {
		t core.Ticker
		s float64
	}
	pairs := make([]pair, 0, len(scores))
	for t, s := range scores {
		pairs = append(pairs, pair{t, s})
	}
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].s > pairs[j-1].s; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
	out := make([]core.Ticker, len(pairs))
	for i, p := range pairs {
		out[i] = p.t
	}
	return out
}

func topAsWeights(ranked []core.Ticker, n int) []rebalance.Target {
	if n > len(ranked) {
		n = len(ranked)
	}
	if n == 0 {
		return nil
	}
	w := core.One.Div(core.DI(int64(n)))
	out := make([]rebalance.Target, n)
	for i := 0; i < n; i++ {
		out[i] = rebalance.Target{Ticker: ranked[i], Weight: w}
	}
	return out
}

func defensiveWeights(defensive []core.Ticker) []rebalance.Target {
	if len(defensive) == 0 {
		return nil
	}
	w := core.One.Div(core.DI(int64(len(defensive))))
	out := make([]rebalance.Target, len(defensive))
	for i, t := range defensive {
		out[i] = rebalance.Target{Ticker: t, Weight: w}
	}
	return out
}

// momentumScore13612W computes 12*r1m + 4*r3m + 2*r6m + 1*r12m from a D1
// candle history, approximating "months" as 21 trading days.
func momentumScore13612W(bars []core.Candle) float64 {
	r := func(months int) float64 {
		days := months * 21
		if len(bars) <= days {
			return 0
		}
		now := bars[len(bars)-1].Close
		then := bars[len(bars)-1-days].Close
		if !then.IsPositive() {
			return 0
		}
		ret, _ := now.Sub(then).Div(then).Float64()
		return ret
	}
	return 12*r(1) + 4*r(3) + 2*r(6) + 1*r(12)
}

// averageMomentum is Pension Bot's count(now >= price_k-months-ago)/k.
func averageMomentum(bars []core.Candle, k int) float64 {
	if len(bars) == 0 {
		return 0
	}
	now := bars[len(bars)-1].Close
	count := 0
	for i := 1; i <= k; i++ {
		days := i * 21
		if len(bars) <= days {
			continue
		}
		then := bars[len(bars)-1-days].Close
		if now.GreaterThanOrEqual(then) {
			count++
		}
	}
	return float64(count) / float64(k)
}

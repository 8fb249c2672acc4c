// Package metrics exposes the runtime's Prometheus surface: per-strategy
// signal/fill counters, equity-curve gauges, risk-gate rejection counts, and
// rate-limiter/venue health, on a dedicated registry (not the global
// default) the way SynapseStrike's metrics package does it.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the dedicated registry every gauge/counter below is attached
// to, used instead of the global DefaultRegisterer. No HTTP /metrics route
// in this module serves it.
var Registry = prometheus.NewRegistry()

var (
	// StrategySignalsEmitted counts signals a strategy handed to the engine,
	// before dedup and before the Risk Gate.
	StrategySignalsEmitted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Namespace: "trader", Subsystem: "strategy", Name: "signals_emitted_total", Help: "Signals emitted by a strategy"},
		[]string{"strategy_id"},
	)

	// StrategySignalsDeduped counts signals the engine collapsed as
	// duplicates within the dedup window.
	StrategySignalsDeduped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Namespace: "trader", Subsystem: "strategy", Name: "signals_deduped_total", Help: "Signals suppressed by the dedup window"},
		[]string{"strategy_id"},
	)

	// RiskGateRejections counts signals the Risk Gate refused, by reason.
	RiskGateRejections = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Namespace: "trader", Subsystem: "risk_gate", Name: "rejections_total", Help: "Signals rejected by the Risk Gate"},
		[]string{"reason"},
	)

	// RiskGateKillSwitchActive reports whether the kill switch is currently
	// tripped (1) or clear (0).
	RiskGateKillSwitchActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{Namespace: "trader", Subsystem: "risk_gate", Name: "kill_switch_active", Help: "1 if the daily loss kill switch is tripped"},
	)

	// MatchingFillsTotal counts fills produced by the simulated matching
	// engine, by order type.
	MatchingFillsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Namespace: "trader", Subsystem: "matching", Name: "fills_total", Help: "Fills produced by the matching engine"},
		[]string{"order_type", "side"},
	)

	// PositionOpenCount tracks the number of currently open positions.
	PositionOpenCount = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{Namespace: "trader", Subsystem: "position", Name: "open_count", Help: "Number of currently open positions"},
	)

	// PositionUnrealizedPnL tracks per-(ticker,strategy) unrealized P&L.
	PositionUnrealizedPnL = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "trader", Subsystem: "position", Name: "unrealized_pnl", Help: "Unrealized P&L per position"},
		[]string{"ticker", "strategy_id"},
	)

	// EquityCurrent tracks the most recent equity-curve point.
	EquityCurrent = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{Namespace: "trader", Subsystem: "equity", Name: "current", Help: "Most recent equity-curve value"},
	)

	// EquityDrawdownPct tracks the current drawdown percentage.
	EquityDrawdownPct = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{Namespace: "trader", Subsystem: "equity", Name: "drawdown_pct", Help: "Current drawdown percentage"},
	)

	// EquityMaxDrawdownPct tracks the maximum drawdown percentage observed.
	EquityMaxDrawdownPct = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{Namespace: "trader", Subsystem: "equity", Name: "max_drawdown_pct", Help: "Maximum drawdown percentage observed"},
	)

	// RateLimiterAllowed/Limited count Acquire outcomes per key.
	RateLimiterAllowed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Namespace: "trader", Subsystem: "rate_limit", Name: "allowed_total", Help: "Acquire calls that returned Allowed"},
		[]string{"key"},
	)
	RateLimiterLimited = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Namespace: "trader", Subsystem: "rate_limit", Name: "limited_total", Help: "Acquire calls that returned Limited"},
		[]string{"key"},
	)

	// VenueRequestDuration tracks venue call latency.
	VenueRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trader", Subsystem: "venue", Name: "request_duration_seconds", Help: "Venue request duration",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"venue", "op"},
	)

	// VenueErrorsTotal counts venue call errors by kind.
	VenueErrorsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Namespace: "trader", Subsystem: "venue", Name: "errors_total", Help: "Venue request errors"},
		[]string{"venue", "kind"},
	)
)

var initOnce sync.Once

// Init registers the standard Go runtime/process collectors alongside the
// trading-domain metrics above. Safe to call more than once (e.g. from
// multiple Runtime instances in a test process); only the first call
// registers the collectors.
func Init() {
	initOnce.Do(func() {
		Registry.MustRegister(prometheus.NewGoCollector())
		Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// RecordFill increments the matching-engine fill counter for one fill.
func RecordFill(orderType, side string) {
	MatchingFillsTotal.WithLabelValues(orderType, side).Inc()
}

// RecordRiskRejection increments the rejection counter for reason.
func RecordRiskRejection(reason string) {
	RiskGateRejections.WithLabelValues(reason).Inc()
}

// SetKillSwitch reports the kill switch's current state.
func SetKillSwitch(active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	RiskGateKillSwitchActive.Set(v)
}

// SetEquity updates the equity/drawdown gauges from one curve point.
func SetEquity(equity, drawdownPct, maxDrawdownPct float64) {
	EquityCurrent.Set(equity)
	EquityDrawdownPct.Set(drawdownPct)
	EquityMaxDrawdownPct.Set(maxDrawdownPct)
}

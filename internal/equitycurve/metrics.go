package equitycurve

import (
	"math"

	"trader-core/pkg/core"
)

// minStdDev is the floor below which a daily-return standard deviation is
// treated as noise and Sharpe is suppressed rather than reported as an
// artificially extreme ratio.
const minStdDev = 0.005

// sharpeClampMin/Max bound the reported Sharpe ratio; values outside this
// range are clamped rather than surfaced as-is.
const (
	sharpeClampMin = -9.99
	sharpeClampMax = 9.99
)

// CAGR computes the compound annual growth rate across the full curve:
// (V_end/V_start)^(365/days) - 1. The fractional exponent is computed in
// float64 and the result re-quantized to Decimal at 4 places, matching the
// documented precision for intermediate float interop.
func (c *Curve) CAGR() (core.Decimal, bool) {
	if len(c.Points) < 2 {
		return core.Zero, false
	}
	return cagrBetween(c.Points[0], c.Points[len(c.Points)-1])
}

func cagrBetween(start, end core.EquityPoint) (core.Decimal, bool) {
	days := end.Timestamp.Sub(start.Timestamp).Hours() / 24
	if days <= 0 || !start.Equity.IsPositive() {
		return core.Zero, false
	}
	vStart, _ := start.Equity.Float64()
	vEnd, _ := end.Equity.Float64()
	if vStart <= 0 {
		return core.Zero, false
	}
	ratio := vEnd / vStart
	cagr := math.Pow(ratio, 365/days) - 1
	return core.D(cagr).Round(4), true
}

// RollingCAGR computes CAGR over the trailing windowDays of the curve.
func (c *Curve) RollingCAGR(windowDays int) (core.Decimal, bool) {
	window := c.window(windowDays)
	if len(window) < 2 {
		return core.Zero, false
	}
	return cagrBetween(window[0], window[len(window)-1])
}

// RollingMDD returns the maximum drawdown_pct observed within the trailing
// windowDays.
func (c *Curve) RollingMDD(windowDays int) (core.Decimal, bool) {
	window := c.window(windowDays)
	if len(window) == 0 {
		return core.Zero, false
	}
	max := core.Zero
	for _, p := range window {
		if p.DrawdownPct.GreaterThan(max) {
			max = p.DrawdownPct
		}
	}
	return max, true
}

// RollingSharpe computes mean(daily_returns)/stdev(daily_returns) * sqrt(252)
// over the trailing windowDays, using the given annual risk-free rate
// (daily_rf = risk_free_rate/252). Returns false when there isn't enough
// data (fewer than 3 window points or 2 daily returns) or when the return
// series is too flat to be meaningful (stdev below minStdDev).
func (c *Curve) RollingSharpe(windowDays int, riskFreeRate float64) (core.Decimal, bool) {
	window := c.window(windowDays)
	if len(window) < 3 {
		return core.Zero, false
	}
	returns := make([]float64, 0, len(window)-1)
	dailyRF := riskFreeRate / 252
	for i := 1; i < len(window); i++ {
		prev := window[i-1].Equity
		if !prev.IsPositive() {
			continue
		}
		r, _ := window[i].Equity.Sub(prev).Div(prev).Float64()
		returns = append(returns, r-dailyRF)
	}
	if len(returns) < 2 {
		return core.Zero, false
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	stdev := math.Sqrt(variance)

	if stdev < minStdDev {
		return core.Zero, false
	}

	sharpe := mean / stdev * math.Sqrt(252)
	if sharpe > sharpeClampMax {
		sharpe = sharpeClampMax
	}
	if sharpe < sharpeClampMin {
		sharpe = sharpeClampMin
	}
	return core.D(sharpe).Round(4), true
}

// window returns the suffix of c.Points spanning at most windowDays back
// from the last point.
func (c *Curve) window(windowDays int) []core.EquityPoint {
	if len(c.Points) == 0 {
		return nil
	}
	cutoff := c.Points[len(c.Points)-1].Timestamp.AddDate(0, 0, -windowDays)
	start := 0
	for start < len(c.Points) && c.Points[start].Timestamp.Before(cutoff) {
		start++
	}
	return c.Points[start:]
}

// Package strategies contains the representative built-in strategies: they
// are shape examples of how a Strategy plugs into the engine, not a
// complete strategy library.
package strategies

import (
	"trader-core/pkg/core"
)

// sma computes the simple moving average of the last n closes. ok is false
// if fewer than n candles are available.
func sma(candles []core.Candle, n int) (core.Decimal, bool) {
	if len(candles) < n || n <= 0 {
		return core.Zero, false
	}
	sum := core.Zero
	for _, c := range candles[len(candles)-n:] {
		sum = sum.Add(c.Close)
	}
	return sum.Div(core.DI(int64(n))), true
}

// trueRange computes the True Range of one candle against the previous
// close: max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(c core.Candle, prevClose core.Decimal) core.Decimal {
	hl := c.High.Sub(c.Low)
	hc := c.High.Sub(prevClose).Abs()
	lc := c.Low.Sub(prevClose).Abs()
	max := hl
	if hc.GreaterThan(max) {
		max = hc
	}
	if lc.GreaterThan(max) {
		max = lc
	}
	return max
}

// atr computes a simple (non-Wilder) average true range over the last n
// candles, matching the teacher's and spec's "mean of per-period True Range"
// definition.
func atr(candles []core.Candle, n int) (core.Decimal, bool) {
	if len(candles) < n+1 || n <= 0 {
		return core.Zero, false
	}
	window := candles[len(candles)-n:]
	sum := core.Zero
	for i, c := range window {
		var prevClose core.Decimal
		if i == 0 {
			prevClose = candles[len(candles)-n-1].Close
		} else {
			prevClose = window[i-1].Close
		}
		sum = sum.Add(trueRange(c, prevClose))
	}
	return sum.Div(core.DI(int64(n))), true
}

// wilderRSI computes RSI with Wilder's smoothing over the given period. It
// needs at least period+1 candles. ok is false otherwise.
func wilderRSI(candles []core.Candle, period int) (core.Decimal, bool) {
	if len(candles) < period+1 {
		return core.Zero, false
	}
	start := len(candles) - period - 1
	window := candles[start:]

	avgGain := core.Zero
	avgLoss := core.Zero
	for i := 1; i <= period; i++ {
		delta := window[i].Close.Sub(window[i-1].Close)
		if delta.IsPositive() {
			avgGain = avgGain.Add(delta)
		} else {
			avgLoss = avgLoss.Add(delta.Abs())
		}
	}
	avgGain = avgGain.Div(core.DI(int64(period)))
	avgLoss = avgLoss.Div(core.DI(int64(period)))

	if avgLoss.IsZero() {
		return core.DI(100), true
	}
	rs, _ := avgGain.Div(avgLoss).Float64()
	rsi := 100 - (100 / (1 + rs))
	return core.D(rsi), true
}

// obv computes the running On-Balance-Volume series aligned with candles:
// out[i] is the OBV through candles[i].
func obv(candles []core.Candle) []core.Decimal {
	out := make([]core.Decimal, len(candles))
	running := core.Zero
	for i, c := range candles {
		if i > 0 {
			if c.Close.GreaterThan(candles[i-1].Close) {
				running = running.Add(c.Volume)
			} else if c.Close.LessThan(candles[i-1].Close) {
				running = running.Sub(c.Volume)
			}
		}
		out[i] = running
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func reason(code string) *string { return &code }

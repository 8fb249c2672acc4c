package equitycurve

import "trader-core/pkg/core"

// AnalyzeDrawdowns makes a single pass over the curve tracking
// peak/trough/in-drawdown state, emitting one DrawdownPeriod per excursion
// below the running peak, sorted by severity (MaxDrawdownPct) descending.
func (c *Curve) AnalyzeDrawdowns() []core.DrawdownPeriod {
	if len(c.Points) == 0 {
		return nil
	}

	var periods []core.DrawdownPeriod
	peakEquity := c.Points[0].Equity
	peakTime := c.Points[0].Timestamp
	inDrawdown := false
	var current *core.DrawdownPeriod

	for _, p := range c.Points {
		if p.Equity.GreaterThanOrEqual(peakEquity) {
			// New peak (or recovery to/above the prior peak) closes any
			// open drawdown period.
			if inDrawdown && current != nil {
				end := p.Timestamp
				current.End = &end
				recovery := int64(end.Sub(current.Trough).Hours() / 24)
				current.RecoveryDays = &recovery
				periods = append(periods, *current)
				current = nil
				inDrawdown = false
			}
			peakEquity = p.Equity
			peakTime = p.Timestamp
			continue
		}

		// Below peak: in or entering a drawdown.
		ddPct := peakEquity.Sub(p.Equity).Div(peakEquity).Mul(core.Hundred)
		if !inDrawdown {
			inDrawdown = true
			current = &core.DrawdownPeriod{
				Start: peakTime, Trough: p.Timestamp, MaxDrawdownPct: ddPct,
				PeakEquity: peakEquity, TroughEquity: p.Equity,
			}
		}
		if p.Equity.LessThan(current.TroughEquity) {
			current.Trough = p.Timestamp
			current.TroughEquity = p.Equity
		}
		if ddPct.GreaterThan(current.MaxDrawdownPct) {
			current.MaxDrawdownPct = ddPct
		}
		current.DurationDays = int64(p.Timestamp.Sub(current.Start).Hours() / 24)
	}

	if inDrawdown && current != nil {
		periods = append(periods, *current) // still open: End/RecoveryDays remain nil
	}

	sortDescending(periods)
	return periods
}

// TopDrawdowns returns the n most severe drawdown periods.
func (c *Curve) TopDrawdowns(n int) []core.DrawdownPeriod {
	all := c.AnalyzeDrawdowns()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[:n]
}

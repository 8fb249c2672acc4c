// Package equitycurve reconstructs a daily portfolio-value series from an
// execution log and closing prices (market-price mode, the authoritative
// mode; the cash-flow back-propagation mode is not implemented, per the
// Open Question decision recorded in DESIGN.md) and derives drawdown,
// CAGR, and rolling-Sharpe analytics from it.
package equitycurve

import (
	"sort"
	"time"

	"trader-core/pkg/core"
)

// Timeframe is the aggregation bucket for Aggregate.
type Timeframe string

const (
	Daily     Timeframe = "DAILY"
	Weekly    Timeframe = "WEEKLY"
	Monthly   Timeframe = "MONTHLY"
	Quarterly Timeframe = "QUARTERLY"
	Yearly    Timeframe = "YEARLY"
)

// Curve is the append-only series plus the running peak/drawdown state
// needed to extend it one point at a time.
type Curve struct {
	InitialCapital      core.Decimal
	Points              []core.EquityPoint
	PeakEquity          core.Decimal
	MaxDrawdownPct      core.Decimal
	MaxDrawdownTime     time.Time
}

// NewCurve seeds an empty curve with its starting capital.
func NewCurve(initialCapital core.Decimal) *Curve {
	return &Curve{InitialCapital: initialCapital, PeakEquity: initialCapital}
}

// CurrentEquity returns the most recent point's equity, or InitialCapital
// if the curve has no points yet.
func (c *Curve) CurrentEquity() core.Decimal {
	if len(c.Points) == 0 {
		return c.InitialCapital
	}
	return c.Points[len(c.Points)-1].Equity
}

// AddPoint appends a new sample, updating the running peak and drawdown
// tracking. Points must be added in chronological order.
func (c *Curve) AddPoint(timestamp time.Time, equity core.Decimal) core.EquityPoint {
	if equity.GreaterThan(c.PeakEquity) {
		c.PeakEquity = equity
	}

	drawdownPct := core.Zero
	if c.PeakEquity.IsPositive() {
		drawdownPct = c.PeakEquity.Sub(equity).Div(c.PeakEquity).Mul(core.Hundred)
		if drawdownPct.IsNegative() {
			drawdownPct = core.Zero
		}
	}
	if drawdownPct.GreaterThan(c.MaxDrawdownPct) {
		c.MaxDrawdownPct = drawdownPct
		c.MaxDrawdownTime = timestamp
	}

	returnPct := core.Zero
	if c.InitialCapital.IsPositive() {
		returnPct = equity.Sub(c.InitialCapital).Div(c.InitialCapital).Mul(core.Hundred)
	}

	periodReturnPct := core.Zero
	if len(c.Points) > 0 {
		prev := c.Points[len(c.Points)-1].Equity
		if prev.IsPositive() {
			periodReturnPct = equity.Sub(prev).Div(prev).Mul(core.Hundred)
		}
	}

	p := core.EquityPoint{
		Timestamp: timestamp, Equity: equity, DrawdownPct: drawdownPct,
		ReturnPct: returnPct, PeriodReturnPct: periodReturnPct,
	}
	c.Points = append(c.Points, p)
	return p
}

// FilterRange returns the points with Timestamp in [start, end].
func (c *Curve) FilterRange(start, end time.Time) []core.EquityPoint {
	var out []core.EquityPoint
	for _, p := range c.Points {
		if !p.Timestamp.Before(start) && !p.Timestamp.After(end) {
			out = append(out, p)
		}
	}
	return out
}

// Aggregate groups points by period key and keeps each group's last point,
// returning groups in chronological order.
func (c *Curve) Aggregate(tf Timeframe) []core.EquityPoint {
	if tf == Daily {
		return append([]core.EquityPoint(nil), c.Points...)
	}
	order := make([]string, 0)
	last := make(map[string]core.EquityPoint)
	for _, p := range c.Points {
		key := periodKey(tf, p.Timestamp)
		if _, seen := last[key]; !seen {
			order = append(order, key)
		}
		last[key] = p
	}
	out := make([]core.EquityPoint, 0, len(order))
	for _, key := range order {
		out = append(out, last[key])
	}
	return out
}

func periodKey(tf Timeframe, t time.Time) string {
	switch tf {
	case Weekly:
		year, week := t.ISOWeek()
		return isoWeekKey(year, week)
	case Monthly:
		return t.Format("2006-01")
	case Quarterly:
		q := (int(t.Month())-1)/3 + 1
		return t.Format("2006") + "-Q" + itoa(q)
	case Yearly:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}

func isoWeekKey(year, week int) string {
	y := itoa(year)
	w := itoa(week)
	if week < 10 {
		w = "0" + w
	}
	return y + "-W" + w
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// DailyReturns returns the period-over-period return percentages (as
// fractions, not percentages) between consecutive points.
func (c *Curve) DailyReturns() []float64 {
	out := make([]float64, 0, len(c.Points))
	for i := 1; i < len(c.Points); i++ {
		prev := c.Points[i-1].Equity
		if !prev.IsPositive() {
			continue
		}
		r, _ := c.Points[i].Equity.Sub(prev).Div(prev).Float64()
		out = append(out, r)
	}
	return out
}

// EquitySeries returns the equity value at each point, in order.
func (c *Curve) EquitySeries() []core.Decimal {
	out := make([]core.Decimal, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Equity
	}
	return out
}

// DrawdownSeries returns the drawdown_pct at each point, in order.
func (c *Curve) DrawdownSeries() []core.Decimal {
	out := make([]core.Decimal, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.DrawdownPct
	}
	return out
}

// sortDescending is a tiny helper used by drawdown-period analysis to sort
// periods by severity; kept here since sort.Slice needs no package of its
// own.
func sortDescending(periods []core.DrawdownPeriod) {
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].MaxDrawdownPct.GreaterThan(periods[j].MaxDrawdownPct)
	})
}

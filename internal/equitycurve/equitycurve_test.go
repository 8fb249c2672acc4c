package equitycurve

import (
	"testing"
	"time"

	"trader-core/pkg/core"
)

func day(offset int) time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

type fakePrices struct {
	byTicker map[core.Ticker]map[string]core.Decimal
}

func newFakePrices() *fakePrices {
	return &fakePrices{byTicker: make(map[core.Ticker]map[string]core.Decimal)}
}

func (f *fakePrices) set(ticker core.Ticker, d time.Time, price float64) {
	m, ok := f.byTicker[ticker]
	if !ok {
		m = make(map[string]core.Decimal)
		f.byTicker[ticker] = m
	}
	m[d.Format("2006-01-02")] = core.D(price)
}

func (f *fakePrices) Close(ticker core.Ticker, d time.Time) (core.Decimal, bool) {
	m, ok := f.byTicker[ticker]
	if !ok {
		return core.Zero, false
	}
	price, ok := m[d.Format("2006-01-02")]
	return price, ok
}

func execRow(ticker core.Ticker, side core.Side, qty float64, at time.Time) core.ExecutionCacheRow {
	return core.ExecutionCacheRow{Ticker: ticker, Side: side, Quantity: core.D(qty), ExecutedAt: at}
}

// Buy 10@100 on d0, buy 10@90 on d5, sell 10@120 on d10. Holdings are 10
// shares through d4, 20 shares from d5-d9, 10 shares from d10 onward.
func TestBuildReplaysHoldingsAgainstDailyCloses(t *testing.T) {
	t.Parallel()
	ticker := core.NewTicker("AAPL", "USD")
	rows := []core.ExecutionCacheRow{
		execRow(ticker, core.Buy, 10, day(0)),
		execRow(ticker, core.Buy, 10, day(5)),
		execRow(ticker, core.Sell, 10, day(10)),
	}

	prices := newFakePrices()
	for i := 0; i <= 10; i++ {
		switch {
		case i < 5:
			prices.set(ticker, day(i), 100)
		case i < 10:
			prices.set(ticker, day(i), 100)
		default:
			prices.set(ticker, day(i), 120)
		}
	}

	curve := Build(rows, prices, core.D(1000))
	if len(curve.Points) == 0 {
		t.Fatal("expected points")
	}

	byDay := make(map[string]core.EquityPoint)
	for _, p := range curve.Points {
		byDay[p.Timestamp.Format("2006-01-02")] = p
	}

	p0, ok := byDay[day(0).Format("2006-01-02")]
	if !ok {
		t.Fatal("missing day 0 point")
	}
	if !p0.Equity.Equal(core.D(1000)) {
		t.Errorf("equity_d0 = %s, want 1000", p0.Equity)
	}

	p5, ok := byDay[day(5).Format("2006-01-02")]
	if !ok {
		t.Fatal("missing day 5 point")
	}
	if !p5.Equity.Equal(core.D(2000)) {
		t.Errorf("equity_d5 = %s, want 2000", p5.Equity)
	}

	p10, ok := byDay[day(10).Format("2006-01-02")]
	if !ok {
		t.Fatal("missing day 10 point")
	}
	if !p10.Equity.Equal(core.D(1200)) {
		t.Errorf("equity_d10 = %s, want 1200", p10.Equity)
	}

	if !curve.PeakEquity.Equal(core.D(2000)) {
		t.Errorf("PeakEquity = %s, want 2000", curve.PeakEquity)
	}
	if !p0.DrawdownPct.Equal(core.Zero) {
		t.Errorf("drawdown at peak-setting day0 should be 0, got %s", p0.DrawdownPct)
	}
}

func TestBuildBackwalksMissingCloses(t *testing.T) {
	t.Parallel()
	ticker := core.NewTicker("AAPL", "USD")
	rows := []core.ExecutionCacheRow{execRow(ticker, core.Buy, 10, day(0))}

	prices := newFakePrices()
	prices.set(ticker, day(0), 100)
	// day(3) close missing: only day(0) exists within the back-walk window.

	curve := Build(rows, prices, core.D(1000))
	var p3 *core.EquityPoint
	for i := range curve.Points {
		if curve.Points[i].Timestamp.Format("2006-01-02") == day(3).Format("2006-01-02") {
			p3 = &curve.Points[i]
		}
	}
	if p3 == nil {
		t.Fatal("expected a point for day 3")
	}
	if !p3.Equity.Equal(core.D(1000)) {
		t.Errorf("equity_d3 = %s, want 1000 (backwalked to day0 close)", p3.Equity)
	}
}

func TestAggregateMonthlyKeepsLastPointPerMonth(t *testing.T) {
	t.Parallel()
	c := NewCurve(core.D(1000))
	c.AddPoint(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), core.D(1000))
	c.AddPoint(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), core.D(1100))
	c.AddPoint(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), core.D(1200))

	monthly := c.Aggregate(Monthly)
	if len(monthly) != 2 {
		t.Fatalf("got %d monthly points, want 2", len(monthly))
	}
	if !monthly[0].Equity.Equal(core.D(1100)) {
		t.Errorf("January point should be the last one added (1100), got %s", monthly[0].Equity)
	}
	if !monthly[1].Equity.Equal(core.D(1200)) {
		t.Errorf("February point = %s, want 1200", monthly[1].Equity)
	}
}

func TestAnalyzeDrawdownsFindsPeakToTroughToRecovery(t *testing.T) {
	t.Parallel()
	c := NewCurve(core.D(1000))
	c.AddPoint(day(0), core.D(1000)) // peak
	c.AddPoint(day(1), core.D(900))  // trough, -10%
	c.AddPoint(day(2), core.D(950))
	c.AddPoint(day(3), core.D(1000)) // recovery closes the period
	c.AddPoint(day(4), core.D(1100)) // new peak

	periods := c.AnalyzeDrawdowns()
	if len(periods) != 1 {
		t.Fatalf("got %d drawdown periods, want 1", len(periods))
	}
	dd := periods[0]
	if !dd.TroughEquity.Equal(core.D(900)) {
		t.Errorf("trough equity = %s, want 900", dd.TroughEquity)
	}
	if !dd.MaxDrawdownPct.Equal(core.D(10)) {
		t.Errorf("max drawdown pct = %s, want 10", dd.MaxDrawdownPct)
	}
	if dd.End == nil {
		t.Fatal("expected the drawdown period to be closed (End set)")
	}
}

func TestAnalyzeDrawdownsLeavesOpenDrawdownUnclosed(t *testing.T) {
	t.Parallel()
	c := NewCurve(core.D(1000))
	c.AddPoint(day(0), core.D(1000))
	c.AddPoint(day(1), core.D(800))

	periods := c.AnalyzeDrawdowns()
	if len(periods) != 1 {
		t.Fatalf("got %d periods, want 1", len(periods))
	}
	if periods[0].End != nil {
		t.Error("expected still-open drawdown to have a nil End")
	}
	if periods[0].RecoveryDays != nil {
		t.Error("expected still-open drawdown to have a nil RecoveryDays")
	}
}

func TestTopDrawdownsSortsBySeverity(t *testing.T) {
	t.Parallel()
	c := NewCurve(core.D(1000))
	c.AddPoint(day(0), core.D(1000))
	c.AddPoint(day(1), core.D(950)) // -5%, recovers
	c.AddPoint(day(2), core.D(1000))
	c.AddPoint(day(3), core.D(700)) // -30%, recovers
	c.AddPoint(day(4), core.D(1000))

	top := c.TopDrawdowns(1)
	if len(top) != 1 {
		t.Fatalf("got %d, want 1", len(top))
	}
	if !top[0].MaxDrawdownPct.Equal(core.D(30)) {
		t.Errorf("most severe drawdown = %s, want 30", top[0].MaxDrawdownPct)
	}
}

func TestCAGRRequiresAtLeastTwoPoints(t *testing.T) {
	t.Parallel()
	c := NewCurve(core.D(1000))
	if _, ok := c.CAGR(); ok {
		t.Error("expected CAGR to fail with zero points")
	}
	c.AddPoint(day(0), core.D(1000))
	if _, ok := c.CAGR(); ok {
		t.Error("expected CAGR to fail with a single point")
	}
}

func TestCAGRDoublingOverOneYear(t *testing.T) {
	t.Parallel()
	c := NewCurve(core.D(1000))
	c.AddPoint(day(0), core.D(1000))
	c.AddPoint(day(365), core.D(2000))

	cagr, ok := c.CAGR()
	if !ok {
		t.Fatal("expected CAGR to succeed")
	}
	want := core.D(1.0) // doubling in exactly 365 days ~= 100% CAGR
	diff := cagr.Sub(want).Abs()
	if diff.GreaterThan(core.D(0.01)) {
		t.Errorf("CAGR = %s, want close to 1.0", cagr)
	}
}

func TestRollingSharpeInsufficientDataReturnsFalse(t *testing.T) {
	t.Parallel()
	c := NewCurve(core.D(1000))
	c.AddPoint(day(0), core.D(1000))
	c.AddPoint(day(1), core.D(1010))

	if _, ok := c.RollingSharpe(30, 0.0); ok {
		t.Error("expected RollingSharpe to fail with fewer than 3 points")
	}
}

func TestRollingSharpeSuppressedBelowStdDevFloor(t *testing.T) {
	t.Parallel()
	c := NewCurve(core.D(1000))
	// Perfectly flat returns: stdev is 0, below minStdDev.
	for i := 0; i < 10; i++ {
		c.AddPoint(day(i), core.D(1000))
	}
	if _, ok := c.RollingSharpe(30, 0.0); ok {
		t.Error("expected RollingSharpe to be suppressed for a flat equity series")
	}
}

func TestRollingSharpeClampsToRange(t *testing.T) {
	t.Parallel()
	c := NewCurve(core.D(1000))
	equity := 1000.0
	for i := 0; i < 10; i++ {
		c.AddPoint(day(i), core.D(equity))
		// Large daily gains alternating between 20% and 30%: the spread keeps
		// stdev above minStdDev, and the high mean pushes Sharpe past the clamp.
		if i%2 == 0 {
			equity *= 1.2
		} else {
			equity *= 1.3
		}
	}
	sharpe, ok := c.RollingSharpe(30, 0.0)
	if !ok {
		t.Fatal("expected RollingSharpe to succeed")
	}
	if sharpe.GreaterThan(core.D(9.99)) {
		t.Errorf("sharpe = %s, exceeds clamp of 9.99", sharpe)
	}
}

package equitycurve

import (
	"sort"
	"time"

	"trader-core/pkg/core"
)

// ClosePriceSource resolves a ticker's close price on a given UTC calendar
// day. Missing closes are walked back up to 7 calendar days by Build before
// it gives up and skips the day entirely.
type ClosePriceSource interface {
	Close(ticker core.Ticker, day time.Time) (core.Decimal, bool)
}

// maxBackwalkDays bounds how far Build looks back for a missing close.
const maxBackwalkDays = 7

// Build reconstructs a daily equity curve (market-price mode) from a
// chronological execution log: it folds executions forward to derive each
// day's holdings, then marks each active holding to its closing price.
// Cash is deliberately excluded — the curve tracks only the market value of
// positions actually held on each day.
func Build(rows []core.ExecutionCacheRow, prices ClosePriceSource, initialCapital core.Decimal) *Curve {
	sorted := append([]core.ExecutionCacheRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt) })

	curve := NewCurve(initialCapital)
	if len(sorted) == 0 {
		return curve
	}

	firstDay := dateOnly(sorted[0].ExecutedAt)
	today := dateOnly(time.Now())

	holdings := make(map[core.Ticker]core.Decimal)
	rowIdx := 0

	for day := firstDay; !day.After(today); day = day.AddDate(0, 0, 1) {
		// Fold forward every execution through end-of-day.
		endOfDay := day.AddDate(0, 0, 1)
		for rowIdx < len(sorted) && sorted[rowIdx].ExecutedAt.Before(endOfDay) {
			row := sorted[rowIdx]
			qty := holdings[row.Ticker]
			if row.Side == core.Buy {
				qty = qty.Add(row.Quantity)
			} else {
				qty = qty.Sub(row.Quantity)
			}
			holdings[row.Ticker] = qty
			rowIdx++
		}

		securitiesValue := core.Zero
		skipDay := false
		for ticker, qty := range holdings {
			if !qty.IsPositive() {
				continue
			}
			close, ok := lookupCloseWithBackwalk(prices, ticker, day)
			if !ok {
				skipDay = true
				break
			}
			securitiesValue = securitiesValue.Add(qty.Mul(close))
		}
		if skipDay {
			continue
		}

		noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)
		curve.AddPoint(noon, securitiesValue)
	}

	return curve
}

func lookupCloseWithBackwalk(prices ClosePriceSource, ticker core.Ticker, day time.Time) (core.Decimal, bool) {
	for back := 0; back <= maxBackwalkDays; back++ {
		if price, ok := prices.Close(ticker, day.AddDate(0, 0, -back)); ok {
			return price, true
		}
	}
	return core.Zero, false
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

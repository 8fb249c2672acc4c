package matching

import "trader-core/pkg/core"

// roundOutward rounds price to the nearest tick in the direction that is
// worse for the order's side: up for a buy (pays more), down for a sell
// (receives less). Used for fills that execute at a simulated market price
// (market orders, triggered stop/take-profit orders), where real venues
// never fill you favorably relative to the tick grid.
func roundOutward(price, tick core.Decimal, side core.Side) core.Decimal {
	if tick.IsZero() {
		return price
	}
	steps := price.Div(tick)
	if side == core.Buy {
		return steps.Ceil().Mul(tick)
	}
	return steps.Floor().Mul(tick)
}

// roundInward rounds price to the nearest tick in the direction that keeps
// the fill at least as good as the order's limit: a buy never rounds above
// its limit, a sell never rounds below it. Used for limit-order fills.
func roundInward(price, tick core.Decimal, side core.Side) core.Decimal {
	if tick.IsZero() {
		return price
	}
	steps := price.Div(tick)
	if side == core.Buy {
		return steps.Floor().Mul(tick)
	}
	return steps.Ceil().Mul(tick)
}

// applySlippage nudges a triggered stop/take-profit price against the
// order's side by rate (a fraction, e.g. 0.001 for 10bps): worse for buys
// (higher) and worse for sells (lower), modeling adverse execution slippage
// on a simulated market fill.
func applySlippage(price, rate core.Decimal, side core.Side) core.Decimal {
	delta := price.Mul(rate)
	if side == core.Buy {
		return price.Add(delta)
	}
	return price.Sub(delta)
}

// Package rebalance implements the shared rebalance calculator used by the
// monthly momentum strategies: given current holdings and normalized target
// weights, it produces the orders that move the portfolio toward target,
// sells first, largest first within each side.
package rebalance

import (
	"sort"

	"trader-core/pkg/core"
)

// Holding is one current position entering the calculation.
type Holding struct {
	Ticker       core.Ticker
	Quantity     core.Decimal
	Price        core.Decimal
	MarketValue  core.Decimal
}

// Target is a normalized target weight for one ticker. Σ Weight across all
// targets is expected to equal 1 (see NormalizeWeights).
type Target struct {
	Ticker core.Ticker
	Weight core.Decimal
}

// Config bounds the calculator's trade sizing and skip behavior.
type Config struct {
	CashTicker        core.Ticker
	MinTradeAmount    core.Decimal
	FeeRate           core.Decimal
	SellTaxRate       core.Decimal
	RebalanceThreshold core.Decimal // skip entirely if max deviation is below this
}

// PlannedOrder is one order the calculator recommends. Side is Buy or Sell;
// Quantity is always a non-negative integer number of shares.
type PlannedOrder struct {
	Ticker   core.Ticker
	Side     core.Side
	Quantity core.Decimal
	Price    core.Decimal
	Notional core.Decimal
}

// Calculator holds the sizing configuration shared by all rebalance
// strategies.
type Calculator struct {
	cfg Config
}

// New constructs a Calculator from the given configuration.
func New(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// NormalizeWeights rescales targets so their weights sum to exactly 1,
// distributing any rounding remainder onto the last entry.
func NormalizeWeights(targets []Target) []Target {
	if len(targets) == 0 {
		return nil
	}
	total := core.Zero
	for _, tg := range targets {
		total = total.Add(tg.Weight)
	}
	if !total.IsPositive() {
		return targets
	}
	out := make([]Target, len(targets))
	running := core.Zero
	for i, tg := range targets {
		if i == len(targets)-1 {
			out[i] = Target{Ticker: tg.Ticker, Weight: core.One.Sub(running)}
			continue
		}
		w := tg.Weight.Div(total)
		out[i] = Target{Ticker: tg.Ticker, Weight: w}
		running = running.Add(w)
	}
	return out
}

// Calculate produces the rebalance order list for the given holdings,
// targets, and total portfolio value (holdings market value + cash).
// It returns nil (no orders) if the rebalance_threshold is not exceeded by
// any asset's deviation from target.
func (c *Calculator) Calculate(holdings []Holding, targets []Target, totalValue core.Decimal) []PlannedOrder {
	holdingByTicker := make(map[core.Ticker]Holding, len(holdings))
	for _, h := range holdings {
		holdingByTicker[h.Ticker] = h
	}
	targetByTicker := make(map[core.Ticker]core.Decimal, len(targets))
	for _, tg := range targets {
		targetByTicker[tg.Ticker] = tg.Weight
	}

	if !c.exceedsThreshold(holdingByTicker, targetByTicker, totalValue) {
		return nil
	}

	var sells, buys []PlannedOrder

	// Untracked positions (held but not in target) are fully sold.
	for ticker, h := range holdingByTicker {
		if ticker == c.cfg.CashTicker {
			continue
		}
		if _, tracked := targetByTicker[ticker]; tracked {
			continue
		}
		if !h.Quantity.IsPositive() {
			continue
		}
		sells = append(sells, c.planOrder(ticker, core.Sell, h.Quantity, h.Price))
	}

	for _, tg := range targets {
		if tg.Ticker == c.cfg.CashTicker {
			continue
		}
		h := holdingByTicker[tg.Ticker]
		targetValue := totalValue.Mul(tg.Weight)
		currentValue := h.MarketValue
		delta := targetValue.Sub(currentValue)

		if delta.IsZero() {
			continue
		}

		price := h.Price
		if !price.IsPositive() {
			continue
		}

		if delta.IsNegative() {
			qty := delta.Abs().Div(price).Ceil()
			if qty.IsPositive() && qty.LessThanOrEqual(h.Quantity) {
				order := c.planOrder(tg.Ticker, core.Sell, qty, price)
				if order.Notional.GreaterThanOrEqual(c.cfg.MinTradeAmount) {
					sells = append(sells, order)
				}
			} else if qty.GreaterThan(h.Quantity) && h.Quantity.IsPositive() {
				order := c.planOrder(tg.Ticker, core.Sell, h.Quantity, price)
				sells = append(sells, order)
			}
			continue
		}

		qty := delta.Div(price).Floor()
		if !qty.IsPositive() {
			continue
		}
		order := c.planOrder(tg.Ticker, core.Buy, qty, price)
		if order.Notional.GreaterThanOrEqual(c.cfg.MinTradeAmount) {
			buys = append(buys, order)
		}
	}

	sort.Slice(sells, func(i, j int) bool { return sells[i].Notional.GreaterThan(sells[j].Notional) })
	sort.Slice(buys, func(i, j int) bool { return buys[i].Notional.GreaterThan(buys[j].Notional) })

	out := make([]PlannedOrder, 0, len(sells)+len(buys))
	out = append(out, sells...)
	out = append(out, buys...)
	return out
}

// CalculateCashConstrained behaves like Calculate but scales down the tail
// of the buy list (smallest-notional first, since buys are already sorted
// largest-first) to fit within availableCash, dropping orders entirely once
// even the minimum trade amount no longer fits.
func (c *Calculator) CalculateCashConstrained(holdings []Holding, targets []Target, totalValue, availableCash core.Decimal) []PlannedOrder {
	orders := c.Calculate(holdings, targets, totalValue)

	var sells, buys []PlannedOrder
	for _, o := range orders {
		if o.Side == core.Sell {
			sells = append(sells, o)
		} else {
			buys = append(buys, o)
		}
	}

	remaining := availableCash
	fitted := make([]PlannedOrder, 0, len(buys))
	for _, o := range buys {
		if o.Notional.LessThanOrEqual(remaining) {
			fitted = append(fitted, o)
			remaining = remaining.Sub(o.Notional)
			continue
		}
		if remaining.LessThan(c.cfg.MinTradeAmount) {
			continue
		}
		qty := remaining.Div(o.Price).Floor()
		if !qty.IsPositive() {
			continue
		}
		scaled := c.planOrder(o.Ticker, core.Buy, qty, o.Price)
		if scaled.Notional.LessThan(c.cfg.MinTradeAmount) {
			continue
		}
		fitted = append(fitted, scaled)
		remaining = remaining.Sub(scaled.Notional)
	}

	out := make([]PlannedOrder, 0, len(sells)+len(fitted))
	out = append(out, sells...)
	out = append(out, fitted...)
	return out
}

func (c *Calculator) planOrder(ticker core.Ticker, side core.Side, qty, price core.Decimal) PlannedOrder {
	notional := qty.Mul(price)
	fee := notional.Mul(c.cfg.FeeRate)
	if side == core.Sell {
		fee = fee.Add(notional.Mul(c.cfg.SellTaxRate))
	}
	return PlannedOrder{Ticker: ticker, Side: side, Quantity: qty, Price: price, Notional: notional.Sub(feeIfSell(side, fee))}
}

// feeIfSell nets fees out of a sell's proceeds but leaves a buy's notional
// fee-exclusive (the fee is paid on top, not netted from spend).
func feeIfSell(side core.Side, fee core.Decimal) core.Decimal {
	if side == core.Sell {
		return fee
	}
	return core.Zero
}

func (c *Calculator) exceedsThreshold(holdings map[core.Ticker]Holding, targets map[core.Ticker]core.Decimal, totalValue core.Decimal) bool {
	if !c.cfg.RebalanceThreshold.IsPositive() {
		return true // threshold of zero (or unset) means always rebalance
	}
	if !totalValue.IsPositive() {
		return false
	}
	for ticker, weight := range targets {
		currentValue := holdings[ticker].MarketValue
		currentWeight := currentValue.Div(totalValue)
		deviation := currentWeight.Sub(weight).Abs()
		if deviation.GreaterThan(c.cfg.RebalanceThreshold) {
			return true
		}
	}
	for ticker, h := range holdings {
		if ticker == c.cfg.CashTicker {
			continue
		}
		if _, tracked := targets[ticker]; tracked {
			continue
		}
		if h.MarketValue.IsPositive() {
			return true // untracked holding always forces a rebalance
		}
	}
	return false
}

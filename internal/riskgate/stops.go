package riskgate

import "trader-core/pkg/core"

// applyPct scales entry by (100+pctChange)/100, e.g. applyPct(100, -2)
// returns 98 (a 2% stop-loss distance below entry).
func applyPct(entry, pctChange core.Decimal) core.Decimal {
	return entry.Mul(core.Hundred.Add(pctChange)).Div(core.Hundred)
}

// StopGenerator builds stop-loss, take-profit, ATR, trailing and bracket
// order shapes from a position's entry price and side.
type StopGenerator struct {
	DefaultATRMultiplier core.Decimal
}

// NewStopGenerator builds a generator with the 2x ATR default.
func NewStopGenerator() *StopGenerator {
	return &StopGenerator{DefaultATRMultiplier: core.DI(2)}
}

// FixedStopLoss returns the trigger price for a stop-loss stopPct below
// (long) or above (short) entry.
func (g *StopGenerator) FixedStopLoss(side core.Side, entry, stopPct core.Decimal) core.Decimal {
	if side == core.Buy {
		return applyPct(entry, stopPct.Neg())
	}
	return applyPct(entry, stopPct)
}

// FixedTakeProfit returns the trigger price for a take-profit tpPct above
// (long) or below (short) entry.
func (g *StopGenerator) FixedTakeProfit(side core.Side, entry, tpPct core.Decimal) core.Decimal {
	if side == core.Buy {
		return applyPct(entry, tpPct)
	}
	return applyPct(entry, tpPct.Neg())
}

// ATRStop returns entry - k*ATR (long) or entry + k*ATR (short). k defaults
// to DefaultATRMultiplier when zero.
func (g *StopGenerator) ATRStop(side core.Side, entry, atr, k core.Decimal) core.Decimal {
	if k.IsZero() {
		k = g.DefaultATRMultiplier
	}
	dist := atr.Mul(k)
	if side == core.Buy {
		return entry.Sub(dist)
	}
	return entry.Add(dist)
}

// GenerateStopLoss builds a STOP_LOSS exit OrderRequest for positionID.
func (g *StopGenerator) GenerateStopLoss(ticker core.Ticker, side core.Side, quantity, entry, stopPct core.Decimal, strategyID, positionID string) core.OrderRequest {
	trigger := g.FixedStopLoss(side, entry, stopPct)
	return stopRequest(ticker, side.Opposite(), core.OrderStopLoss, quantity, trigger, strategyID, positionID)
}

// GenerateTakeProfit builds a TAKE_PROFIT exit OrderRequest for positionID.
func (g *StopGenerator) GenerateTakeProfit(ticker core.Ticker, side core.Side, quantity, entry, tpPct core.Decimal, strategyID, positionID string) core.OrderRequest {
	trigger := g.FixedTakeProfit(side, entry, tpPct)
	return stopRequest(ticker, side.Opposite(), core.OrderTakeProfit, quantity, trigger, strategyID, positionID)
}

// GenerateATRStop builds a STOP_LOSS exit sized from ATR rather than a
// fixed percentage.
func (g *StopGenerator) GenerateATRStop(ticker core.Ticker, side core.Side, quantity, entry, atr, k core.Decimal, strategyID, positionID string) core.OrderRequest {
	trigger := g.ATRStop(side, entry, atr, k)
	return stopRequest(ticker, side.Opposite(), core.OrderStopLoss, quantity, trigger, strategyID, positionID)
}

// GenerateTrailingStop builds a TRAILING_STOP exit OrderRequest.
func (g *StopGenerator) GenerateTrailingStop(ticker core.Ticker, side core.Side, quantity, trailDistance core.Decimal, isPct bool, strategyID, positionID string) core.OrderRequest {
	exitSide := side.Opposite()
	return core.OrderRequest{
		Ticker: ticker, Side: exitSide, Type: core.OrderTrailingStop,
		Quantity: quantity, TrailAmount: &trailDistance, TrailIsPct: isPct,
		TimeInForce: core.TIFGoodTilCancel, StrategyID: strategyID, PositionID: &positionID,
	}
}

// BracketOrders returns a (stopLoss, takeProfit) pair sharing one position,
// so a caller can submit both to the matching engine and cancel whichever
// does not fill once the other does (one-cancels-other is the caller's
// responsibility; the generator only shapes the two requests).
func (g *StopGenerator) BracketOrders(ticker core.Ticker, side core.Side, quantity, entry, stopPct, tpPct core.Decimal, strategyID, positionID string) (stopLoss, takeProfit core.OrderRequest) {
	stopLoss = g.GenerateStopLoss(ticker, side, quantity, entry, stopPct, strategyID, positionID)
	takeProfit = g.GenerateTakeProfit(ticker, side, quantity, entry, tpPct, strategyID, positionID)
	return stopLoss, takeProfit
}

// RiskReward computes rr = |tp-entry| / |entry-sl|. Informational only; the
// gate does not use it as a default gating criterion.
func RiskReward(entry, stopLoss, takeProfit core.Decimal) core.Decimal {
	reward := takeProfit.Sub(entry).Abs()
	risk := entry.Sub(stopLoss).Abs()
	if risk.IsZero() {
		return core.Zero
	}
	return reward.Div(risk)
}

func stopRequest(ticker core.Ticker, exitSide core.Side, typ core.OrderType, quantity, trigger core.Decimal, strategyID, positionID string) core.OrderRequest {
	return core.OrderRequest{
		Ticker: ticker, Side: exitSide, Type: typ, Quantity: quantity,
		TriggerPrice: &trigger, TimeInForce: core.TIFGoodTilCancel,
		StrategyID: strategyID, PositionID: &positionID,
	}
}

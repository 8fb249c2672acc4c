// Package matching implements a simulated matching engine driven by candle
// data rather than a live order book: limit and stop-type orders rest until
// a subsequent candle's high/low crosses their price, at which point they
// fill against that candle at a simulated price. Market orders fill
// immediately against the last known close.
package matching

import (
	"sync"
	"time"

	"trader-core/internal/coreerr"
	"trader-core/pkg/core"
)

// Config tunes the engine's fee and slippage model. TickSizes overrides
// DefaultTickSize per ticker.
type Config struct {
	DefaultTickSize core.Decimal
	TickSizes       map[core.Ticker]core.Decimal
	FeeRate         core.Decimal
	SlippageRate    core.Decimal
}

type restingOrder struct {
	order    *core.Order
	trailing *TrailingStopState
}

// Engine is the simulated venue. All methods are safe for concurrent use; a
// single mutex serializes order-book mutation, matching spec.md's single-
// writer discipline for this component.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	resting   map[string]*restingOrder          // orderID -> resting state, across all tickers
	byTicker  map[core.Ticker]map[string]struct{} // ticker -> set of resting orderIDs
	lastPrice map[core.Ticker]core.Decimal
	onFill    func(core.Fill, *core.Order)
}

// New builds an Engine. onFill, if non-nil, is invoked synchronously for
// every fill produced (by either Submit or OnCandle), before the fill is
// returned to the caller; it must not block or call back into the engine.
func New(cfg Config, onFill func(core.Fill, *core.Order)) *Engine {
	if cfg.TickSizes == nil {
		cfg.TickSizes = make(map[core.Ticker]core.Decimal)
	}
	return &Engine{
		cfg:       cfg,
		resting:   make(map[string]*restingOrder),
		byTicker:  make(map[core.Ticker]map[string]struct{}),
		lastPrice: make(map[core.Ticker]core.Decimal),
		onFill:    onFill,
	}
}

func (e *Engine) tickSize(ticker core.Ticker) core.Decimal {
	if t, ok := e.cfg.TickSizes[ticker]; ok {
		return t
	}
	return e.cfg.DefaultTickSize
}

// SetLastPrice seeds or updates the reference price used for Market order
// fills, independent of candle delivery (e.g. from a ticker/trade feed).
func (e *Engine) SetLastPrice(ticker core.Ticker, price core.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastPrice[ticker] = price
}

// Submit accepts an OrderRequest. Market orders fill immediately and
// synchronously; all other types are validated and placed on the resting
// book to be matched by a subsequent OnCandle call.
func (e *Engine) Submit(req core.OrderRequest) (*core.Order, error) {
	if req.Quantity.IsZero() || req.Quantity.IsNegative() {
		return nil, coreerr.New(coreerr.KindConfigInvalid, "matching.Submit")
	}
	switch req.Type {
	case core.OrderLimit, core.OrderStopLossLimit, core.OrderTakeProfitLimit:
		if req.LimitPrice == nil {
			return nil, coreerr.New(coreerr.KindConfigInvalid, "matching.Submit: missing limit price")
		}
	}
	switch req.Type {
	case core.OrderStopLoss, core.OrderStopLossLimit, core.OrderTakeProfit, core.OrderTakeProfitLimit:
		if req.TriggerPrice == nil {
			return nil, coreerr.New(coreerr.KindConfigInvalid, "matching.Submit: missing trigger price")
		}
	case core.OrderTrailingStop:
		if req.TrailAmount == nil {
			return nil, coreerr.New(coreerr.KindConfigInvalid, "matching.Submit: missing trail amount")
		}
	}

	now := time.Now()
	order := &core.Order{
		ID:           core.NewOrderID(),
		Ticker:       req.Ticker,
		Side:         req.Side,
		Type:         req.Type,
		Quantity:     req.Quantity,
		LimitPrice:   req.LimitPrice,
		TriggerPrice: req.TriggerPrice,
		TrailAmount:  req.TrailAmount,
		TrailIsPct:   req.TrailIsPct,
		TimeInForce:  req.TimeInForce,
		Status:       core.OrderPending,
		StrategyID:   req.StrategyID,
		PositionID:   req.PositionID,
		ClientTag:    req.ClientTag,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if req.Type == core.OrderMarket {
		ref, ok := e.lastPrice[req.Ticker]
		if !ok {
			return nil, coreerr.New(coreerr.KindInternal, "matching.Submit: no reference price for market order")
		}
		fillPrice := roundOutward(applySlippage(ref, e.cfg.SlippageRate, req.Side), e.tickSize(req.Ticker), req.Side)
		e.fillLocked(order, fillPrice, order.Quantity, now)
		return order, nil
	}

	if req.Type == core.OrderLimit {
		limitPrice := roundInward(*req.LimitPrice, e.tickSize(req.Ticker), req.Side)
		order.LimitPrice = &limitPrice
		if ref, ok := e.lastPrice[req.Ticker]; ok {
			marketable := (req.Side == core.Buy && ref.LessThanOrEqual(limitPrice)) ||
				(req.Side == core.Sell && ref.GreaterThanOrEqual(limitPrice))
			if marketable {
				e.fillLocked(order, limitPrice, order.Quantity, now)
				return order, nil
			}
		}
	}

	order.Status = core.OrderOpen
	rest := &restingOrder{order: order}
	if req.Type == core.OrderTrailingStop {
		if init, ok := e.lastPrice[req.Ticker]; ok {
			rest.trailing = NewTrailingStopState(req.Side, init, *req.TrailAmount, req.TrailIsPct)
		} else if req.LimitPrice != nil {
			// fall back if a reference limit was supplied; otherwise left nil until the first candle
			rest.trailing = NewTrailingStopState(req.Side, *req.LimitPrice, *req.TrailAmount, req.TrailIsPct)
		}
	}
	e.resting[order.ID] = rest
	if e.byTicker[req.Ticker] == nil {
		e.byTicker[req.Ticker] = make(map[string]struct{})
	}
	e.byTicker[req.Ticker][order.ID] = struct{}{}
	return order, nil
}

// Cancel removes a resting order. Returns a KindPositionNotFound error if
// the order is not resting (unknown, or already filled or cancelled).
func (e *Engine) Cancel(orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rest, ok := e.resting[orderID]
	if !ok {
		return coreerr.New(coreerr.KindPositionNotFound, "matching.Cancel: unknown order")
	}
	rest.order.Status = core.OrderCancelled
	rest.order.UpdatedAt = time.Now()
	e.removeRestingLocked(rest.order.Ticker, orderID)
	return nil
}

// OpenOrders returns the resting orders for a ticker, newest-insertion order
// not guaranteed.
func (e *Engine) OpenOrders(ticker core.Ticker) []*core.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.byTicker[ticker]
	out := make([]*core.Order, 0, len(ids))
	for id := range ids {
		out = append(out, e.resting[id].order)
	}
	return out
}

func (e *Engine) removeRestingLocked(ticker core.Ticker, orderID string) {
	delete(e.resting, orderID)
	if set := e.byTicker[ticker]; set != nil {
		delete(set, orderID)
	}
}

func (e *Engine) fillLocked(order *core.Order, price, qty core.Decimal, at time.Time) core.Fill {
	order.FilledQuantity = order.FilledQuantity.Add(qty)
	order.Status = core.OrderFilled
	order.UpdatedAt = at

	fee := price.Mul(qty).Mul(e.cfg.FeeRate)
	fill := core.Fill{
		ID:         core.NewOrderID(),
		OrderID:    order.ID,
		Ticker:     order.Ticker,
		Side:       order.Side,
		Price:      price,
		Quantity:   qty,
		Fee:        fee,
		StrategyID: order.StrategyID,
		PositionID: order.PositionID,
		Timestamp:  at,
	}
	if e.onFill != nil {
		e.onFill(fill, order)
	}
	return fill
}

// OnCandle advances simulated time for ticker, matching any resting orders
// whose trigger/limit condition the candle's high/low crosses, and returns
// the fills produced in encounter order. The engine's last-price reference
// for the ticker is updated to the candle's close regardless of whether any
// order matched.
func (e *Engine) OnCandle(candle core.Candle) []core.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastPrice[candle.Ticker] = candle.Close

	ids := e.byTicker[candle.Ticker]
	if len(ids) == 0 {
		return nil
	}
	// Snapshot the id set: fillLocked may be followed by removal, which
	// would otherwise mutate the map mid-range.
	snapshot := make([]string, 0, len(ids))
	for id := range ids {
		snapshot = append(snapshot, id)
	}

	var fills []core.Fill
	for _, id := range snapshot {
		rest, ok := e.resting[id]
		if !ok {
			continue
		}
		order := rest.order
		if order.Status.Terminal() {
			continue
		}
		tick := e.tickSize(order.Ticker)

		switch order.Type {
		case core.OrderLimit:
			if crossed, price := limitCrossed(order, candle); crossed {
				fillPrice := roundInward(price, tick, order.Side)
				fills = append(fills, e.fillLocked(order, fillPrice, order.Remaining(), candle.CloseTime))
				e.removeRestingLocked(order.Ticker, id)
			}

		case core.OrderStopLoss, core.OrderTakeProfit:
			if stopTriggered(order, candle) {
				fillPrice := roundOutward(applySlippage(*order.TriggerPrice, e.cfg.SlippageRate, order.Side), tick, order.Side)
				order.Triggered = true
				fills = append(fills, e.fillLocked(order, fillPrice, order.Remaining(), candle.CloseTime))
				e.removeRestingLocked(order.Ticker, id)
			}

		case core.OrderStopLossLimit, core.OrderTakeProfitLimit:
			if !order.Triggered {
				if stopTriggered(order, candle) {
					order.Triggered = true
					order.UpdatedAt = candle.CloseTime
				}
			}
			if order.Triggered {
				if crossed, price := limitCrossed(order, candle); crossed {
					fillPrice := roundInward(price, tick, order.Side)
					fills = append(fills, e.fillLocked(order, fillPrice, order.Remaining(), candle.CloseTime))
					e.removeRestingLocked(order.Ticker, id)
				}
			}

		case core.OrderTrailingStop:
			if rest.trailing == nil {
				rest.trailing = NewTrailingStopState(order.Side, candle.Open, *order.TrailAmount, order.TrailIsPct)
			}
			favorable, adverse := trailingExtremes(order.Side, candle)
			// The adverse extreme is tested against the trigger as it stood
			// before this candle; a stop that does not fire then trails the
			// candle's favorable extreme.
			if rest.trailing.ShouldTrigger(adverse) {
				fillPrice := roundOutward(applySlippage(rest.trailing.Trigger, e.cfg.SlippageRate, order.Side), tick, order.Side)
				order.Triggered = true
				fills = append(fills, e.fillLocked(order, fillPrice, order.Remaining(), candle.CloseTime))
				e.removeRestingLocked(order.Ticker, id)
			} else {
				rest.trailing.Update(favorable)
			}
		}
	}
	return fills
}

// limitCrossed reports whether candle's range crosses order's limit price,
// and the price at which the limit would execute (the limit price itself).
func limitCrossed(order *core.Order, candle core.Candle) (bool, core.Decimal) {
	limit := *order.LimitPrice
	if order.Side == core.Buy {
		return candle.Low.LessThanOrEqual(limit), limit
	}
	return candle.High.GreaterThanOrEqual(limit), limit
}

// stopTriggered reports whether candle's range crosses order's trigger
// price. Stop-loss and take-profit differ only in which side of the candle
// range is adverse for a given exit side; both use the order's own Side,
// which already encodes that (Sell exits a long, Buy exits a short).
func stopTriggered(order *core.Order, candle core.Candle) bool {
	trigger := *order.TriggerPrice
	switch order.Type {
	case core.OrderStopLoss, core.OrderStopLossLimit:
		if order.Side == core.Sell {
			return candle.Low.LessThanOrEqual(trigger)
		}
		return candle.High.GreaterThanOrEqual(trigger)
	case core.OrderTakeProfit, core.OrderTakeProfitLimit:
		if order.Side == core.Sell {
			return candle.High.GreaterThanOrEqual(trigger)
		}
		return candle.Low.LessThanOrEqual(trigger)
	default:
		return false
	}
}

// trailingExtremes returns, for the candle's range, which extreme is most
// favorable to the trail (used to advance BestSeen) and which is most
// adverse (used to test ShouldTrigger).
func trailingExtremes(side core.Side, candle core.Candle) (favorable, adverse core.Decimal) {
	if side == core.Sell {
		return candle.High, candle.Low
	}
	return candle.Low, candle.High
}

// Package position tracks open and closed positions per (ticker, strategy)
// pair: volume-weighted average entry price, realized and unrealized P&L,
// and a bounded event history used by dashboards and the equity curve.
package position

import (
	"sync"
	"time"

	"trader-core/internal/coreerr"
	"trader-core/pkg/core"
)

// key identifies a tracked position slot. Exactly one open Position may
// exist per key at a time.
type key struct {
	ticker     core.Ticker
	strategyID string
}

// Config tunes the tracker.
type Config struct {
	// MaxEvents bounds the per-position event ring; oldest entries are
	// evicted first. Zero means the default of 10,000.
	MaxEvents int
	// FlipOnOverflow controls what happens when a reducing fill's quantity
	// exceeds the open position: false (default) truncates the fill at the
	// position's remaining quantity and reports the excess in
	// ApplyResult.Excess with a KindInsufficientQuantity error; true closes the position and opens a new one
	// on the opposite side with the excess quantity.
	FlipOnOverflow bool
}

func (c Config) maxEvents() int {
	if c.MaxEvents <= 0 {
		return 10000
	}
	return c.MaxEvents
}

// Tracker is the position book. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	cfg      Config
	open     map[key]*core.Position
	events   map[string][]core.PositionEvent // by position ID
}

// New builds a Tracker.
func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, open: make(map[key]*core.Position), events: make(map[string][]core.PositionEvent)}
}

// ApplyResult reports the outcome of ApplyFill: the position after the
// fill (nil if fully closed and no flip occurred), the realized P&L delta
// this fill produced, and the excess quantity that could not be applied
// under FlipOnOverflow=false (zero otherwise).
type ApplyResult struct {
	Position      *core.Position
	RealizedDelta core.Decimal
	Excess        core.Decimal
}

// ApplyFill folds a Fill into the tracked position for (fill.Ticker,
// fill.StrategyID), opening one if none exists. Same-side fills extend the
// position with a volume-weighted average entry price; opposite-side fills
// reduce it and realize P&L on the reduced quantity.
func (t *Tracker) ApplyFill(fill core.Fill) (ApplyResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{ticker: fill.Ticker, strategyID: fill.StrategyID}
	pos := t.open[k]

	if pos == nil {
		pos = &core.Position{
			ID:            core.NewOrderID(),
			Ticker:        fill.Ticker,
			StrategyID:    fill.StrategyID,
			Side:          fill.Side,
			Quantity:      fill.Quantity,
			AvgEntryPrice: fill.Price,
			LastMarkPrice: fill.Price,
			OpenedAt:      fill.Timestamp,
			FeesPaid:      fill.Fee,
		}
		t.open[k] = pos
		t.recordLocked(pos.ID, core.PositionEvent{
			Kind: core.PositionOpened, PositionID: pos.ID, Ticker: pos.Ticker,
			Quantity: pos.Quantity, Price: pos.AvgEntryPrice, Timestamp: fill.Timestamp,
		})
		return ApplyResult{Position: pos}, nil
	}

	pos.FeesPaid = pos.FeesPaid.Add(fill.Fee)
	pos.LastMarkPrice = fill.Price

	if fill.Side == pos.Side {
		// Same-side: extend with a volume-weighted average entry price.
		totalCost := pos.AvgEntryPrice.Mul(pos.Quantity).Add(fill.Price.Mul(fill.Quantity))
		pos.Quantity = pos.Quantity.Add(fill.Quantity)
		pos.AvgEntryPrice = totalCost.Div(pos.Quantity)
		t.recordLocked(pos.ID, core.PositionEvent{
			Kind: core.PositionIncreased, PositionID: pos.ID, Ticker: pos.Ticker,
			Quantity: fill.Quantity, Price: fill.Price, Timestamp: fill.Timestamp,
		})
		return ApplyResult{Position: pos}, nil
	}

	// Opposite-side: reduces the position and realizes P&L.
	reduceQty := fill.Quantity
	excess := core.Zero
	if reduceQty.GreaterThan(pos.Quantity) {
		excess = reduceQty.Sub(pos.Quantity)
		reduceQty = pos.Quantity
	}

	realized := t.realizedPnL(pos, fill.Price, reduceQty)
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	pos.Quantity = pos.Quantity.Sub(reduceQty)

	if pos.Quantity.IsZero() {
		now := fill.Timestamp
		pos.ClosedAt = &now
		t.recordLocked(pos.ID, core.PositionEvent{
			Kind: core.PositionClosed, PositionID: pos.ID, Ticker: pos.Ticker,
			Quantity: reduceQty, Price: fill.Price, RealizedDelta: realized, Timestamp: fill.Timestamp,
		})
		delete(t.open, k)

		if t.cfg.FlipOnOverflow && excess.IsPositive() {
			flipped := &core.Position{
				ID: core.NewOrderID(), Ticker: fill.Ticker, StrategyID: fill.StrategyID,
				Side: fill.Side, Quantity: excess, AvgEntryPrice: fill.Price,
				LastMarkPrice: fill.Price, OpenedAt: fill.Timestamp,
			}
			t.open[k] = flipped
			t.recordLocked(flipped.ID, core.PositionEvent{
				Kind: core.PositionOpened, PositionID: flipped.ID, Ticker: flipped.Ticker,
				Quantity: flipped.Quantity, Price: flipped.AvgEntryPrice, Timestamp: fill.Timestamp,
			})
			return ApplyResult{Position: flipped, RealizedDelta: realized}, nil
		}
		if !t.cfg.FlipOnOverflow && excess.IsPositive() {
			return ApplyResult{Position: nil, RealizedDelta: realized, Excess: excess},
				coreerr.New(coreerr.KindInsufficientQuantity, "position.ApplyFill")
		}
		return ApplyResult{Position: nil, RealizedDelta: realized}, nil
	}

	t.recordLocked(pos.ID, core.PositionEvent{
		Kind: core.PositionDecreased, PositionID: pos.ID, Ticker: pos.Ticker,
		Quantity: reduceQty, Price: fill.Price, RealizedDelta: realized, Timestamp: fill.Timestamp,
	})
	return ApplyResult{Position: pos, RealizedDelta: realized}, nil
}

// realizedPnL computes the P&L on reduceQty units exited at exitPrice
// against pos's average entry price, sign-adjusted for side.
func (t *Tracker) realizedPnL(pos *core.Position, exitPrice, reduceQty core.Decimal) core.Decimal {
	delta := exitPrice.Sub(pos.AvgEntryPrice).Mul(reduceQty)
	if pos.Side == core.Sell {
		delta = delta.Neg()
	}
	return delta
}

// MarkPrice updates a position's mark and recomputes unrealized P&L,
// emitting a PriceUpdated event. No-op if no open position exists for key.
func (t *Tracker) MarkPrice(ticker core.Ticker, strategyID string, price core.Decimal, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.open[key{ticker: ticker, strategyID: strategyID}]
	if !ok {
		return
	}
	pos.LastMarkPrice = price
	delta := price.Sub(pos.AvgEntryPrice).Mul(pos.Quantity)
	if pos.Side == core.Sell {
		delta = delta.Neg()
	}
	pos.UnrealizedPnL = delta
	t.recordLocked(pos.ID, core.PositionEvent{
		Kind: core.PositionPriceUpdate, PositionID: pos.ID, Ticker: ticker, Price: price, Timestamp: at,
	})
}

func (t *Tracker) recordLocked(positionID string, ev core.PositionEvent) {
	ring := t.events[positionID]
	ring = append(ring, ev)
	if max := t.cfg.maxEvents(); len(ring) > max {
		ring = ring[len(ring)-max:]
	}
	t.events[positionID] = ring
}

// Open returns the open position for (ticker, strategyID), if any.
func (t *Tracker) Open(ticker core.Ticker, strategyID string) (*core.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.open[key{ticker: ticker, strategyID: strategyID}]
	return p, ok
}

// OpenByTicker returns every open position across strategies for ticker.
func (t *Tracker) OpenByTicker(ticker core.Ticker) []*core.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*core.Position
	for k, p := range t.open {
		if k.ticker == ticker {
			out = append(out, p)
		}
	}
	return out
}

// All returns every currently open position.
func (t *Tracker) All() []*core.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*core.Position, 0, len(t.open))
	for _, p := range t.open {
		out = append(out, p)
	}
	return out
}

// Events returns the bounded event history for a position ID, oldest first.
func (t *Tracker) Events(positionID string) []core.PositionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]core.PositionEvent(nil), t.events[positionID]...)
}

// TotalExposure sums Quantity*LastMarkPrice across all open positions, used
// by the Risk Gate's total-exposure check.
func (t *Tracker) TotalExposure() core.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := core.Zero
	for _, p := range t.open {
		total = total.Add(p.Quantity.Mul(p.LastMarkPrice))
	}
	return total
}

// Count returns the number of currently open positions.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

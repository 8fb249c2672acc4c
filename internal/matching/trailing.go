package matching

import "trader-core/pkg/core"

// TrailingStopState is the small monotonic state machine backing a
// TRAILING_STOP order, kept separate from the matching engine's fill logic
// per the trailing-stop invariant: the trigger price only ever moves in the
// favorable direction, never retreats.
//
// Side is the exit side of the order (Sell for a long position's trailing
// stop, Buy for a short's), so BestSeen tracks the maximum price for a Sell
// trail and the minimum price for a Buy trail.
type TrailingStopState struct {
	Side          core.Side
	TrailDistance core.Decimal
	IsPercentage  bool
	BestSeen      core.Decimal
	Trigger       core.Decimal
	Activated     bool
}

// NewTrailingStopState seeds the state from the price observed at order
// acceptance time.
func NewTrailingStopState(side core.Side, initialPrice, trailDistance core.Decimal, isPercentage bool) *TrailingStopState {
	s := &TrailingStopState{Side: side, TrailDistance: trailDistance, IsPercentage: isPercentage, BestSeen: initialPrice}
	s.Trigger = s.computeTrigger(initialPrice)
	return s
}

func (s *TrailingStopState) computeTrigger(best core.Decimal) core.Decimal {
	if s.Side == core.Sell {
		if s.IsPercentage {
			return best.Mul(core.Hundred.Sub(s.TrailDistance)).Div(core.Hundred)
		}
		return best.Sub(s.TrailDistance)
	}
	if s.IsPercentage {
		return best.Mul(core.Hundred.Add(s.TrailDistance)).Div(core.Hundred)
	}
	return best.Add(s.TrailDistance)
}

// Update records a newly observed favorable extreme and advances the
// trigger accordingly. Returns true if the trigger moved.
func (s *TrailingStopState) Update(favorablePrice core.Decimal) bool {
	isMoreFavorable := false
	if s.Side == core.Sell {
		isMoreFavorable = favorablePrice.GreaterThan(s.BestSeen)
	} else {
		isMoreFavorable = favorablePrice.LessThan(s.BestSeen)
	}
	if !isMoreFavorable {
		return false
	}
	s.BestSeen = favorablePrice
	newTrigger := s.computeTrigger(favorablePrice)

	moved := false
	if s.Side == core.Sell && newTrigger.GreaterThan(s.Trigger) {
		moved = true
	} else if s.Side == core.Buy && newTrigger.LessThan(s.Trigger) {
		moved = true
	}
	if moved {
		s.Trigger = newTrigger
		s.Activated = true
	}
	return moved
}

// ShouldTrigger reports whether adversePrice has crossed the current
// trigger: at or below it for a Sell trail, at or above it for a Buy trail.
func (s *TrailingStopState) ShouldTrigger(adversePrice core.Decimal) bool {
	if s.Side == core.Sell {
		return adversePrice.LessThanOrEqual(s.Trigger)
	}
	return adversePrice.GreaterThanOrEqual(s.Trigger)
}

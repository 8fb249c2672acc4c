package stratcontext

import (
	"sync"
	"time"

	"trader-core/pkg/core"
)

// FlowScorer computes GlobalScore/RouteState per ticker from a rolling
// window of recent fills, the same directional-imbalance + fill-velocity
// composite the venue's own flow-toxicity detector uses, repurposed here as
// a favorability score instead of a toxicity-avoidance trigger: a high
// score means recent flow has been balanced and slow rather than one-sided
// and fast. The score does not depend on which side any strategy trades.
type FlowScorer struct {
	mu           sync.Mutex
	window       time.Duration
	fills        map[core.Ticker][]scoredFill
	now          func() time.Time
	toxicFloor   float64 // score at/below which RouteState is Wait
	overheatFloor float64 // score at/below which RouteState is Overheat (most severe)
}

type scoredFill struct {
	side core.Side
	at   time.Time
}

// NewFlowScorer builds a scorer with a rolling window (typically a few
// minutes) over which directional imbalance and fill velocity are measured.
func NewFlowScorer(window time.Duration) *FlowScorer {
	return &FlowScorer{
		window:        window,
		fills:         make(map[core.Ticker][]scoredFill),
		now:           time.Now,
		toxicFloor:    40,
		overheatFloor: 15,
	}
}

// RecordFill feeds one observed fill (ours or the tape's) into the rolling
// window for its ticker.
func (f *FlowScorer) RecordFill(ticker core.Ticker, side core.Side, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills[ticker] = append(f.fills[ticker], scoredFill{side: side, at: at})
	f.evictStaleLocked(ticker, at)
}

func (f *FlowScorer) evictStaleLocked(ticker core.Ticker, now time.Time) {
	cutoff := now.Add(-f.window)
	fills := f.fills[ticker]
	i := 0
	for i < len(fills) && fills[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		f.fills[ticker] = fills[i:]
	}
}

// Score computes the current GlobalScore and RouteState for ticker from its
// rolling fill window.
func (f *FlowScorer) Score(ticker core.Ticker) (core.GlobalScore, core.RouteState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	f.evictStaleLocked(ticker, now)
	fills := f.fills[ticker]

	if len(fills) == 0 {
		return core.GlobalScore{Ticker: ticker, ComputedAt: now}, core.RouteNeutral
	}

	var buys, sells int
	for _, fl := range fills {
		if fl.side == core.Buy {
			buys++
		} else {
			sells++
		}
	}
	total := float64(buys + sells)
	dominant := float64(buys)
	if sells > buys {
		dominant = float64(sells)
	}
	directionalImbalance := dominant / total

	windowMinutes := f.window.Minutes()
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	fillVelocity := total / windowMinutes
	const velocityCeiling = 3.0 // fills/min considered saturating
	velocityFactor := fillVelocity / velocityCeiling
	if velocityFactor > 1 {
		velocityFactor = 1
	}

	toxicity := 0.6*directionalImbalance + 0.4*velocityFactor
	// Invert toxicity into a favorability score on [0,100]: a flow that is
	// heavily one-sided and fast is treated as adverse, not favorable,
	// since it usually means the tape is running away from a fresh entry.
	score := (1 - toxicity) * 100

	route := core.RouteArmed
	switch {
	case score <= f.overheatFloor:
		route = core.RouteOverheat
	case score <= f.toxicFloor:
		route = core.RouteWait
	case score >= 80:
		route = core.RouteAttack
	}

	return core.GlobalScore{
		Ticker:               ticker,
		DirectionalImbalance: directionalImbalance,
		FillVelocity:         fillVelocity,
		Score:                score,
		IsAverse:             toxicity >= 0.6,
		ComputedAt:           now,
	}, route
}

// Tickers returns every ticker with at least one recorded fill.
func (f *FlowScorer) Tickers() []core.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Ticker, 0, len(f.fills))
	for t := range f.fills {
		out = append(out, t)
	}
	return out
}

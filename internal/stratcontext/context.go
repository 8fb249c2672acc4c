// Package stratcontext implements the Strategy Context: a process-wide,
// read-mostly map of per-ticker regime and account state that strategies
// consult before acting, and the two independent periodic writers that
// keep it fresh.
package stratcontext

import (
	"sync"

	"trader-core/pkg/core"
)

// entry is the context's internal per-ticker record; RouteState and
// GlobalScore are written by the analytics sync, Account by the exchange
// sync, independently and on different schedules.
type entry struct {
	route   core.RouteState
	score   *core.GlobalScore
	account core.AccountSnapshot
	hasAcct bool
}

// Context is the shared, concurrently-readable map strategies hold a
// handle to. Reads take a brief shared lock; writers (the two sync loops)
// take the exclusive lock only long enough to swap one ticker's entry, and
// must never call strategy code while holding it.
type Context struct {
	mu      sync.RWMutex
	entries map[core.Ticker]*entry
}

// New builds an empty Context. Absent tickers read back with RouteState
// RouteNeutral and no score or account snapshot (strategies treat an
// absent/unknown key as "permit entry by default").
func New() *Context {
	return &Context{entries: make(map[core.Ticker]*entry)}
}

// Get returns the current snapshot for ticker. ok is false if the context
// has never been written for this ticker (callers should treat this as
// RouteNeutral / unknown, not as an error).
func (c *Context) Get(ticker core.Ticker) (core.TickerContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[ticker]
	if !ok {
		return core.TickerContext{Ticker: ticker, Route: core.RouteNeutral}, false
	}
	tc := core.TickerContext{Ticker: ticker, Route: e.route, Score: e.score}
	if e.hasAcct {
		tc.Account = e.account
	}
	return tc, true
}

// Tickers returns every ticker currently tracked, for diagnostics.
func (c *Context) Tickers() []core.Ticker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Ticker, 0, len(c.entries))
	for t := range c.entries {
		out = append(out, t)
	}
	return out
}

func (c *Context) mutate(ticker core.Ticker, fn func(*entry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ticker]
	if !ok {
		e = &entry{route: core.RouteNeutral}
		c.entries[ticker] = e
	}
	fn(e)
}

// setAnalytics is called by the analytics sync writer only.
func (c *Context) setAnalytics(ticker core.Ticker, route core.RouteState, score core.GlobalScore) {
	c.mutate(ticker, func(e *entry) {
		e.route = route
		s := score
		e.score = &s
	})
}

// setAccount is called by the exchange sync writer only.
func (c *Context) setAccount(ticker core.Ticker, account core.AccountSnapshot) {
	c.mutate(ticker, func(e *entry) {
		e.account = account
		e.hasAcct = true
	})
}

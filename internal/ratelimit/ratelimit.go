// Package ratelimit implements a non-blocking, per-key token-bucket limiter.
//
// Unlike a blocking token bucket's Wait, this limiter never suspends the
// caller: Acquire returns immediately with either Allowed or
// Limited{RetryAfter}, so it can be called from inside the engine's
// single-writer dispatch loop without risking a stall on one slow key.
package ratelimit

import (
	"sync"
	"time"
)

// Config tunes one Limiter's capacity and refill rate.
type Config struct {
	RequestsPerMinute int
	BurstSize         int
	CleanupInterval   time.Duration
}

// DefaultConfig matches the platform's own default API budget: 1200 rpm
// with a 50-request burst allowance on top.
func DefaultConfig() Config {
	return Config{RequestsPerMinute: 1200, BurstSize: 50, CleanupInterval: 60 * time.Second}
}

// NewConfig derives a burst size of one tenth of the per-minute rate, the
// same ratio the platform defaults use.
func NewConfig(requestsPerMinute int) Config {
	return Config{
		RequestsPerMinute: requestsPerMinute,
		BurstSize:         requestsPerMinute / 10,
		CleanupInterval:   60 * time.Second,
	}
}

// StrictConfig allows no burst at all: exactly requestsPerMinute sustained,
// nothing more.
func StrictConfig(requestsPerMinute int) Config {
	return Config{RequestsPerMinute: requestsPerMinute, BurstSize: 0, CleanupInterval: 60 * time.Second}
}

// Result is the outcome of an Acquire call.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// maxTokens and refillRate are derived once from Config and shared by every
// bucket the limiter creates, matching the source's per-limiter (not
// per-bucket) token math.
func maxTokens(cfg Config) float64 {
	return float64(cfg.RequestsPerMinute)/60.0 + float64(cfg.BurstSize)
}

func refillRate(cfg Config) float64 {
	return float64(cfg.RequestsPerMinute) / 60.0
}

// Limiter enforces Config's budget independently per key (typically a
// client IP or a venue credential id). Buckets are created lazily on first
// use and reaped by Cleanup.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// New builds a Limiter. Buckets are allocated lazily per key.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, buckets: make(map[string]*bucket), now: time.Now}
}

// Acquire attempts to consume one token for key, returning immediately.
func (l *Limiter) Acquire(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: maxTokens(l.cfg), lastRefill: now}
		l.buckets[key] = b
	}
	l.refillLocked(b, now)

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return Result{Allowed: true}
	}
	return Result{Allowed: false, RetryAfter: l.timeUntilNextTokenLocked(b)}
}

func (l *Limiter) refillLocked(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * refillRate(l.cfg)
	if max := maxTokens(l.cfg); b.tokens > max {
		b.tokens = max
	}
	b.lastRefill = now
}

func (l *Limiter) timeUntilNextTokenLocked(b *bucket) time.Duration {
	rate := refillRate(l.cfg)
	if rate <= 0 {
		return time.Hour // effectively closed: configured for 0 rpm
	}
	needed := (1.0 - b.tokens) / rate
	if needed < 0 {
		needed = 0
	}
	return time.Duration(needed * float64(time.Second))
}

// Cleanup drops buckets whose last_refill is older than cutoff, bounding
// memory under many distinct keys. Age alone decides eviction: an idle
// bucket's token count is irrelevant, since nothing will refill it again
// until its key is next acquired. Callers typically run this on
// cfg.CleanupInterval via a ticker.
func (l *Limiter) Cleanup(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// TrackedKeys returns the set of keys currently holding a bucket, for
// diagnostics/dashboards.
func (l *Limiter) TrackedKeys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.buckets))
	for k := range l.buckets {
		keys = append(keys, k)
	}
	return keys
}

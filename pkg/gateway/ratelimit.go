// Package gateway is the HTTP front door: the echo server, the admission
// middleware (body limits, timeouts, auth, rate limiting, idempotency), the
// chat REST surface, and the workspace path sandbox.
package gateway

import (
	"sync"
	"time"
)

const (
	// sweepInterval bounds how often a full map sweep may run.
	sweepInterval = 5 * time.Minute
	// DefaultRateLimitMaxKeys is used when the configured cap is 0.
	DefaultRateLimitMaxKeys = 10000
)

// SlidingWindow counts requests per key inside a rolling window with bounded
// key cardinality. A zero limit disables the limiter entirely.
type SlidingWindow struct {
	limit   int
	window  time.Duration
	maxKeys int

	mu          sync.Mutex
	requests    map[string][]time.Time
	lastSweepAt time.Time
	now         func() time.Time
}

// NewSlidingWindow creates a limiter. maxKeys 0 means the default cap; any
// value is clamped to at least 1.
func NewSlidingWindow(limit int, window time.Duration, maxKeys int) *SlidingWindow {
	if maxKeys == 0 {
		maxKeys = DefaultRateLimitMaxKeys
	}
	if maxKeys < 1 {
		maxKeys = 1
	}
	return &SlidingWindow{
		limit:       limit,
		window:      window,
		maxKeys:     maxKeys,
		requests:    make(map[string][]time.Time),
		lastSweepAt: time.Now(),
		now:         time.Now,
	}
}

// Window returns the rolling window length, exposed for 429 retry_after.
func (l *SlidingWindow) Window() time.Duration { return l.window }

// Allow records a request for key and reports whether it is within the limit.
func (l *SlidingWindow) Allow(key string) bool {
	if l.limit == 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	if now.Sub(l.lastSweepAt) >= sweepInterval {
		l.sweep(cutoff, now)
	}

	if _, known := l.requests[key]; !known && len(l.requests) >= l.maxKeys {
		// Opportunistic sweep before evicting a live key.
		l.sweep(cutoff, now)
		if len(l.requests) >= l.maxKeys {
			l.evictColdest()
		}
	}

	kept := pruneAfter(l.requests[key], cutoff)
	if len(kept) >= l.limit {
		l.requests[key] = kept
		return false
	}
	l.requests[key] = append(kept, now)
	return true
}

// Len reports current key cardinality.
func (l *SlidingWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// sweep drops expired timestamps everywhere and removes empty keys.
func (l *SlidingWindow) sweep(cutoff, now time.Time) {
	for key, stamps := range l.requests {
		kept := pruneAfter(stamps, cutoff)
		if len(kept) == 0 {
			delete(l.requests, key)
			continue
		}
		l.requests[key] = kept
	}
	l.lastSweepAt = now
}

// evictColdest removes the key whose most-recent request is oldest.
func (l *SlidingWindow) evictColdest() {
	var coldestKey string
	var coldestAt time.Time
	first := true
	for key, stamps := range l.requests {
		last := stamps[len(stamps)-1]
		if first || last.Before(coldestAt) {
			coldestKey, coldestAt = key, last
			first = false
		}
	}
	if !first {
		delete(l.requests, coldestKey)
	}
}

// pruneAfter keeps timestamps strictly newer than cutoff. Timestamps are
// appended in order, so the first survivor marks the boundary.
func pruneAfter(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	return append([]time.Time(nil), stamps[idx:]...)
}

// RateLimiters groups the independent per-endpoint limiters.
type RateLimiters struct {
	Pair    *SlidingWindow
	Webhook *SlidingWindow
}

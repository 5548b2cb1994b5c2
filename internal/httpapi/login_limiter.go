package httpapi

import (
	"sync"
	"time"
)

// rateLimiter is a sliding-window counter keyed by caller. It guards login
// attempts and connection-request creation.
type rateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string][]time.Time
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	return &rateLimiter{
		window:  window,
		max:     max,
		entries: make(map[string][]time.Time),
	}
}

func newLoginLimiter() *rateLimiter {
	return newRateLimiter(5*time.Minute, 10)
}

func newRequestLimiter() *rateLimiter {
	return newRateLimiter(time.Hour, 30)
}

func (l *rateLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.prune(key, now)
	if len(ts) >= l.max {
		return false
	}
	l.entries[key] = append(ts, now)
	return true
}

func (l *rateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	ts := l.entries[key]
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.entries, key)
		return nil
	}
	l.entries[key] = kept
	return kept
}

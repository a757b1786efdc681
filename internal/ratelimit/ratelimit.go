// Package ratelimit throttles credential issuance and session creation
// per client address.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter allows at most max events per key within a sliding window.
type Limiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

// New creates a Limiter allowing max events per key per window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether key is still under its limit and, if so, records
// the event.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	valid := prune(l.hits[key], now.Add(-l.window))
	if len(valid) >= l.max {
		l.hits[key] = valid
		return false
	}
	l.hits[key] = append(valid, now)
	return true
}

// Sweep drops keys whose events have all expired.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, ts := range l.hits {
		if valid := prune(ts, cutoff); len(valid) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = valid
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	valid := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

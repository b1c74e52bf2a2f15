// Package ratelimit provides fixed window request counters keyed by an
// arbitrary identity such as a client address.
//
// A fixed window resets at discrete boundaries, so a client can send up to
// twice the limit across the edge of two windows. Callers that need a hard
// rate should not use it.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter consumes one unit for key and reports whether the call may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type windowEntry struct {
	count       int
	windowStart time.Time
}

// FixedWindow is an in-process fixed window limiter. It is safe for
// concurrent use; state does not survive a restart.
type FixedWindow struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	entries   map[string]*windowEntry
	now       func() time.Time
	lastPrune time.Time
}

// Option customises a FixedWindow.
type Option func(*FixedWindow)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindow) {
		if now != nil {
			l.now = now
		}
	}
}

// NewFixedWindow builds a limiter allowing max calls per key per window.
func NewFixedWindow(window time.Duration, max int, opts ...Option) *FixedWindow {
	l := &FixedWindow{
		window:  window,
		max:     max,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastPrune = l.now()
	return l
}

// Allow implements Limiter.
func (l *FixedWindow) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	entry, ok := l.entries[key]
	// A window stays closed up to and including its last instant.
	if !ok || now.Sub(entry.windowStart) > l.window {
		l.entries[key] = &windowEntry{count: 1, windowStart: now}
		return Decision{Allowed: true, Remaining: l.max - 1}, nil
	}

	if entry.count >= l.max {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: entry.windowStart.Add(l.window).Sub(now),
		}, nil
	}

	entry.count++
	return Decision{Allowed: true, Remaining: l.max - entry.count}, nil
}

// Len returns the number of tracked keys.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *FixedWindow) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.windowStart) > l.window {
			delete(l.entries, key)
		}
	}
	l.lastPrune = now
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold bounds the window map. Device-scoped verify keys churn with
// every new device, so stale windows are swept once the map grows past it.
const sweepThreshold = 4096

// window is one key's usage within a single second.
type window struct {
	second int64
	used   int
}

// MemoryLimiter is the in-process fixed-window limiter. It is the default
// backend and the fallback whenever Redis is unavailable.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]window
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]window)}
}

// Allow consumes one slot from the key's current one-second window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	second := now.Unix()
	reset := time.Unix(second+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w.second != second {
		w = window{second: second}
	}
	if w.used >= limit {
		l.windows[key] = w
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	w.used++
	l.windows[key] = w
	if len(l.windows) > sweepThreshold {
		l.sweep(second)
	}
	return Result{Allowed: true, Remaining: limit - w.used, Reset: reset}, nil
}

// sweep drops windows from past seconds. The caller holds the lock.
func (l *MemoryLimiter) sweep(second int64) {
	for key, w := range l.windows {
		if w.second < second {
			delete(l.windows, key)
		}
	}
}

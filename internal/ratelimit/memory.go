package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"chancafe-q/backend/internal/platform/clock"
)

// pruneThreshold is the window count above which expired windows are dropped.
const pruneThreshold = 10000

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is an in-process fixed-window counter with the same semantics as RedisLimiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	clock   clock.Clock
}

// NewMemoryLimiter returns an in-process limiter. A nil clock uses the system clock.
func NewMemoryLimiter(clk clock.Clock) *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*window), clock: clock.OrSystem(clk)}
}

// Allow counts one request against key. The window opens at the first request and
// resets once it has elapsed.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, length time.Duration) (Decision, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	windowKey := key + "|" + strconv.Itoa(limit) + "|" + length.String()
	w, ok := l.windows[windowKey]
	if !ok || !now.Before(w.resetAt) {
		if !ok && len(l.windows) >= pruneThreshold {
			l.prune(now)
		}
		w = &window{resetAt: now.Add(length)}
		l.windows[windowKey] = w
	}
	w.count++
	return decide(w.count, limit, w.resetAt.Sub(now)), nil
}

// prune drops windows that have ended. Callers hold l.mu.
func (l *MemoryLimiter) prune(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

// Len returns the number of tracked windows.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Package ratelimit provides per-tenant admission control using a fixed
// 60-second window counter. A request at the ceiling is rejected without
// being counted, so rejected traffic cannot extend a tenant's lockout.
// Supports both in-memory (single instance) and Redis (distributed) backends.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is the fixed interval after which every tenant's counter resets.
const Window = time.Minute

// RateLimiter is the admission-control contract. It reports whether the
// request is admitted, the remaining quota in the current window, and when
// the window resets. The check-then-increment must be atomic per tenant:
// concurrent requests may never both observe a pre-increment count and both
// be admitted past the ceiling. Backend errors propagate; callers fail
// closed rather than admitting unmetered traffic.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID string, limit int) (allowed bool, remaining int, resetAt time.Time, err error)
}

// InMemoryRateLimiter implements fixed-window limiting behind a mutex.
// Suitable for single-instance deployments.
type InMemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		windows: make(map[string]*window),
	}
}

func (r *InMemoryRateLimiter) Allow(ctx context.Context, tenantID string, limit int) (bool, int, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	w, ok := r.windows[tenantID]
	if !ok || now.After(w.resetAt) {
		w = &window{
			count:   0,
			resetAt: now.Add(Window),
		}
		r.windows[tenantID] = w
	}

	if w.count >= limit {
		return false, 0, w.resetAt, nil
	}

	w.count++
	remaining := limit - w.count

	return true, remaining, w.resetAt, nil
}

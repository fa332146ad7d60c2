// Package rate limits how often an identity may perform an action.
package rate

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most limit calls per key per window. A limit <= 0 admits
// everything. The returned duration is the time until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

type MemoryLimiter struct {
	mu    sync.Mutex
	store map[string]*bucket
	now   func() time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{store: make(map[string]*bucket), now: time.Now}
}

// NewMemoryWithClock is NewMemory with an injected clock.
func NewMemoryWithClock(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{store: make(map[string]*bucket), now: now}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if limit <= 0 {
		return true, 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.store[key]
	if !ok || !now.Before(b.resetAt) || b.window != window {
		b = &bucket{count: 0, resetAt: now.Add(window), window: window}
		m.store[key] = b
	}

	if b.count >= limit {
		return false, b.resetAt.Sub(now), nil
	}

	b.count++
	return true, b.resetAt.Sub(now), nil
}

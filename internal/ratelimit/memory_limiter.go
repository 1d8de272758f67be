package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	hits []time.Time
}

// MemoryLimiter keeps sliding windows in process memory. It backs the
// limiter when Redis is unavailable.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an in-memory limiter implementation.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Check enforces a sliding-window limit for the provided key.
func (m *MemoryLimiter) Check(_ context.Context, key string, rule Rule) (*Result, error) {
	now := m.now()
	if !rule.Enabled() {
		return &Result{Allowed: true, ResetAt: now}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bkt, ok := m.buckets[key]
	if !ok {
		bkt = &bucket{hits: make([]time.Time, 0, 8)}
		m.buckets[key] = bkt
	}

	bkt.hits = keepRecent(bkt.hits, now.Add(-rule.Window))
	allowed := len(bkt.hits) < rule.Limit
	if allowed {
		bkt.hits = append(bkt.hits, now)
	}

	resetAt := now.Add(rule.Window)
	if len(bkt.hits) > 0 {
		resetAt = bkt.hits[0].Add(rule.Window)
	}

	return &Result{
		Allowed:   allowed,
		Remaining: max(rule.Limit-len(bkt.hits), 0),
		ResetAt:   resetAt,
	}, nil
}

// Sweep drops buckets whose last hit is older than maxAge and returns how many were removed.
func (m *MemoryLimiter) Sweep(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, bkt := range m.buckets {
		if len(bkt.hits) == 0 || bkt.hits[len(bkt.hits)-1].Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func keepRecent(hits []time.Time, windowStart time.Time) []time.Time {
	first := 0
	for first < len(hits) && hits[first].Before(windowStart) {
		first++
	}
	if first == 0 {
		return hits
	}
	n := copy(hits, hits[first:])
	return hits[:n]
}

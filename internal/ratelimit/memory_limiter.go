package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLimiter is the in-process limiter. It backs single-replica setups and
// stands in for Redis while Redis is unreachable.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	log     *slog.Logger
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an empty in-memory limiter.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		log:     log,
		now:     time.Now,
	}
}

// Take admits one request for key under rule.
func (m *MemoryLimiter) Take(_ context.Context, key string, rule Rule) (Usage, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	reqs := dropBefore(m.windows[key], now.Add(-rule.Window))
	if len(reqs) >= rule.Limit {
		m.windows[key] = reqs
		if len(reqs) == 0 {
			return Usage{RetryAfter: rule.Window}, nil
		}
		return Usage{RetryAfter: retryAfter(reqs[0], rule.Window, now)}, nil
	}

	reqs = append(reqs, now)
	m.windows[key] = reqs

	return Usage{Allowed: true, Remaining: rule.Limit - len(reqs)}, nil
}

// Cleanup forgets keys whose last request is older than maxAge and reports
// how many were dropped.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, reqs := range m.windows {
		if len(reqs) == 0 || reqs[len(reqs)-1].Before(cutoff) {
			delete(m.windows, key)
			removed++
		}
	}

	return removed
}

// Sweep calls Cleanup every interval until ctx is done. Redis keys expire
// on their own, so only the memory limiter needs it.
func (m *MemoryLimiter) Sweep(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(maxAge); n > 0 {
				m.log.Debug("idle rate limit windows dropped", slog.Int("keys", n))
			}
		}
	}
}

// dropBefore removes timestamps at or before start, reusing the backing array.
func dropBefore(reqs []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(reqs) && !reqs[i].After(start) {
		i++
	}
	if i == 0 {
		return reqs
	}
	return append(reqs[:0], reqs[i:]...)
}

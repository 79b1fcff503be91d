// Package ratelimit throttles bot traffic with per-tier hourly budgets and
// per-command cooldowns.
package ratelimit

import (
	"context"
	"time"
)

// Usage is the state of a key after one Take.
type Usage struct {
	Allowed   bool
	Remaining int
	// RetryAfter is set on refusals: the time until the oldest request leaves the window.
	RetryAfter time.Duration
}

// Limiter counts requests per key in a sliding window. A refused request is
// not recorded, so hammering a cooldown does not push it further out.
type Limiter interface {
	Take(ctx context.Context, key string, rule Rule) (Usage, error)
}

func retryAfter(oldest time.Time, window time.Duration, now time.Time) time.Duration {
	d := oldest.Add(window).Sub(now)
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}

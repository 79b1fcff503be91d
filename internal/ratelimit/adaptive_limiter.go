package ratelimit

import (
	"context"
	"log/slog"

	"github.com/Proton-105/tiergate-bot/pkg/metrics"
)

// AdaptiveLimiter prefers the shared Redis limiter and drops to the local one
// with halved budgets while Redis errors. Halving keeps several replicas, each
// counting on its own, from multiplying a user's budget.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

var _ Limiter = (*AdaptiveLimiter)(nil)

// NewAdaptiveLimiter wires primary with its fallback.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{primary: primary, fallback: fallback, log: log}
}

// Take asks the primary and consults the fallback only when the primary fails.
func (a *AdaptiveLimiter) Take(ctx context.Context, key string, rule Rule) (Usage, error) {
	usage, err := a.primary.Take(ctx, key, rule)
	if err == nil {
		metrics.RecordRateLimit("redis", usage.Allowed)
		return usage, nil
	}

	a.log.Warn("redis limiter failed, using in-memory limits", slog.String("key", key), slog.Any("error", err))

	strict := Rule{Limit: max(rule.Limit/2, 1), Window: rule.Window}
	usage, err = a.fallback.Take(ctx, key, strict)
	if err != nil {
		return usage, err
	}

	metrics.RecordRateLimit("memory", usage.Allowed)
	return usage, nil
}

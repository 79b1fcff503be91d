package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Verdict reports why a request was throttled.
type Verdict struct {
	Allowed bool
	// Cooldown is true when a per-command cooldown, not the hourly budget, refused the request.
	Cooldown   bool
	RetryAfter time.Duration
}

// Guard applies the tier budget and per-command cooldowns to one request.
type Guard struct {
	limiter Limiter
	rules   *Rules
	log     *slog.Logger
}

// NewGuard creates a Guard.
func NewGuard(limiter Limiter, rules *Rules, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}

	return &Guard{limiter: limiter, rules: rules, log: log}
}

// Allow charges one request for userID against its budget and, when command
// has a cooldown, against that cooldown. Limiter failures let the request through.
func (g *Guard) Allow(ctx context.Context, userID int64, tier string, owner bool, command string) Verdict {
	if g == nil || g.limiter == nil || g.rules == nil || g.rules.IsWhitelisted(userID) {
		return Verdict{Allowed: true}
	}

	budget := g.rules.OwnerLimit()
	if !owner {
		rule, ok := g.rules.TierLimit(tier)
		if !ok {
			return Verdict{Allowed: true}
		}
		budget = rule
	}

	if v, ok := g.check(ctx, fmt.Sprintf("user:%d", userID), budget); !ok {
		return v
	}

	if owner {
		return Verdict{Allowed: true}
	}

	if d, ok := g.rules.Cooldown(command); ok {
		if v, ok := g.check(ctx, fmt.Sprintf("cooldown:%s:%d", command, userID), Rule{Limit: 1, Window: d}); !ok {
			v.Cooldown = true
			return v
		}
	}

	return Verdict{Allowed: true}
}

func (g *Guard) check(ctx context.Context, key string, rule Rule) (Verdict, bool) {
	usage, err := g.limiter.Take(ctx, key, rule)
	if err != nil {
		g.log.Warn("rate limiter error", slog.String("key", key), slog.Any("error", err))
		return Verdict{Allowed: true}, true
	}
	if usage.Allowed {
		return Verdict{Allowed: true}, true
	}

	// Round up so a reply never says "0 seconds".
	retry := (usage.RetryAfter + time.Second - 1).Truncate(time.Second)
	return Verdict{RetryAfter: max(retry, time.Second)}, false
}

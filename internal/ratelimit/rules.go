package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Proton-105/tiergate-bot/pkg/config"
)

// Rule is a parsed request budget.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	whitelist map[int64]struct{}
	perTier   map[string]Rule
	owner     Rule
	cooldowns map[string]time.Duration
}

// NewRules parses rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	r := &Rules{
		whitelist: make(map[int64]struct{}, len(cfg.Whitelist)),
		perTier:   make(map[string]Rule, len(cfg.PerTier)),
		cooldowns: make(map[string]time.Duration, len(cfg.Cooldowns)),
	}

	for _, id := range cfg.Whitelist {
		r.whitelist[id] = struct{}{}
	}

	for tier, raw := range cfg.PerTier {
		rule, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("rate limit for tier %q: %w", tier, err)
		}
		r.perTier[strings.ToLower(tier)] = rule
	}

	owner, err := parseRule(cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner rate limit: %w", err)
	}
	r.owner = owner

	for cmd, raw := range cfg.Cooldowns {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("cooldown for %q: %w", cmd, err)
		}
		r.cooldowns[strings.ToLower(strings.TrimPrefix(cmd, "/"))] = d
	}

	return r, nil
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	_, ok := r.whitelist[userID]
	return ok
}

// TierLimit returns the request budget for tier.
func (r *Rules) TierLimit(tier string) (Rule, bool) {
	rule, ok := r.perTier[strings.ToLower(tier)]
	return rule, ok
}

// OwnerLimit returns the owner's request budget.
func (r *Rules) OwnerLimit() Rule {
	return r.owner
}

// Cooldown returns the minimum spacing between two uses of command.
func (r *Rules) Cooldown(command string) (time.Duration, bool) {
	d, ok := r.cooldowns[command]
	return d, ok && d > 0
}

func parseRule(rule config.RateLimitRule) (Rule, error) {
	if rule.Window == "" {
		return Rule{}, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return Rule{}, err
	}
	if rule.Limit <= 0 || window <= 0 {
		return Rule{}, fmt.Errorf("limit %d over %s is not positive", rule.Limit, rule.Window)
	}
	return Rule{Limit: rule.Limit, Window: window}, nil
}

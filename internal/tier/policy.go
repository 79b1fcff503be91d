// Package tier holds the static tier table and answers pricing, quota and
// command-permission questions against it.
package tier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/pkg/config"
)

// Unlimited marks a tier without a daily check quota.
const Unlimited = -1

// Rule is the pricing, quota and command set of one tier.
type Rule struct {
	CreditsPerCheck int64
	ChecksPerDay    int
	Commands        map[string]struct{}
}

// Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	rules      map[domain.Tier]Rule
	ownerOnly  map[string]struct{}
	checkClass map[string]struct{}
}

// NewPolicy builds a Policy from the tier table in cfg.
func NewPolicy(tiers map[string]config.TierConfig, commands config.CommandsConfig) (*Policy, error) {
	p := &Policy{
		rules:      make(map[domain.Tier]Rule, len(tiers)),
		ownerOnly:  toSet(commands.OwnerOnly),
		checkClass: toSet(commands.CheckClass),
	}

	for name, tc := range tiers {
		t, ok := domain.ParseTier(name)
		if !ok {
			return nil, fmt.Errorf("unknown tier %q: %w", name, domain.ErrInvalidTier)
		}
		if tc.CreditsPerCheck <= 0 {
			return nil, fmt.Errorf("tier %s: credits per check must be positive", name)
		}
		if tc.ChecksPerDay <= 0 && tc.ChecksPerDay != Unlimited {
			return nil, fmt.Errorf("tier %s: checks per day must be positive or unlimited", name)
		}

		p.rules[t] = Rule{
			CreditsPerCheck: tc.CreditsPerCheck,
			ChecksPerDay:    tc.ChecksPerDay,
			Commands:        toSet(tc.Commands),
		}
	}

	for _, t := range []domain.Tier{domain.TierFree, domain.TierMonthly, domain.TierLifetime} {
		if _, ok := p.rules[t]; !ok {
			return nil, fmt.Errorf("tier %s is not configured", t)
		}
	}

	return p, nil
}

// ResolveTier returns the tier in effect at now. A monthly subscription with a
// missing or past expiry is downgraded to free on acc itself; lapsed reports that
// the caller must persist the change.
func (p *Policy) ResolveTier(acc *domain.Account, now time.Time) (t domain.Tier, lapsed bool) {
	if acc.Tier != domain.TierMonthly {
		return p.normalize(acc.Tier), false
	}

	if acc.TierExpiresAt != nil && acc.TierExpiresAt.After(now) {
		return domain.TierMonthly, false
	}

	acc.Tier = domain.TierFree
	acc.TierExpiresAt = nil
	return domain.TierFree, true
}

// IsCommandAllowed reports whether tier t may run cmd. Owner-only commands are never allowed by tier.
func (p *Policy) IsCommandAllowed(t domain.Tier, cmd string) bool {
	cmd = normalizeCommand(cmd)
	if p.IsOwnerOnly(cmd) {
		return false
	}

	_, ok := p.rule(t).Commands[cmd]
	return ok
}

// IsOwnerOnly reports whether cmd is reserved for the bot owner.
func (p *Policy) IsOwnerOnly(cmd string) bool {
	_, ok := p.ownerOnly[normalizeCommand(cmd)]
	return ok
}

// IsCheckCommand reports whether cmd consumes credits and daily quota.
func (p *Policy) IsCheckCommand(cmd string) bool {
	_, ok := p.checkClass[normalizeCommand(cmd)]
	return ok
}

// CostOf returns the credits one check costs on tier t.
func (p *Policy) CostOf(t domain.Tier) int64 {
	return p.rule(t).CreditsPerCheck
}

// DailyLimitOf returns the daily check quota of tier t, or Unlimited.
func (p *Policy) DailyLimitOf(t domain.Tier) int {
	return p.rule(t).ChecksPerDay
}

// IsKnownCommand reports whether any tier or the owner set lists cmd.
func (p *Policy) IsKnownCommand(cmd string) bool {
	cmd = normalizeCommand(cmd)
	if p.IsOwnerOnly(cmd) {
		return true
	}
	for _, r := range p.rules {
		if _, ok := r.Commands[cmd]; ok {
			return true
		}
	}
	return false
}

// Commands lists the commands tier t may run in alphabetical order.
func (p *Policy) Commands(t domain.Tier) []string {
	rule := p.rule(t)
	out := make([]string, 0, len(rule.Commands))
	for cmd := range rule.Commands {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// rule falls back to the free tier for values outside the table.
func (p *Policy) rule(t domain.Tier) Rule {
	if r, ok := p.rules[t]; ok {
		return r
	}
	return p.rules[domain.TierFree]
}

func (p *Policy) normalize(t domain.Tier) domain.Tier {
	if _, ok := p.rules[t]; ok {
		return t
	}
	return domain.TierFree
}

func normalizeCommand(cmd string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd), "/"))
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[normalizeCommand(item)] = struct{}{}
	}
	return set
}

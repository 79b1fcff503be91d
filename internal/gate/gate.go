// Package gate decides whether an identity may run a command.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/ledger"
	"github.com/Proton-105/tiergate-bot/pkg/metrics"
)

// RegisterCommand is the only command available to unregistered identities.
const RegisterCommand = "register"

// Reason explains a denial.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonBanned              Reason = "banned"
	ReasonNotRegistered       Reason = "not_registered"
	ReasonOwnerOnly           Reason = "owner_only"
	ReasonTierRestricted      Reason = "tier_restricted"
	ReasonInsufficientCredits Reason = "insufficient_credits"
	ReasonDailyLimitReached   Reason = "daily_limit_reached"
)

// MessageKey returns the stable i18n key for the reason.
func (r Reason) MessageKey() string {
	if r == ReasonNone {
		return ""
	}
	return "gate." + string(r)
}

// Err maps the reason onto its domain error.
func (r Reason) Err() error {
	switch r {
	case ReasonBanned:
		return domain.ErrBanned
	case ReasonNotRegistered:
		return domain.ErrNotRegistered
	case ReasonOwnerOnly:
		return domain.ErrOwnerOnly
	case ReasonTierRestricted:
		return domain.ErrTierRestricted
	case ReasonInsufficientCredits:
		return domain.ErrInsufficientCredits
	case ReasonDailyLimitReached:
		return domain.ErrDailyLimitReached
	default:
		return nil
	}
}

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed    bool
	Reason     Reason
	Command    string
	Tier       domain.Tier
	Account    *domain.Account
	CheckClass bool
	Owner      bool
}

// BanList reports banned identities.
type BanList interface {
	IsBanned(ctx context.Context, identity int64) (bool, error)
}

// Accounts loads accounts with their resolved tier.
type Accounts interface {
	Snapshot(ctx context.Context, identity int64) (*domain.Account, domain.Tier, error)
	Ledger() *ledger.Ledger
	Now() time.Time
}

// Gate evaluates commands in a fixed order: ban, registration, ownership,
// tier permission, then credits and daily quota for check commands.
type Gate struct {
	bans     BanList
	accounts Accounts
	ownerID  int64
	log      *slog.Logger
}

// New creates a Gate. ownerID is the only identity allowed to run owner-only commands.
func New(bans BanList, accounts Accounts, ownerID int64, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}

	return &Gate{
		bans:     bans,
		accounts: accounts,
		ownerID:  ownerID,
		log:      log,
	}
}

// IsOwner reports whether identity is the configured owner.
func (g *Gate) IsOwner(identity int64) bool {
	return identity == g.ownerID
}

// Evaluate decides whether identity may run command. Errors are reserved for
// infrastructure failures; denials are reported through Decision.Reason.
func (g *Gate) Evaluate(ctx context.Context, identity int64, command string) (Decision, error) {
	command = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(command), "/"))
	policy := g.accounts.Ledger().Policy()

	decision := Decision{
		Command:    command,
		Tier:       domain.TierFree,
		CheckClass: policy.IsCheckCommand(command),
		Owner:      g.IsOwner(identity),
	}

	banned, err := g.bans.IsBanned(ctx, identity)
	if err != nil {
		return decision, fmt.Errorf("gate: ban lookup: %w", err)
	}
	if banned {
		return g.deny(decision, ReasonBanned), nil
	}

	acc, resolved, err := g.accounts.Snapshot(ctx, identity)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		acc = nil
	case err != nil:
		return decision, fmt.Errorf("gate: load account: %w", err)
	default:
		decision.Account = acc
		decision.Tier = resolved
	}

	if command != RegisterCommand && (acc == nil || !acc.Registered) {
		return g.deny(decision, ReasonNotRegistered), nil
	}

	if policy.IsOwnerOnly(command) {
		if !decision.Owner {
			return g.deny(decision, ReasonOwnerOnly), nil
		}
		return g.allow(decision), nil
	}

	if !policy.IsCommandAllowed(decision.Tier, command) {
		return g.deny(decision, ReasonTierRestricted), nil
	}

	if decision.CheckClass && acc != nil {
		l := g.accounts.Ledger()
		if !l.HasCreditsForCheck(acc, decision.Tier) {
			return g.deny(decision, ReasonInsufficientCredits), nil
		}
		if !l.CanCheckToday(acc, decision.Tier, g.accounts.Now()) {
			return g.deny(decision, ReasonDailyLimitReached), nil
		}
	}

	return g.allow(decision), nil
}

func (g *Gate) allow(d Decision) Decision {
	d.Allowed = true
	metrics.RecordGateDecision(d.Command, "allowed")
	return d
}

func (g *Gate) deny(d Decision, reason Reason) Decision {
	d.Allowed = false
	d.Reason = reason
	metrics.RecordGateDecision(d.Command, string(reason))
	g.log.Debug("command denied",
		slog.String("command", d.Command),
		slog.String("reason", string(reason)),
		slog.String("tier", string(d.Tier)),
	)
	return d
}

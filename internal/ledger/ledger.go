// Package ledger implements credit, quota, referral and subscription bookkeeping
// for accounts. Ledger holds the pure rules; Service persists them.
package ledger

import (
	"fmt"
	"time"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/tier"
	"github.com/Proton-105/tiergate-bot/pkg/config"
)

// Ledger applies bookkeeping rules to accounts in memory. Every method either
// fully applies its mutation and returns the resulting entries, or returns an
// error leaving the account untouched.
type Ledger struct {
	policy            *tier.Policy
	registrationBonus int64
	referralBonus     int64
	month             time.Duration
}

// New builds a Ledger over policy with constants from cfg.
func New(policy *tier.Policy, cfg config.LedgerConfig) *Ledger {
	monthDays := cfg.MonthDays
	if monthDays <= 0 {
		monthDays = 30
	}

	return &Ledger{
		policy:            policy,
		registrationBonus: cfg.RegistrationBonus,
		referralBonus:     cfg.ReferralBonus,
		month:             time.Duration(monthDays) * 24 * time.Hour,
	}
}

// Policy exposes the tier table the ledger prices against.
func (l *Ledger) Policy() *tier.Policy {
	return l.policy
}

// RegistrationBonus is the credit grant for a new registration.
func (l *Ledger) RegistrationBonus() int64 {
	return l.registrationBonus
}

// ReferralBonus is the credit grant per paid referral.
func (l *Ledger) ReferralBonus() int64 {
	return l.referralBonus
}

// Register marks acc as registered and grants the registration bonus.
func (l *Ledger) Register(acc *domain.Account, now time.Time) (domain.LedgerEntry, error) {
	if acc.Registered {
		return domain.LedgerEntry{}, domain.ErrAlreadyRegistered
	}

	acc.Registered = true
	acc.Credits += l.registrationBonus

	return newEntry(acc, l.registrationBonus, domain.EntryBonus, "registration bonus", now), nil
}

// HasCreditsForCheck reports whether acc can pay for one check on tier t.
func (l *Ledger) HasCreditsForCheck(acc *domain.Account, t domain.Tier) bool {
	return acc.Credits >= l.policy.CostOf(t)
}

// CanCheckToday reports whether acc has daily quota left on tier t. A check on a
// new UTC day always passes because the counter rolls over on debit.
func (l *Ledger) CanCheckToday(acc *domain.Account, t domain.Tier, now time.Time) bool {
	limit := l.policy.DailyLimitOf(t)
	if limit == tier.Unlimited {
		return true
	}

	if !acc.LastCheckDate.Equal(domain.UTCDate(now)) {
		return true
	}

	return acc.ChecksToday < limit
}

// DebitForCheck charges acc for one check on tier t, rolling the daily counter
// over first when the date changed.
func (l *Ledger) DebitForCheck(acc *domain.Account, t domain.Tier, now time.Time) (domain.LedgerEntry, error) {
	cost := l.policy.CostOf(t)
	if acc.Credits < cost {
		return domain.LedgerEntry{}, domain.ErrInsufficientCredits
	}

	today := domain.UTCDate(now)
	if !acc.LastCheckDate.Equal(today) {
		acc.ChecksToday = 0
		acc.LastCheckDate = today
	}

	acc.Credits -= cost
	acc.ChecksToday++
	acc.TotalChecks++

	return newEntry(acc, -cost, domain.EntryCheck, fmt.Sprintf("check on %s tier", t), now), nil
}

// AddCredits applies a signed amount. Amounts that would leave the balance
// negative fail with ErrInvalidAmount.
func (l *Ledger) AddCredits(acc *domain.Account, amount int64, typ domain.EntryType, reason string, now time.Time) (domain.LedgerEntry, error) {
	if acc.Credits+amount < 0 {
		return domain.LedgerEntry{}, fmt.Errorf("balance %d, amount %d: %w", acc.Credits, amount, domain.ErrInvalidAmount)
	}

	acc.Credits += amount

	return newEntry(acc, amount, typ, reason, now), nil
}

// AddReferral counts a referral for referrer and links referred to it when
// referred has no referrer yet. linked reports whether the link was made.
func (l *Ledger) AddReferral(referrer, referred *domain.Account) (linked bool, err error) {
	if referrer.TelegramID == referred.TelegramID {
		return false, domain.ErrSelfReferral
	}

	referrer.TotalReferrals++

	if referred.ReferredBy != nil {
		return false, nil
	}

	id := referrer.TelegramID
	referred.ReferredBy = &id
	return true, nil
}

// ConfirmPaidReferral rewards referrer after a referred user paid.
func (l *Ledger) ConfirmPaidReferral(referrer *domain.Account, now time.Time) domain.LedgerEntry {
	referrer.PaidReferrals++
	referrer.Credits += l.referralBonus

	return newEntry(referrer, l.referralBonus, domain.EntryReferralBonus, "paid referral bonus", now)
}

// Upgrade moves acc to newTier. Monthly subscriptions last months*MonthDays from
// now, months defaulting to 1.
func (l *Ledger) Upgrade(acc *domain.Account, newTier domain.Tier, months int, now time.Time) error {
	switch newTier {
	case domain.TierMonthly:
		if months <= 0 {
			months = 1
		}
		expires := now.Add(time.Duration(months) * l.month)
		acc.Tier = domain.TierMonthly
		acc.TierExpiresAt = &expires
	case domain.TierLifetime, domain.TierFree:
		acc.Tier = newTier
		acc.TierExpiresAt = nil
	default:
		return fmt.Errorf("upgrade to %q: %w", newTier, domain.ErrInvalidTier)
	}

	return nil
}

func newEntry(acc *domain.Account, amount int64, typ domain.EntryType, description string, now time.Time) domain.LedgerEntry {
	return domain.LedgerEntry{
		TelegramID:  acc.TelegramID,
		Amount:      amount,
		Type:        typ,
		Description: description,
		CreatedAt:   now,
	}
}

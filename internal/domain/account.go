// Package domain holds the core entities shared by the bot's services.
package domain

import (
	"strings"
	"time"
)

// Tier is the subscription level of an account.
type Tier string

const (
	TierFree     Tier = "free"
	TierMonthly  Tier = "monthly"
	TierLifetime Tier = "lifetime"
)

// ParseTier converts user input into a Tier. Unknown values report false.
func ParseTier(raw string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierFree:
		return TierFree, true
	case TierMonthly:
		return TierMonthly, true
	case TierLifetime:
		return TierLifetime, true
	default:
		return "", false
	}
}

// IsPaid reports whether the tier is a purchased one.
func (t Tier) IsPaid() bool {
	return t == TierMonthly || t == TierLifetime
}

// Profile carries chat-side user details captured on first contact.
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// Account is the per-user ledger record keyed by TelegramID.
type Account struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string

	Registered bool
	Credits    int64

	Tier          Tier
	TierExpiresAt *time.Time

	ChecksToday   int
	LastCheckDate time.Time
	TotalChecks   int64

	TotalReferrals int
	PaidReferrals  int
	ReferralCode   string
	ReferredBy     *int64

	CreatedAt    time.Time
	LastActiveAt time.Time
}

// NewAccount returns an unregistered free-tier account for the profile.
func NewAccount(p Profile, referralCode string, now time.Time) *Account {
	return &Account{
		TelegramID:   p.TelegramID,
		Username:     p.Username,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Tier:         TierFree,
		ReferralCode: referralCode,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}

	cp := *a
	if a.TierExpiresAt != nil {
		t := *a.TierExpiresAt
		cp.TierExpiresAt = &t
	}
	if a.ReferredBy != nil {
		id := *a.ReferredBy
		cp.ReferredBy = &id
	}

	return &cp
}

// DisplayName picks the best human-readable label for the account.
func (a *Account) DisplayName() string {
	switch {
	case a.Username != "":
		return "@" + a.Username
	case a.FirstName != "":
		return strings.TrimSpace(a.FirstName + " " + a.LastName)
	default:
		return "user"
	}
}

// UTCDate truncates t to midnight UTC.
func UTCDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AccountStats summarizes the account population.
type AccountStats struct {
	Total       int
	Registered  int
	NewToday    int
	ActiveToday int
	ByTier      map[Tier]int
}

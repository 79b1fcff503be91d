// Package testutil contains small helpers shared by package tests.
package testutil

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/pkg/config"
)

// AssertNoError fails the test immediately when err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test when err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

// AssertEqual fails the test when got and want differ.
func AssertEqual(t *testing.T, got, want any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// DefaultTiers mirrors the production tier table.
func DefaultTiers() map[string]config.TierConfig {
	free := []string{"start", "register", "check", "buy", "credits", "referral", "myreferrals", "me", "disclaimer"}
	monthly := append(append([]string{}, free...), "masschk", "generate", "generateinfo", "bin")
	lifetime := append(append([]string{}, monthly...), "deepchk", "binstats", "vault", "autocharge", "binweekly", "log")

	return map[string]config.TierConfig{
		string(domain.TierFree):     {CreditsPerCheck: 5, ChecksPerDay: 5, Commands: free},
		string(domain.TierMonthly):  {CreditsPerCheck: 2, ChecksPerDay: 50, Commands: monthly},
		string(domain.TierLifetime): {CreditsPerCheck: 1, ChecksPerDay: -1, Commands: lifetime},
	}
}

// DefaultCommands mirrors the production command classes.
func DefaultCommands() config.CommandsConfig {
	return config.CommandsConfig{
		OwnerOnly:  []string{"users", "broadcast", "confirm", "reject", "ban", "unban", "addcredits"},
		CheckClass: []string{"check"},
	}
}

// DefaultLedger mirrors the production ledger constants.
func DefaultLedger() config.LedgerConfig {
	return config.LedgerConfig{
		RegistrationBonus: 50,
		ReferralBonus:     25,
		MonthDays:         30,
		Locker:            "memory",
		LockTTL:           5 * time.Second,
		LockWait:          time.Second,
	}
}

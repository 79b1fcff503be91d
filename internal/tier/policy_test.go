package tier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/testutil"
	"github.com/Proton-105/tiergate-bot/pkg/config"
)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()

	p, err := NewPolicy(testutil.DefaultTiers(), testutil.DefaultCommands())
	require.NoError(t, err)
	return p
}

func TestPolicy_CostAndLimit(t *testing.T) {
	p := newTestPolicy(t)

	tests := []struct {
		tier  domain.Tier
		cost  int64
		limit int
	}{
		{domain.TierFree, 5, 5},
		{domain.TierMonthly, 2, 50},
		{domain.TierLifetime, 1, Unlimited},
		{domain.Tier("platinum"), 5, 5},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.cost, p.CostOf(tt.tier))
			assert.Equal(t, tt.limit, p.DailyLimitOf(tt.tier))
		})
	}
}

func TestPolicy_ResolveTier(t *testing.T) {
	p := newTestPolicy(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name       string
		tier       domain.Tier
		expires    *time.Time
		want       domain.Tier
		wantLapsed bool
	}{
		{"free stays free", domain.TierFree, nil, domain.TierFree, false},
		{"lifetime ignores expiry", domain.TierLifetime, &past, domain.TierLifetime, false},
		{"active monthly", domain.TierMonthly, &future, domain.TierMonthly, false},
		{"expired monthly", domain.TierMonthly, &past, domain.TierFree, true},
		{"expiry equal to now", domain.TierMonthly, &now, domain.TierFree, true},
		{"monthly without expiry", domain.TierMonthly, nil, domain.TierFree, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &domain.Account{Tier: tt.tier, TierExpiresAt: tt.expires}

			got, lapsed := p.ResolveTier(acc, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLapsed, lapsed)
			if tt.wantLapsed {
				assert.Equal(t, domain.TierFree, acc.Tier)
				assert.Nil(t, acc.TierExpiresAt)
			}
		})
	}
}

func TestPolicy_IsCommandAllowed(t *testing.T) {
	p := newTestPolicy(t)

	tests := []struct {
		tier domain.Tier
		cmd  string
		want bool
	}{
		{domain.TierFree, "check", true},
		{domain.TierFree, "/check", true},
		{domain.TierFree, "bin", false},
		{domain.TierMonthly, "bin", true},
		{domain.TierMonthly, "log", false},
		{domain.TierLifetime, "log", true},
		{domain.TierLifetime, "broadcast", false},
		{domain.TierFree, "unknown", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier)+"/"+tt.cmd, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsCommandAllowed(tt.tier, tt.cmd))
		})
	}
}

func TestPolicy_TierSetsAreNested(t *testing.T) {
	p := newTestPolicy(t)

	for _, cmd := range p.Commands(domain.TierFree) {
		assert.True(t, p.IsCommandAllowed(domain.TierMonthly, cmd), cmd)
	}
	for _, cmd := range p.Commands(domain.TierMonthly) {
		assert.True(t, p.IsCommandAllowed(domain.TierLifetime, cmd), cmd)
	}
}

func TestPolicy_CommandClasses(t *testing.T) {
	p := newTestPolicy(t)

	assert.True(t, p.IsOwnerOnly("broadcast"))
	assert.True(t, p.IsOwnerOnly("/Users"))
	assert.False(t, p.IsOwnerOnly("check"))
	assert.True(t, p.IsCheckCommand("check"))
	assert.False(t, p.IsCheckCommand("bin"))
	assert.True(t, p.IsKnownCommand("vault"))
	assert.False(t, p.IsKnownCommand("sell"))
}

func TestNewPolicy_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		tiers map[string]config.TierConfig
	}{
		{
			name: "missing tier",
			tiers: map[string]config.TierConfig{
				"free": {CreditsPerCheck: 1, ChecksPerDay: 1},
			},
		},
		{
			name: "unknown tier",
			tiers: func() map[string]config.TierConfig {
				tiers := testutil.DefaultTiers()
				tiers["gold"] = config.TierConfig{CreditsPerCheck: 1, ChecksPerDay: 1}
				return tiers
			}(),
		},
		{
			name: "zero cost",
			tiers: func() map[string]config.TierConfig {
				tiers := testutil.DefaultTiers()
				tiers["free"] = config.TierConfig{CreditsPerCheck: 0, ChecksPerDay: 1}
				return tiers
			}(),
		},
		{
			name: "zero quota",
			tiers: func() map[string]config.TierConfig {
				tiers := testutil.DefaultTiers()
				tiers["free"] = config.TierConfig{CreditsPerCheck: 1, ChecksPerDay: 0}
				return tiers
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.tiers, testutil.DefaultCommands())
			assert.Error(t, err)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: "123:abc"
  owner_id: 42
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "polling", cfg.Bot.Mode)
	assert.Equal(t, int64(42), cfg.Bot.OwnerID)
	assert.Equal(t, int64(50), cfg.Ledger.RegistrationBonus)
	assert.Equal(t, int64(25), cfg.Ledger.ReferralBonus)
	assert.Equal(t, 30, cfg.Ledger.MonthDays)
	assert.Equal(t, 24*time.Hour, cfg.BinLookup.CacheTTL)

	require.Contains(t, cfg.Tiers, "free")
	assert.Equal(t, int64(5), cfg.Tiers["free"].CreditsPerCheck)
	assert.Equal(t, 5, cfg.Tiers["free"].ChecksPerDay)
	assert.Equal(t, -1, cfg.Tiers["lifetime"].ChecksPerDay)
	assert.Contains(t, cfg.Tiers["lifetime"].Commands, "log")
	assert.NotContains(t, cfg.Tiers["free"].Commands, "bin")
	assert.Equal(t, []string{"check"}, cfg.Commands.CheckClass)
	assert.Equal(t, "60s", cfg.RateLimit.Cooldowns["check"])
}

func TestLoadFile_OverridesTierTable(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: "123:abc"
  owner_id: 42
tiers:
  free:
    credits_per_check: 3
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, int64(3), cfg.Tiers["free"].CreditsPerCheck)
	assert.Equal(t, 5, cfg.Tiers["free"].ChecksPerDay)
}

func TestLoadFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing token",
			body: "bot:\n  owner_id: 42\n",
		},
		{
			name: "zero daily quota",
			body: "bot:\n  token: x\n  owner_id: 42\ntiers:\n  free:\n    checks_per_day: 0\n",
		},
		{
			name: "unknown mode",
			body: "bot:\n  token: x\n  owner_id: 42\n  mode: carrier-pigeon\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.DSN())
}

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
	"github.com/Proton-105/tiergate-bot/internal/ledger"
	"github.com/Proton-105/tiergate-bot/internal/repository"
	"github.com/Proton-105/tiergate-bot/internal/testutil"
	"github.com/Proton-105/tiergate-bot/internal/tier"
)

type testEnv struct {
	env      *env
	bans     *repository.MemoryBanList
	migrated int
	closed   int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy, err := tier.NewPolicy(testutil.DefaultTiers(), testutil.DefaultCommands())
	require.NoError(t, err)

	te := &testEnv{bans: repository.NewMemoryBanList()}
	te.env = &env{
		accounts: ledger.NewService(repository.NewMemoryAccountStore(), ledger.NewMemoryLocker(), ledger.New(policy, testutil.DefaultLedger()), log),
		bans:     te.bans,
		migrate: func(context.Context) ([]string, error) {
			te.migrated++
			return []string{"0001_accounts.up.sql"}, nil
		},
		close: func() { te.closed++ },
	}
	return te
}

func (te *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd(func(context.Context, string) (*env, error) { return te.env, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (te *testEnv) register(t *testing.T, id int64) {
	t.Helper()
	ctx := context.Background()
	_, _, err := te.env.accounts.GetOrCreate(ctx, domain.Profile{TelegramID: id, FirstName: "Ada"})
	require.NoError(t, err)
	_, err = te.env.accounts.Register(ctx, id)
	require.NoError(t, err)
}

func TestMigrate(t *testing.T) {
	te := newTestEnv(t)

	out, err := te.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 1 migration(s)")
	assert.Contains(t, out, "0001_accounts.up.sql")
	assert.Equal(t, 1, te.closed)
}

func TestMigrate_RetriesDatabaseErrors(t *testing.T) {
	te := newTestEnv(t)
	calls := 0
	te.env.migrate = func(context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset")
		}
		return nil, nil
	}

	out, err := te.run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, out, "applied 0 migration(s)")
}

func TestAccountShow(t *testing.T) {
	te := newTestEnv(t)
	te.register(t, 42)

	out, err := te.run(t, "account", "show", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "free")
	assert.Contains(t, out, "50")

	_, err = te.run(t, "account", "show", "7")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountUpgradeAndCredit(t *testing.T) {
	te := newTestEnv(t)
	te.register(t, 42)

	out, err := te.run(t, "account", "upgrade", "42", "lifetime")
	require.NoError(t, err)
	assert.Contains(t, out, "lifetime")

	out, err = te.run(t, "account", "credit", "42", "25", "--reason", "support refund")
	require.NoError(t, err)
	assert.Contains(t, out, "credits: 75")

	out, err = te.run(t, "account", "history", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "support refund")
	assert.Contains(t, out, "+25")
}

func TestValidationErrors(t *testing.T) {
	te := newTestEnv(t)

	tests := [][]string{
		{"account", "show", "abc"},
		{"account", "upgrade", "42", "platinum"},
		{"account", "upgrade", "42", "monthly", "--months", "0"},
		{"account", "credit", "42", "zero"},
		{"ban", "0"},
	}

	for _, args := range tests {
		_, err := te.run(t, args...)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr, "args %v", args)
		assert.Equal(t, "E100", appErr.Code)
	}
	assert.Zero(t, te.closed)
}

func TestBanAndUnban(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	out, err := te.run(t, "ban", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "banned 42")

	banned, err := te.bans.IsBanned(ctx, 42)
	require.NoError(t, err)
	assert.True(t, banned)

	_, err = te.run(t, "unban", "42")
	require.NoError(t, err)

	banned, err = te.bans.IsBanned(ctx, 42)
	require.NoError(t, err)
	assert.False(t, banned)
}

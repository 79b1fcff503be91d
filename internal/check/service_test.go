package check

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tiergate-bot/internal/bincache"
	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/ledger"
	"github.com/Proton-105/tiergate-bot/internal/repository"
	"github.com/Proton-105/tiergate-bot/internal/testutil"
	"github.com/Proton-105/tiergate-bot/internal/tier"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	accounts *ledger.Service
	logs     *repository.MemoryCheckLogStore
	fetches  int
	fail     bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewClock(testNow)

	policy, err := tier.NewPolicy(testutil.DefaultTiers(), testutil.DefaultCommands())
	require.NoError(t, err)

	f := &fixture{logs: repository.NewMemoryCheckLogStore()}
	f.accounts = ledger.NewService(
		repository.NewMemoryAccountStore(),
		ledger.NewMemoryLocker(),
		ledger.New(policy, testutil.DefaultLedger()),
		log,
		ledger.WithClock(clock.Now),
	)

	cache := bincache.New(bincache.NewMemoryStore(), bincache.FetcherFunc(func(ctx context.Context, bin string) (map[string]string, error) {
		f.fetches++
		if f.fail {
			return nil, errors.New("upstream unavailable")
		}
		return map[string]string{domain.BinScheme: "VISA", domain.BinBankName: "TEST BANK"}, nil
	}), log, bincache.WithClock(clock.Now))

	f.svc = NewService(f.accounts, cache, f.logs, log)
	return f
}

func (f *fixture) register(t *testing.T, id int64) {
	t.Helper()

	ctx := context.Background()
	_, _, err := f.accounts.GetOrCreate(ctx, domain.Profile{TelegramID: id})
	require.NoError(t, err)
	_, err = f.accounts.Register(ctx, id)
	require.NoError(t, err)
}

func TestService_RunCharges(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)

	res, err := f.svc.Run(context.Background(), 1, "4111 1111 1111 1111|01|30|000")
	require.NoError(t, err)
	require.NoError(t, res.LookupErr)
	assert.Equal(t, "411111", res.BIN)
	assert.Equal(t, "411111******1111", res.MaskedCard)
	assert.Equal(t, int64(5), res.Cost)
	assert.Equal(t, int64(45), res.Account.Credits)
	assert.Equal(t, 1, res.Account.ChecksToday)
	require.NotNil(t, res.Bin)
	assert.Equal(t, "VISA", res.Bin.Metadata[domain.BinScheme])

	logs, err := f.svc.History(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.CheckResultOK, logs[0].Result)
	assert.Equal(t, "411111******1111", logs[0].MaskedCard)
}

func TestService_RunKeepsChargeWhenLookupFails(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.fail = true

	res, err := f.svc.Run(context.Background(), 1, "4111111111111111")
	require.NoError(t, err)
	assert.ErrorIs(t, res.LookupErr, domain.ErrLookupFailed)
	assert.Nil(t, res.Bin)
	assert.Equal(t, int64(45), res.Account.Credits)

	acc, err := f.accounts.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(45), acc.Credits)
	assert.Equal(t, int64(1), acc.TotalChecks)

	logs, err := f.svc.History(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.CheckResultLookupFailed, logs[0].Result)
}

func TestService_RunRejectsInvalidCardWithoutCharge(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)

	_, err := f.svc.Run(context.Background(), 1, "4111111111111112")
	assert.ErrorIs(t, err, domain.ErrInvalidCard)
	assert.Zero(t, f.fetches)

	acc, err := f.accounts.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), acc.Credits)
}

func TestService_RunPropagatesLedgerErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.accounts.GetOrCreate(ctx, domain.Profile{TelegramID: 2})
	require.NoError(t, err)

	_, err = f.svc.Run(ctx, 2, "4111111111111111")
	assert.ErrorIs(t, err, domain.ErrNotRegistered)
	assert.Zero(t, f.fetches)

	f.register(t, 3)
	for i := 0; i < 5; i++ {
		_, err = f.svc.Run(ctx, 3, "4111111111111111")
		require.NoError(t, err)
	}
	_, err = f.svc.Run(ctx, 3, "4111111111111111")
	assert.ErrorIs(t, err, domain.ErrDailyLimitReached)
}

func TestService_BinInfoDoesNotCharge(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)

	entry, err := f.svc.BinInfo(context.Background(), "4111 11")
	require.NoError(t, err)
	assert.Equal(t, "411111", entry.BIN)

	_, err = f.svc.BinInfo(context.Background(), "41a111")
	assert.ErrorIs(t, err, domain.ErrInvalidBIN)

	acc, err := f.accounts.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), acc.Credits)
}

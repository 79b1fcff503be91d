package bincache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/internal/testutil"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type countingFetcher struct {
	calls int32
	err   error
	delay time.Duration
}

func (f *countingFetcher) Fetch(ctx context.Context, bin string) (map[string]string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return map[string]string{domain.BinBrand: "VISA", domain.BinBankName: "Bank of " + bin}, nil
}

func (f *countingFetcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

func newTestCache(fetcher Fetcher, clock *testutil.Clock, opts ...Option) (*Cache, *MemoryStore) {
	store := NewMemoryStore()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(store, fetcher, testLogger(), opts...), store
}

func TestCache_ExpiryWindow(t *testing.T) {
	clock := testutil.NewClock(t0)
	fetcher := &countingFetcher{}
	cache, _ := newTestCache(fetcher, clock)
	ctx := context.Background()

	entry, err := cache.Lookup(ctx, "453212")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.Calls())
	assert.Equal(t, t0, entry.CreatedAt)
	assert.Equal(t, t0.Add(24*time.Hour), entry.ExpiresAt)

	clock.Set(t0.Add(23*time.Hour + 59*time.Minute))
	cached, err := cache.Lookup(ctx, "453212")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.Calls())
	assert.Equal(t, "Bank of 453212", cached.Metadata[domain.BinBankName])

	clock.Set(t0.Add(24*time.Hour + time.Minute))
	refreshed, err := cache.Lookup(ctx, "453212")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.Calls())
	assert.Equal(t, t0.Add(48*time.Hour+time.Minute), refreshed.ExpiresAt)
}

func TestCache_ExactExpiryIsStillFresh(t *testing.T) {
	clock := testutil.NewClock(t0)
	fetcher := &countingFetcher{}
	cache, _ := newTestCache(fetcher, clock)

	_, err := cache.Lookup(context.Background(), "411111")
	require.NoError(t, err)

	clock.Set(t0.Add(24 * time.Hour))
	_, err = cache.Lookup(context.Background(), "411111")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestCache_StaleEntryOverwrittenInPlace(t *testing.T) {
	clock := testutil.NewClock(t0)
	fetcher := &countingFetcher{}
	cache, store := newTestCache(fetcher, clock)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.BinEntry{
		BIN:       "453212",
		Metadata:  map[string]string{domain.BinBrand: "OLD"},
		CreatedAt: t0.Add(-48 * time.Hour),
		ExpiresAt: t0.Add(-24 * time.Hour),
	}))

	entry, err := cache.Lookup(ctx, "453212")
	require.NoError(t, err)
	assert.Equal(t, "VISA", entry.Metadata[domain.BinBrand])
	assert.Equal(t, 1, store.Len())

	stored, err := store.Get(ctx, "453212")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(24*time.Hour), stored.ExpiresAt)
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	clock := testutil.NewClock(t0)
	fetcher := &countingFetcher{err: errors.New("connection refused")}
	cache, store := newTestCache(fetcher, clock)
	ctx := context.Background()

	_, err := cache.Lookup(ctx, "453212")
	assert.ErrorIs(t, err, domain.ErrLookupFailed)
	assert.Equal(t, 0, store.Len())

	fetcher.err = nil
	_, err = cache.Lookup(ctx, "453212")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.Calls())
}

func TestCache_TimeoutIsLookupFailed(t *testing.T) {
	clock := testutil.NewClock(t0)
	fetcher := &countingFetcher{delay: time.Second}
	cache, _ := newTestCache(fetcher, clock, WithTimeout(20*time.Millisecond))

	_, err := cache.Lookup(context.Background(), "453212")
	assert.ErrorIs(t, err, domain.ErrLookupFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCache_ConcurrentMissesShareOneFetch(t *testing.T) {
	clock := testutil.NewClock(t0)
	fetcher := &countingFetcher{delay: 50 * time.Millisecond}
	cache, _ := newTestCache(fetcher, clock)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Lookup(context.Background(), "453212")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fetcher.Calls())
}

func TestCache_RejectsMalformedKeys(t *testing.T) {
	clock := testutil.NewClock(t0)
	fetcher := &countingFetcher{}
	cache, _ := newTestCache(fetcher, clock)

	for _, bin := range []string{"", "45321", "4532123", "45321a"} {
		_, err := cache.Lookup(context.Background(), bin)
		assert.ErrorIs(t, err, domain.ErrInvalidBIN, bin)
	}
	assert.Equal(t, 0, fetcher.Calls())
}

func TestCache_Purge(t *testing.T) {
	clock := testutil.NewClock(t0)
	cache, store := newTestCache(&countingFetcher{}, clock)
	ctx := context.Background()

	_, err := cache.Lookup(ctx, "111111")
	require.NoError(t, err)
	clock.Advance(48 * time.Hour)
	_, err = cache.Lookup(ctx, "222222")
	require.NoError(t, err)

	removed, err := cache.Purge(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestNormalizeBIN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"4532123456789012", "453212", false},
		{"4532 1234 5678 9012", "453212", false},
		{"4532-12", "453212", false},
		{"453212", "453212", false},
		{"45321", "", true},
		{"4532x23456789012", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeBIN(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidBIN)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

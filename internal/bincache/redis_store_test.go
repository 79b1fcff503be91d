package bincache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, testLogger(), time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "453212")
	assert.ErrorIs(t, err, domain.ErrBinNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	entry := &domain.BinEntry{
		BIN:       "453212",
		Metadata:  map[string]string{domain.BinBrand: "VISA"},
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, store.Put(ctx, entry))
	assert.True(t, mr.Exists("bincache:453212"))
	assert.Greater(t, mr.TTL("bincache:453212"), 24*time.Hour)

	got, err := store.Get(ctx, "453212")
	require.NoError(t, err)
	assert.Equal(t, "VISA", got.Metadata[domain.BinBrand])
	assert.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))
}

func TestRedisStore_Purge(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger(), time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Put(ctx, &domain.BinEntry{BIN: "111111", CreatedAt: now.Add(-25 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.Put(ctx, &domain.BinEntry{BIN: "222222", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}))

	removed, err := store.Purge(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, "111111")
	assert.ErrorIs(t, err, domain.ErrBinNotFound)
	_, err = store.Get(ctx, "222222")
	assert.NoError(t, err)
}

func TestCache_WithRedisStore(t *testing.T) {
	client, _ := setupTestRedis(t)
	fetcher := &countingFetcher{}
	cache := New(NewRedisStore(client, testLogger(), time.Hour), fetcher, testLogger())
	ctx := context.Background()

	_, err := cache.Lookup(ctx, "453212")
	require.NoError(t, err)
	_, err = cache.Lookup(ctx, "453212")
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.Calls())
}

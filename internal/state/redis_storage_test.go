package state

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStorage(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStorage(client, testLogger(), ttl), mr
}

func TestRedisStorage_RoundTrip(t *testing.T) {
	storage, mr := newRedisStorage(t, time.Hour)
	ctx := context.Background()

	in := &UserState{
		UserID:       123,
		CurrentState: StateAwaitingPaymentProof,
		Context:      map[string]any{ContextPaymentID: "pay-1", ContextTier: "monthly"},
	}
	require.NoError(t, storage.SetState(ctx, 123, in))
	assert.True(t, mr.Exists("fsm:state:123"))

	out, err := storage.GetState(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, in.CurrentState, out.CurrentState)
	assert.Equal(t, in.Context, out.Context)
	assert.Equal(t, "monthly", out.String(ContextTier))
}

func TestRedisStorage_MissingAndCleared(t *testing.T) {
	storage, _ := newRedisStorage(t, time.Hour)
	ctx := context.Background()

	_, err := storage.GetState(ctx, 999)
	assert.ErrorIs(t, err, ErrStateNotFound)

	require.NoError(t, storage.SetState(ctx, 456, &UserState{UserID: 456, CurrentState: StateAwaitingPaymentProof}))
	require.NoError(t, storage.ClearState(ctx, 456))
	require.NoError(t, storage.ClearState(ctx, 456))

	_, err = storage.GetState(ctx, 456)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_KeyExpires(t *testing.T) {
	storage, mr := newRedisStorage(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, storage.SetState(ctx, 1, &UserState{UserID: 1, CurrentState: StateAwaitingPaymentProof}))
	assert.Equal(t, time.Minute, mr.TTL("fsm:state:1"))

	mr.FastForward(2 * time.Minute)

	_, err := storage.GetState(ctx, 1)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_DefaultTTL(t *testing.T) {
	storage, mr := newRedisStorage(t, 0)

	require.NoError(t, storage.SetState(context.Background(), 2, &UserState{UserID: 2, CurrentState: StateError}))
	assert.Equal(t, DefaultStateTTL, mr.TTL("fsm:state:2"))
}

func TestRedisStorage_DropsUndecodableState(t *testing.T) {
	storage, mr := newRedisStorage(t, time.Hour)
	require.NoError(t, mr.Set("fsm:state:7", "{not json"))

	st, err := storage.GetState(context.Background(), 7)
	assert.Nil(t, st)
	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.False(t, mr.Exists("fsm:state:7"))
}

func TestRedisStorage_ReportsRedisErrors(t *testing.T) {
	storage, mr := newRedisStorage(t, time.Hour)
	mr.SetError("LOADING")

	_, err := storage.GetState(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStateNotFound)
}

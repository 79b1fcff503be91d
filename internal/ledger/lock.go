package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const accountLockKeyPattern = "account:lock:%d"

// ErrLockTimeout indicates the identity stayed locked for longer than the wait budget.
var ErrLockTimeout = errors.New("account is locked, try again later")

// Locker serializes mutations of a single identity.
type Locker interface {
	Lock(ctx context.Context, identity int64) (unlock func(), err error)
}

// MemoryLocker serializes identities within one process.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[int64]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker returns an in-process Locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[int64]*lockSlot)}
}

// Lock blocks until identity is free or ctx is done.
func (l *MemoryLocker) Lock(ctx context.Context, identity int64) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[identity]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[identity] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(identity, slot, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(identity, slot, true) })
	}, nil
}

func (l *MemoryLocker) release(identity int64, slot *lockSlot, held bool) {
	if held {
		<-slot.ch
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, identity)
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes identities across processes with a token lock.
type RedisLocker struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed holder can
// block an identity; wait bounds how long Lock retries.
func NewRedisLocker(client *redis.Client, log *slog.Logger, ttl, wait time.Duration) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}

	return &RedisLocker{
		client: client,
		log:    log,
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
	}
}

// Lock acquires the identity lock, retrying until the wait budget is spent.
func (l *RedisLocker) Lock(ctx context.Context, identity int64) (func(), error) {
	key := fmt.Sprintf(accountLockKeyPattern, identity)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire account lock: %w", err)
		}
		if acquired {
			break
		}

		if time.Now().After(deadline) {
			l.log.Warn("account lock wait exceeded", slog.Int64("user_id", identity))
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()

			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				l.log.Error("failed to release account lock", slog.Int64("user_id", identity), slog.Any("error", err))
			}
		})
	}, nil
}

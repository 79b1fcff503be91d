package bincache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

const (
	binKeyPrefix = "bincache:"
	scanCount    = 100
)

// RedisStore keeps entries as JSON strings. Keys outlive their freshness window
// by retention so stale entries can still be read, then expire on their own.
type RedisStore struct {
	client    *redis.Client
	log       *slog.Logger
	retention time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore.
func NewRedisStore(client *redis.Client, log *slog.Logger, retention time.Duration) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	if retention <= 0 {
		retention = DefaultTTL
	}

	return &RedisStore{client: client, log: log, retention: retention}
}

func (s *RedisStore) Get(ctx context.Context, bin string) (*domain.BinEntry, error) {
	data, err := s.client.Get(ctx, binKeyPrefix+bin).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrBinNotFound
		}
		return nil, fmt.Errorf("get bin entry: %w", err)
	}

	var entry domain.BinEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode bin entry: %w", err)
	}

	return &entry, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *domain.BinEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode bin entry: %w", err)
	}

	ttl := time.Until(entry.ExpiresAt) + s.retention
	if ttl <= 0 {
		ttl = s.retention
	}

	if err := s.client.Set(ctx, binKeyPrefix+entry.BIN, data, ttl).Err(); err != nil {
		return fmt.Errorf("set bin entry: %w", err)
	}

	return nil
}

func (s *RedisStore) Purge(ctx context.Context, before time.Time) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, binKeyPrefix+"*", scanCount).Result()
		if err != nil {
			return removed, fmt.Errorf("scan bin entries: %w", err)
		}

		for _, key := range keys {
			entry, err := s.Get(ctx, key[len(binKeyPrefix):])
			if err != nil {
				if !errors.Is(err, domain.ErrBinNotFound) {
					s.log.Warn("skipping unreadable bin entry", slog.String("key", key), slog.Any("error", err))
				}
				continue
			}
			if !entry.ExpiresAt.Before(before) {
				continue
			}
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("delete bin entry: %w", err)
			}
			removed++
		}

		if next == 0 {
			break
		}
		cursor = next
	}

	return removed, nil
}

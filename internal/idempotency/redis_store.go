package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Store records which keys are being or have been handled.
type Store interface {
	// Claim marks key as processing unless any record for it exists.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Status returns "" for unknown keys.
	Status(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key string, ttl time.Duration) error
}

type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, recordKey(key), StatusProcessing, ttl).Result()
	if err != nil {
		s.log.Error("failed to claim idempotency key", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

func (s *RedisStore) Status(ctx context.Context, key string) (string, error) {
	status, err := s.client.Get(ctx, recordKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return "", err
	}

	return status, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, recordKey(key), StatusCompleted, ttl).Err(); err != nil {
		s.log.Error("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func recordKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

type memoryRecord struct {
	status    string
	expiresAt time.Time
}

// MemoryStore is a single-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord), now: time.Now}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.records[key]; ok && now.Before(rec.expiresAt) {
		return false, nil
	}

	s.records[key] = memoryRecord{status: StatusProcessing, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Status(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || !s.now().Before(rec.expiresAt) {
		delete(s.records, key)
		return "", nil
	}
	return rec.status, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, rec := range s.records {
		if !now.Before(rec.expiresAt) {
			delete(s.records, k)
		}
	}
	s.records[key] = memoryRecord{status: StatusCompleted, expiresAt: now.Add(ttl)}
	return nil
}

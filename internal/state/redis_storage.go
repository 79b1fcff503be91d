package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStateTTL bounds how long an unanswered prompt stays active.
const DefaultStateTTL = time.Hour

// RedisStorage keeps one JSON document per user under fsm:state:<id>. Keys
// carry the TTL so abandoned prompts expire without sweeping.
type RedisStorage struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisStorage returns a Storage backed by client. A non-positive ttl
// falls back to DefaultStateTTL.
func NewRedisStorage(client *redis.Client, log *slog.Logger, ttl time.Duration) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	return &RedisStorage{client: client, log: log, ttl: ttl}
}

// GetState loads the user's state. Missing keys and undecodable documents
// both read as ErrStateNotFound; the latter are deleted.
func (s *RedisStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	key := stateKey(userID)

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrStateNotFound
	case err != nil:
		s.log.ErrorContext(ctx, "state read failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("get state %d: %w", userID, err)
	}

	var st UserState
	if err := json.Unmarshal(raw, &st); err != nil {
		s.log.WarnContext(ctx, "dropping undecodable state", slog.Int64("user_id", userID), slog.Any("error", err))
		if delErr := s.client.Del(ctx, key).Err(); delErr != nil {
			return nil, fmt.Errorf("drop state %d: %w", userID, delErr)
		}
		return nil, ErrStateNotFound
	}

	return &st, nil
}

// SetState overwrites the user's state and restarts its TTL.
func (s *RedisStorage) SetState(ctx context.Context, userID int64, st *UserState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state %d: %w", userID, err)
	}

	if err := s.client.Set(ctx, stateKey(userID), raw, s.ttl).Err(); err != nil {
		s.log.ErrorContext(ctx, "state write failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("set state %d: %w", userID, err)
	}
	return nil
}

// ClearState deletes the user's state. Clearing an absent state is not an error.
func (s *RedisStorage) ClearState(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, stateKey(userID)).Err(); err != nil {
		s.log.ErrorContext(ctx, "state delete failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("clear state %d: %w", userID, err)
	}
	return nil
}

func stateKey(userID int64) string {
	return fmt.Sprintf("fsm:state:%d", userID)
}

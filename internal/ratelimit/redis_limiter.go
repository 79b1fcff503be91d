package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// takeScript trims the window, admits the request when it fits and otherwise
// reports how long until the oldest entry expires. Scores are unix millis.
var takeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
if count < limit then
  redis.call('ZADD', KEYS[1], now, ARGV[4])
  redis.call('PEXPIRE', KEYS[1], window)
  return {1, count + 1, 0}
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {0, count, tonumber(oldest[2])}
`)

// RedisLimiter keeps one sorted set per key so every bot replica shares the
// same budgets.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, log: log, now: time.Now}
}

// Take admits one request for key under rule.
func (l *RedisLimiter) Take(ctx context.Context, key string, rule Rule) (Usage, error) {
	if l.client == nil {
		return Usage{}, errors.New("ratelimit: redis client is not configured")
	}

	now := l.now()
	windowMs := rule.Window.Milliseconds()

	raw, err := takeScript.Run(ctx, l.client, []string{redisKeyPrefix + key},
		now.UnixMilli(), windowMs, rule.Limit, uuid.NewString()).Int64Slice()
	if err != nil {
		l.log.Error("rate limit script failed", slog.String("key", key), slog.Any("error", err))
		return Usage{}, fmt.Errorf("ratelimit: take %s: %w", key, err)
	}
	if len(raw) != 3 {
		return Usage{}, fmt.Errorf("ratelimit: take %s: unexpected reply %v", key, raw)
	}

	count := int(raw[1])
	if raw[0] == 1 {
		return Usage{Allowed: true, Remaining: max(rule.Limit-count, 0)}, nil
	}

	return Usage{RetryAfter: retryAfter(time.UnixMilli(raw[2]), rule.Window, now)}, nil
}

// Package redis provides the shared go-redis client for the application.
package redis

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/tiergate-bot/pkg/config"
)

// Client is the instrumented pool shared by the ledger locks, the rate
// limiter, FSM storage, the ban list and the idempotency store.
type Client struct {
	*redis.Client
}

// New dials Redis and fails unless PING succeeds.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(Options(cfg))
	rdb.AddHook(metricsHook{})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{Client: rdb}, nil
}

// Options maps cfg onto go-redis options.
func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.IdleTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	}
}

// QueueOpt returns the connection settings for the asynq client, worker and
// scheduler. asynq opens its own pools against the same server.
func QueueOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
}

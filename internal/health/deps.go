package health

import (
	"context"
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	telebot "gopkg.in/telebot.v3"
)

var errNotConfigured = errors.New("not configured")

// Postgres pings the database pool.
func Postgres(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		if db == nil {
			return errNotConfigured
		}
		return db.PingContext(ctx)
	}
}

// Pinger is the part of a Redis client the check uses.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis sends PING.
func Redis(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if p == nil {
			return errNotConfigured
		}
		return p.Ping(ctx).Err()
	}
}

// Telegram passes once the bot has resolved its own identity with getMe,
// which telebot does on construction. It makes no API call per probe.
func Telegram(bot *telebot.Bot) CheckFunc {
	return func(context.Context) error {
		if bot == nil || bot.Me == nil {
			return errors.New("telegram bot is not initialized")
		}
		return nil
	}
}

// BreakerStater exposes a circuit breaker's state.
type BreakerStater interface {
	State() gobreaker.State
}

// Breaker fails while the upstream circuit is open. Half-open counts as
// healthy so the probe does not flap during recovery.
func Breaker(b BreakerStater) CheckFunc {
	return func(context.Context) error {
		if b == nil {
			return errNotConfigured
		}
		if b.State() == gobreaker.StateOpen {
			return gobreaker.ErrOpenState
		}
		return nil
	}
}

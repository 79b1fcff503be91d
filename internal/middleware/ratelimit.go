package middleware

import (
	"log/slog"
	"math"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/ratelimit"
)

// RateLimit enforces the per-tier request budget and per-command cooldowns.
// It runs after the gate so the caller's tier is known. Budget overruns are
// returned as errors and answered by the error handling middleware.
func RateLimit(guard *ratelimit.Guard, t i18n.Translator, log *slog.Logger) handlers.Middleware {
	if guard == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}

			tier, owner := "free", false
			if d, ok := handlers.DecisionFrom(c); ok {
				tier, owner = string(d.Tier), d.Owner
			}

			command := handlers.Command(c)
			verdict := guard.Allow(handlers.Ctx(c), sender.ID, tier, owner, command)
			if verdict.Allowed {
				return next(c)
			}

			seconds := int(math.Ceil(verdict.RetryAfter.Seconds()))
			log.Warn("rate limit exceeded",
				slog.Int64("user_id", sender.ID),
				slog.String("command", command),
				slog.Bool("cooldown", verdict.Cooldown),
			)

			if verdict.Cooldown {
				return c.Send(t.Tf("ratelimit.cooldown", i18n.Params{"seconds": seconds, "command": command}), telebot.ModeHTML)
			}
			return apperrors.NewRateLimitError(verdict.RetryAfter)
		}
	}
}

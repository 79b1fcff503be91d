package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/handlers"
	"github.com/Proton-105/tiergate-bot/internal/domain"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
	"github.com/Proton-105/tiergate-bot/internal/gate"
	"github.com/Proton-105/tiergate-bot/internal/i18n"
	"github.com/Proton-105/tiergate-bot/internal/tier"
	"github.com/Proton-105/tiergate-bot/pkg/logger"
)

// Profiler creates the account record on first contact.
type Profiler interface {
	GetOrCreate(ctx context.Context, p domain.Profile) (*domain.Account, bool, error)
}

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler, t i18n.Translator) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

				key := apperrors.KeyInternal
				if errHandler != nil {
					reply := errHandler.Handle(handlers.Ctx(c), &apperrors.AppError{
						Code:     "E999",
						Message:  fmt.Sprintf("panic recovered: %v", r),
						Key:      apperrors.KeyInternal,
						Severity: apperrors.SeverityCritical,
					})
					key = reply.Key
				}

				if sendErr := c.Send(t.T(key), telebot.ModeHTML); sendErr != nil {
					log.Error("failed to notify user about panic", slog.Any("error", sendErr))
				}
				err = nil
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware turns handler errors into a translated reply.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler, t i18n.Translator, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			reply := errHandler.Handle(handlers.Ctx(c), err)
			if reply.Key == "" {
				return nil
			}

			if sendErr := c.Send(t.Tf(reply.Key, i18n.Params(reply.Params)), telebot.ModeHTML); sendErr != nil {
				log.Error("failed to send error reply", slog.Any("error", sendErr))
			}
			return nil
		}
	}
}

// LoggingMiddleware attaches a correlation id to the update context and logs
// the outcome.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			start := time.Now()

			correlationID := strconv.Itoa(c.Update().ID)
			ctx := logger.WithCorrelationID(handlers.Ctx(c), correlationID)
			handlers.WithContext(c, ctx)

			userID := int64(0)
			if sender := c.Sender(); sender != nil {
				userID = sender.ID
			}

			err := next(c)

			attrs := []any{
				slog.String("correlation_id", correlationID),
				slog.Int64("user_id", userID),
				slog.String("command", handlers.Command(c)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				log.Warn("update failed", append(attrs, slog.Any("error", err))...)
			} else {
				log.Info("update handled", attrs...)
			}

			return err
		}
	}
}

// AccountMiddleware makes sure the sender has an account record and keeps
// its chat profile fresh.
func AccountMiddleware(profiler Profiler, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			sender := c.Sender()
			if sender == nil || profiler == nil {
				return next(c)
			}

			_, created, err := profiler.GetOrCreate(handlers.Ctx(c), domain.Profile{
				TelegramID: sender.ID,
				Username:   sender.Username,
				FirstName:  sender.FirstName,
				LastName:   sender.LastName,
			})
			if err != nil {
				return err
			}
			if created {
				log.Info("account created", slog.Int64("user_id", sender.ID))
			}

			return next(c)
		}
	}
}

// GateMiddleware evaluates the routed command and answers denials. /start is
// let through for unregistered users so it can explain how to register.
func GateMiddleware(g *gate.Gate, policy *tier.Policy, t i18n.Translator) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			command := handlers.Command(c)
			sender := c.Sender()
			if command == "" || sender == nil {
				return next(c)
			}

			decision, err := g.Evaluate(handlers.Ctx(c), sender.ID, command)
			if err != nil {
				return err
			}
			handlers.SetDecision(c, decision)

			if decision.Allowed {
				return next(c)
			}
			if command == CommandStart && decision.Reason == gate.ReasonNotRegistered {
				return next(c)
			}

			msg := t.Tf(decision.Reason.MessageKey(), i18n.Params{
				"limit": policy.DailyLimitOf(decision.Tier),
				"tier":  t.T("tiers." + string(decision.Tier)),
			})
			return c.Send(msg, telebot.ModeHTML)
		}
	}
}

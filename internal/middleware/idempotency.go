// Package middleware holds transport middlewares shared by the bot and the ops server.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/bot/handlers"
	"github.com/Proton-105/tiergate-bot/internal/idempotency"
)

// Idempotency drops redelivered updates so a retried webhook or a restarted
// poller never charges twice. The update is handled anyway when the key
// store is unreachable.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			key := updateKey(c)
			if key == "" {
				return next(c)
			}

			ran := false
			err := manager.Execute(handlers.Ctx(c), key, func(context.Context) error {
				ran = true
				return next(c)
			})

			switch {
			case err == nil:
				return nil
			case errors.Is(err, idempotency.ErrDuplicate), errors.Is(err, idempotency.ErrRequestInProgress):
				log.Debug("skipping redelivered update", slog.String("key", key))
				return nil
			case !ran:
				log.Warn("idempotency store unavailable", slog.String("key", key), slog.Any("error", err))
				return next(c)
			default:
				return err
			}
		}
	}
}

// updateKey identifies a delivery. Telegram update IDs are unique per bot,
// so they win; the callback and message IDs cover updates built without one.
func updateKey(c telebot.Context) string {
	if id := c.Update().ID; id != 0 {
		return "upd:" + strconv.Itoa(id)
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return "cb:" + cb.ID
	}

	msg := c.Message()
	if msg == nil || msg.ID == 0 {
		return ""
	}

	var chatID int64
	if msg.Chat != nil {
		chatID = msg.Chat.ID
	}
	return fmt.Sprintf("msg:%d:%d", chatID, msg.ID)
}

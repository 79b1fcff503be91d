// Package notify delivers out-of-band messages to users and the owner.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/jobs"
)

// Notifier sends a message to a chat that did not necessarily trigger the
// current update.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) error
}

// API is the subset of telebot.API used for delivery.
type API interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramNotifier sends messages synchronously through the bot API.
type TelegramNotifier struct {
	api API
	log *slog.Logger
}

// NewTelegramNotifier creates a TelegramNotifier.
func NewTelegramNotifier(api API, log *slog.Logger) *TelegramNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &TelegramNotifier{api: api, log: log}
}

func (n *TelegramNotifier) Send(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := []interface{}{telebot.ModeHTML}
	if markup != nil {
		opts = append(opts, markup)
	}

	if _, err := n.api.Send(&telebot.Chat{ID: chatID}, text, opts...); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}

	n.log.DebugContext(ctx, "notification sent", slog.Int64("chat_id", chatID))
	return nil
}

// QueueNotifier hands deliveries to the background worker.
type QueueNotifier struct {
	jobs jobs.Manager
	log  *slog.Logger
}

// NewQueueNotifier creates a QueueNotifier.
func NewQueueNotifier(manager jobs.Manager, log *slog.Logger) *QueueNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &QueueNotifier{jobs: manager, log: log}
}

func (n *QueueNotifier) Send(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) error {
	task, err := jobs.NewNotifyTask(jobs.NotifyPayload{ChatID: chatID, Text: text, Markup: markup})
	if err != nil {
		return err
	}

	info, err := n.jobs.Enqueue(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue notification for %d: %w", chatID, err)
	}

	n.log.DebugContext(ctx, "notification queued", slog.Int64("chat_id", chatID), slog.String("task_id", info.ID))
	return nil
}

package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/tiergate-bot/internal/jobs"
)

// Sender delivers a message to a chat right away.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) error
}

type NotifyDeliverHandler struct {
	sender Sender
	log    *slog.Logger
}

func NewNotifyDeliverHandler(sender Sender, log *slog.Logger) *NotifyDeliverHandler {
	if log == nil {
		log = slog.Default()
	}
	return &NotifyDeliverHandler{sender: sender, log: log}
}

func (h *NotifyDeliverHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.ParseNotifyPayload(t)
	if err != nil {
		h.log.ErrorContext(ctx, "notify: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return err
	}

	if err := h.sender.Send(ctx, payload.ChatID, payload.Text, payload.Markup); err != nil {
		h.log.WarnContext(ctx, "notify: delivery failed", slog.Int64("chat_id", payload.ChatID), slog.Any("error", err))
		return err
	}

	return nil
}

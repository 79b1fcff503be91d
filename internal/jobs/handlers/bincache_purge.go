// Package handlers processes asynq tasks.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Purger drops cache entries that expired before a cutoff.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int, error)
}

type BinCachePurgeHandler struct {
	purger Purger
	now    func() time.Time
	log    *slog.Logger
}

func NewBinCachePurgeHandler(purger Purger, log *slog.Logger) *BinCachePurgeHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BinCachePurgeHandler{purger: purger, now: time.Now, log: log}
}

func (h *BinCachePurgeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	removed, err := h.purger.Purge(ctx, h.now())
	if err != nil {
		h.log.ErrorContext(ctx, "bin cache purge failed", slog.String("task_type", t.Type()), slog.Any("error", err))
		return err
	}

	h.log.InfoContext(ctx, "bin cache purged", slog.Int("removed", removed))
	return nil
}

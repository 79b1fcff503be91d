package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager enqueues background work. Notification delivery and the BIN cache
// purge are the only producers.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type asynqManager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager on top of an asynq client sharing the bot's Redis.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &asynqManager{
		client: asynq.NewClient(redisOpt),
		log:    log.With(slog.String("component", "jobs")),
	}
}

func (m *asynqManager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		m.log.ErrorContext(ctx, "enqueue failed", slog.String("task_type", task.Type()), slog.Any("error", err))
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	m.log.DebugContext(ctx, "task enqueued",
		slog.String("task_type", info.Type),
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue),
	)
	return info, nil
}

func (m *asynqManager) Close() error {
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("close jobs client: %w", err)
	}
	return nil
}

package jobs

import (
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// DefaultPurgeSchedule runs the BIN cache purge hourly.
const DefaultPurgeSchedule = "@every 1h"

// Scheduler enqueues the periodic maintenance tasks.
type Scheduler struct {
	inner     *asynq.Scheduler
	purgeSpec string
	log       *slog.Logger
}

// NewScheduler creates a Scheduler. An empty purgeSpec means
// DefaultPurgeSchedule; any cron expression asynq accepts is allowed.
func NewScheduler(redisOpt asynq.RedisConnOpt, purgeSpec string, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if purgeSpec == "" {
		purgeSpec = DefaultPurgeSchedule
	}
	log = log.With(slog.String("component", "scheduler"))

	return &Scheduler{
		inner: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
			Logger: newAsynqLogger(log),
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil {
					log.Error("periodic enqueue failed", slog.Any("error", err))
					return
				}
				log.Debug("periodic task enqueued", slog.String("task_type", info.Type), slog.String("task_id", info.ID))
			},
		}),
		purgeSpec: purgeSpec,
		log:       log,
	}
}

// Start registers the periodic tasks and begins scheduling in the background.
func (s *Scheduler) Start() error {
	entryID, err := s.inner.Register(s.purgeSpec, NewBinCachePurgeTask())
	if err != nil {
		return fmt.Errorf("register %s on %q: %w", TaskTypeBinCachePurge, s.purgeSpec, err)
	}
	s.log.Info("periodic task registered",
		slog.String("task_type", TaskTypeBinCachePurge),
		slog.String("schedule", s.purgeSpec),
		slog.String("entry_id", entryID),
	)

	if err := s.inner.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// Shutdown stops scheduling. Tasks already enqueued are left to the worker.
func (s *Scheduler) Shutdown() {
	s.inner.Shutdown()
	s.log.Info("scheduler stopped")
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
)

const defaultConcurrency = 10

// Worker processes queued tasks on an asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

// NewWorker builds a Worker serving queues with their weights. Empty queues
// fall back to DefaultQueues and a non-positive concurrency to 10.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, concurrency int, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if len(queues) == 0 {
		queues = DefaultQueues
	}
	log = log.With(slog.String("component", "jobs"))

	w := &Worker{mux: asynq.NewServeMux(), log: log}
	w.mux.Use(w.observe)
	w.server = asynq.NewServer(redisOpt, asynq.Config{
		Queues:       queues,
		Concurrency:  concurrency,
		Logger:       newAsynqLogger(log),
		ErrorHandler: asynq.ErrorHandlerFunc(w.failed),
	})

	return w
}

// RegisterHandler routes taskType to h.
func (w *Worker) RegisterHandler(taskType string, h asynq.Handler) {
	w.mux.Handle(taskType, h)
}

// Start begins processing in the background. The caller owns signal
// handling and stops the worker with Shutdown.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.log.Info("worker started")
	return nil
}

// Shutdown waits for in-flight tasks and stops the worker.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.log.Info("worker stopped")
}

func (w *Worker) observe(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		if err == nil {
			w.log.DebugContext(ctx, "task done", slog.String("task_type", t.Type()), slog.Duration("duration", time.Since(start)))
		}
		return err
	})
}

// failed logs a task error. The last attempt is logged as an error, earlier
// ones as warnings since asynq will retry them.
func (w *Worker) failed(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	attrs := []slog.Attr{
		slog.String("task_type", t.Type()),
		slog.Int("retried", retried),
		slog.Int("max_retry", maxRetry),
		slog.Any("error", err),
	}
	if retried >= maxRetry {
		w.log.LogAttrs(ctx, slog.LevelError, "task failed permanently", attrs...)
		return
	}
	w.log.LogAttrs(ctx, slog.LevelWarn, "task failed, will retry", attrs...)
}

// asynqLogger routes asynq's own logs through slog.
type asynqLogger struct {
	log *slog.Logger
}

func newAsynqLogger(log *slog.Logger) asynqLogger {
	return asynqLogger{log: log.With(slog.String("source", "asynq"))}
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) {
	l.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}

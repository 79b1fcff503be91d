package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// Shutdown runs the registered release hooks concurrently on exit.
type Shutdown struct {
	mu    sync.Mutex
	hooks []hook
	log   *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, hook{name: name, fn: fn})
}

// Execute runs all registered hooks concurrently and waits for them. A failing
// hook does not cancel the others; all failures are joined into the result.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var (
		g     errgroup.Group
		errMu sync.Mutex
		errs  []error
	)

	for _, h := range hooks {
		g.Go(func() error {
			s.log.Info("running shutdown hook", slog.String("hook", h.name))

			if err := h.fn(ctx); err != nil {
				s.log.Error("shutdown hook failed", slog.String("hook", h.name), slog.Any("error", err))
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
				errMu.Unlock()
				return nil
			}

			s.log.Info("shutdown hook completed", slog.String("hook", h.name))
			return nil
		})
	}

	_ = g.Wait()

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}

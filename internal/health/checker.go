// Package health runs dependency checks for the readiness probe.
package health

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 2 * time.Second

// StatusOK is reported for passing checks.
const StatusOK = "OK"

// Checkable is a dependency that can report whether it is usable.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Checker runs named checks in parallel, each under its own timeout.
type Checker struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Checkable
}

// NewChecker returns an empty Checker.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{log: log, timeout: defaultCheckTimeout, checks: map[string]Checkable{}}
}

// AddCheck registers check under name, replacing any previous one. Unnamed
// and nil checks are ignored.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// Names lists the registered checks, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.checks))
}

// Check runs every check and maps its name to StatusOK or the error text.
// healthy is false when any check failed.
func (c *Checker) Check(ctx context.Context) (results map[string]string, healthy bool) {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	names := slices.Sorted(maps.Keys(checks))
	statuses := make([]string, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			statuses[i] = c.run(ctx, name, checks[name])
			return nil
		})
	}
	_ = g.Wait()

	results = make(map[string]string, len(names))
	healthy = true
	for i, name := range names {
		results[name] = statuses[i]
		healthy = healthy && statuses[i] == StatusOK
	}
	return results, healthy
}

func (c *Checker) run(ctx context.Context, name string, check Checkable) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	if err := check.HealthCheck(ctx); err != nil {
		c.log.Warn("health check failed",
			slog.String("component", name),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return err.Error()
	}
	return StatusOK
}

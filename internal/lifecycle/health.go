package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// DependencyChecker runs dependency checks.
type DependencyChecker interface {
	Check(ctx context.Context) (map[string]string, bool)
}

// ErrNotReady is returned by Readiness when a dependency check fails.
var ErrNotReady = errors.New("not ready")

// Probes answers liveness unconditionally and readiness from its dependency checks.
type Probes struct {
	log  *slog.Logger
	deps DependencyChecker
}

// NewProbes creates a new Probes instance. deps may be nil.
func NewProbes(log *slog.Logger, deps DependencyChecker) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, deps: deps}
}

// Liveness reports success while the process is running.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness fails with ErrNotReady naming every failing dependency.
func (p *Probes) Readiness(ctx context.Context) error {
	_, err := p.Report(ctx)
	return err
}

// Report runs the dependency checks and returns each component's status along
// with the readiness verdict.
func (p *Probes) Report(ctx context.Context) (map[string]string, error) {
	if p.deps == nil {
		return map[string]string{}, nil
	}

	results, ok := p.deps.Check(ctx)
	if ok {
		return results, nil
	}

	failed := make([]string, 0, len(results))
	for name, status := range results {
		if status != "OK" {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)

	p.log.Warn("readiness probe failed", slog.Any("components", failed))
	return results, fmt.Errorf("%w: %s", ErrNotReady, strings.Join(failed, ", "))
}

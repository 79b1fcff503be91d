package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "redis",
		Name:      "commands_total",
		Help:      "Redis commands issued, by command name.",
	}, []string{"command"})
	commandErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "redis",
		Name:      "command_errors_total",
		Help:      "Redis commands that failed, by command name. Cache misses are not errors.",
	}, []string{"command"})
	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "redis",
		Name:      "command_duration_seconds",
		Help:      "Redis command latency.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"command"})
)

// metricsHook records every command and pipeline sent through a client.
type metricsHook struct{}

var _ goredis.Hook = metricsHook{}

func (metricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

func (metricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		record(cmd.Name(), start, err)
		return err
	}
}

func (metricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		record("pipeline", start, err)
		return err
	}
}

func record(command string, start time.Time, err error) {
	command = strings.ToLower(command)
	commandsTotal.WithLabelValues(command).Inc()
	commandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, goredis.Nil) {
		commandErrorsTotal.WithLabelValues(command).Inc()
	}
}

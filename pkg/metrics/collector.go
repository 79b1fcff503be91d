// Package metrics exposes the bot's Prometheus instruments.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	gateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Command gate decisions labeled by command and reason",
		},
		[]string{"command", "reason"},
	)
	ledgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations labeled by operation and status",
		},
		[]string{"operation", "status"},
	)
	bincacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bincache_lookups_total",
			Help: "BIN cache lookups labeled by result (hit, miss, stale, failed)",
		},
		[]string{"result"},
	)
	bincacheFetchSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bincache_fetch_duration_seconds",
			Help:    "Duration of upstream BIN fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	rateLimitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_checks_total",
			Help: "Rate limit checks labeled by backend (redis, memory) and result",
		},
		[]string{"backend", "result"},
	)
	accountsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accounts_total",
			Help: "Number of accounts split by population (all, registered, new_today, active_today)",
		},
		[]string{"population"},
	)
	accountsByTier = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accounts_by_tier",
			Help: "Number of accounts per stored tier",
		},
		[]string{"tier"},
	)
)

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	botCommandsTotal.WithLabelValues(orUnknown(command), orUnknown(status)).Inc()
	commandDurationSeconds.WithLabelValues(orUnknown(command)).Observe(duration.Seconds())
}

// RecordGateDecision counts a gate outcome.
func RecordGateDecision(command, reason string) {
	gateDecisionsTotal.WithLabelValues(orUnknown(command), orUnknown(reason)).Inc()
}

// RecordLedgerOperation counts a ledger operation outcome.
func RecordLedgerOperation(operation, status string) {
	ledgerOperationsTotal.WithLabelValues(orUnknown(operation), orUnknown(status)).Inc()
}

// RecordBinLookup counts a cache lookup outcome.
func RecordBinLookup(result string) {
	bincacheLookupsTotal.WithLabelValues(orUnknown(result)).Inc()
}

// ObserveBinFetch records the duration of an upstream fetch.
func ObserveBinFetch(d time.Duration) {
	bincacheFetchSeconds.Observe(d.Seconds())
}

// RecordStateTransition tracks FSM transitions.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

// RecordRateLimit counts a limiter verdict for backend.
func RecordRateLimit(backend string, allowed bool) {
	result := "rejected"
	if allowed {
		result = "allowed"
	}
	rateLimitChecksTotal.WithLabelValues(orUnknown(backend), result).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// StatsSource reports aggregate account numbers.
type StatsSource interface {
	AccountStats(ctx context.Context, now time.Time) (domain.AccountStats, error)
}

// AccountCollector periodically publishes account population gauges.
type AccountCollector struct {
	source   StatsSource
	log      *slog.Logger
	interval time.Duration
}

// NewAccountCollector builds a collector polling source every interval.
func NewAccountCollector(source StatsSource, log *slog.Logger, interval time.Duration) *AccountCollector {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &AccountCollector{source: source, log: log, interval: interval}
}

// Run polls until ctx is cancelled.
func (c *AccountCollector) Run(ctx context.Context) {
	if c == nil || c.source == nil {
		return
	}

	for {
		if err := c.collect(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("account stats collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *AccountCollector) collect(ctx context.Context) error {
	stats, err := c.source.AccountStats(ctx, time.Now())
	if err != nil {
		return err
	}

	accountsTotal.WithLabelValues("all").Set(float64(stats.Total))
	accountsTotal.WithLabelValues("registered").Set(float64(stats.Registered))
	accountsTotal.WithLabelValues("new_today").Set(float64(stats.NewToday))
	accountsTotal.WithLabelValues("active_today").Set(float64(stats.ActiveToday))

	accountsByTier.Reset()
	for t, count := range stats.ByTier {
		accountsByTier.WithLabelValues(string(t)).Set(float64(count))
	}

	return nil
}

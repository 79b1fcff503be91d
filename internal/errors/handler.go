package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	"github.com/Proton-105/tiergate-bot/pkg/logger"
	"github.com/Proton-105/tiergate-bot/pkg/metrics"
)

// Reply is what the user should be told about a failure.
type Reply struct {
	Key       string
	Params    map[string]any
	Retryable bool
}

// Handler is the single place where update failures are logged, counted and
// reported before the user sees a translated reply.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sentryEnabled: sentryEnabled}
}

// Handle logs err and picks the message key for the user. Domain sentinels
// are expected outcomes and are neither logged as errors nor reported.
func (h *Handler) Handle(ctx context.Context, err error) Reply {
	if err == nil {
		return Reply{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		if key := domain.MessageKey(err); key != "" {
			h.log.DebugContext(ctx, "domain error", slog.String("key", key), slog.Any("error", err))
			return Reply{Key: key}
		}
		appErr = &AppError{Code: "unknown", Message: err.Error(), Key: KeyInternal, Severity: SeverityHigh, cause: err}
	}

	h.log.LogAttrs(ctx, levelOf(appErr.Severity), "application error", appAttrs(ctx, appErr)...)
	metrics.RecordError(appErr.Code, string(appErr.Severity))

	if h.sentryEnabled && (appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical) {
		report(ctx, appErr, err)
	}

	key := appErr.Key
	if key == "" {
		key = KeyInternal
	}
	return Reply{Key: key, Params: appErr.Params, Retryable: appErr.Retryable}
}

func levelOf(s Severity) slog.Level {
	switch s {
	case SeverityLow:
		return slog.LevelInfo
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func appAttrs(ctx context.Context, e *AppError) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("code", e.Code),
		slog.String("message", e.Message),
		slog.String("severity", string(e.Severity)),
		slog.Bool("retryable", e.Retryable),
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	return attrs
}

// report sends err to Sentry on the hub bound to ctx, falling back to the
// global hub.
func report(ctx context.Context, appErr *AppError, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", appErr.Code)
		scope.SetTag("severity", string(appErr.Severity))
		if id := logger.CorrelationIDFromContext(ctx); id != "" {
			scope.SetTag("correlation_id", id)
		}
		hub.CaptureException(err)
	})
}

// Package logger builds the application's slog logger.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/tiergate-bot/pkg/config"
)

var (
	level   = new(slog.LevelVar)
	logFile io.Closer
)

// New creates the process logger from cfg. Output goes to stdout and, when configured,
// to a rotating file. Error records are additionally forwarded to Sentry when enabled.
func New(cfg *config.Config) *slog.Logger {
	if err := SetLevel(cfg.Logger.Level); err != nil {
		level.Set(slog.LevelInfo)
	}

	var out io.Writer = os.Stdout
	if cfg.Logger.File.Enabled {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Logger.File.Path,
			MaxSize:    cfg.Logger.File.MaxSizeMB,
			MaxBackups: cfg.Logger.File.MaxBackups,
			MaxAge:     cfg.Logger.File.MaxAgeDays,
			Compress:   cfg.Logger.File.Compress,
		}
		logFile = rotating
		out = io.MultiWriter(os.Stdout, rotating)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.Sentry.Enabled {
		sentryHandler := slogsentry.Option{
			Level: slog.LevelError,
			Hub:   sentry.CurrentHub(),
		}.NewSentryHandler()
		handler = newFanoutHandler(handler, sentryHandler)
	}

	return slog.New(NewMaskingHandler(handler)).With(slog.String("env", cfg.AppEnv))
}

// InitSentry configures the global Sentry client. It is a no-op when Sentry is disabled.
func InitSentry(cfg *config.Config) error {
	if !cfg.Sentry.Enabled {
		return nil
	}

	env := cfg.Sentry.Environment
	if env == "" {
		env = cfg.AppEnv
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: env,
		SampleRate:  cfg.Sentry.SampleRate,
	}); err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}

	return nil
}

// SetLevel changes the level of every logger created by New.
func SetLevel(raw string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return fmt.Errorf("parse log level %q: %w", raw, err)
	}

	level.Set(lvl)
	return nil
}

// Level returns the current level.
func Level() slog.Level {
	return level.Level()
}

// Close releases the rotating log file, if any.
func Close() error {
	if logFile == nil {
		return nil
	}

	return logFile.Close()
}

type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers ...slog.Handler) slog.Handler {
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, next := range h.handlers {
		if next.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, next := range h.handlers {
		if !next.Enabled(ctx, record.Level) {
			continue
		}
		if err := next.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

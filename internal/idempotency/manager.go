// Package idempotency makes sure a redelivered Telegram update is handled at most once.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrRequestInProgress is returned while another worker still handles the key.
	ErrRequestInProgress = errors.New("request with this key is already in progress")
	// ErrDuplicate is returned when the key was already handled.
	ErrDuplicate = errors.New("request with this key was already handled")
)

const (
	// DefaultProcessingTTL bounds how long a crashed worker can hold a key.
	DefaultProcessingTTL = 5 * time.Minute
	// DefaultCompletedTTL is how long a handled key is remembered.
	DefaultCompletedTTL = 24 * time.Hour
)

// Operation is the work guarded by a key.
type Operation func(ctx context.Context) error

// Manager runs an Operation at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, fn Operation) error
}

type manager struct {
	store         Store
	log           *slog.Logger
	processingTTL time.Duration
	completedTTL  time.Duration
}

// NewManager creates a Manager. Zero TTLs fall back to the defaults.
func NewManager(store Store, log *slog.Logger, processingTTL, completedTTL time.Duration) Manager {
	if log == nil {
		log = slog.Default()
	}
	if processingTTL <= 0 {
		processingTTL = DefaultProcessingTTL
	}
	if completedTTL <= 0 {
		completedTTL = DefaultCompletedTTL
	}

	return &manager{
		store:         store,
		log:           log,
		processingTTL: processingTTL,
		completedTTL:  completedTTL,
	}
}

// Execute claims key and runs fn. The key is marked completed even when fn
// fails, since a failed handler may already have charged the account.
func (m *manager) Execute(ctx context.Context, key string, fn Operation) error {
	if fn == nil {
		return errors.New("operation fn cannot be nil")
	}

	claimed, err := m.store.Claim(ctx, key, m.processingTTL)
	if err != nil {
		return err
	}

	if !claimed {
		status, err := m.store.Status(ctx, key)
		if err != nil {
			return err
		}
		if status == StatusCompleted {
			return ErrDuplicate
		}
		return ErrRequestInProgress
	}

	fnErr := fn(ctx)

	if err := m.store.Complete(context.WithoutCancel(ctx), key, m.completedTTL); err != nil {
		m.log.Error("failed to mark idempotency key completed", slog.String("key", key), slog.Any("error", err))
	}

	return fnErr
}

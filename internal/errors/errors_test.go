package errors

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/Proton-105/tiergate-bot/internal/domain"
)

func testHandler() *Handler {
	return NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func TestHandler_Handle(t *testing.T) {
	h := testHandler()
	ctx := context.Background()

	tests := []struct {
		name      string
		err       error
		key       string
		retryable bool
	}{
		{name: "nil", err: nil, key: ""},
		{name: "database", err: NewDatabaseError(stdErrors.New("conn reset")), key: "errors.database", retryable: true},
		{name: "wrapped app error", err: fmt.Errorf("load: %w", NewStateError("busy")), key: "errors.state"},
		{name: "domain sentinel", err: fmt.Errorf("debit: %w", domain.ErrInsufficientCredits), key: "errors.insufficient_credits"},
		{name: "lookup failed", err: fmt.Errorf("%w: timeout", domain.ErrLookupFailed), key: "errors.lookup_failed"},
		{name: "unknown", err: stdErrors.New("boom"), key: KeyInternal},
		{name: "app error without key", err: &AppError{Code: "E999"}, key: KeyInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := h.Handle(ctx, tt.err)
			assert.Equal(t, tt.key, reply.Key)
			assert.Equal(t, tt.retryable, reply.Retryable)
		})
	}
}

func TestRateLimitErrorParams(t *testing.T) {
	reply := testHandler().Handle(context.Background(), NewRateLimitError(1500*time.Millisecond))
	assert.Equal(t, "errors.rate_limit", reply.Key)
	assert.Equal(t, 2, reply.Params["seconds"])
}

func TestLedgerErrorUnwraps(t *testing.T) {
	err := NewLedgerError("debit", domain.ErrLookupFailed)
	assert.ErrorIs(t, err, domain.ErrLookupFailed)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "E600", err.Code)
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	attempts := 0
	err := WithRetry(ctx, func() error {
		attempts++
		if attempts < 2 {
			return NewDatabaseError(stdErrors.New("deadlock"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)

	attempts = 0
	err = WithRetry(ctx, func() error {
		attempts++
		return NewValidationError("bad input")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, WithRetry(cancelled, func() error { return nil }), context.Canceled)
}

func TestIsRetryableRecognizesPostgresConflicts(t *testing.T) {
	deadlock := fmt.Errorf("save: %w", &pq.Error{Code: "40P01"})
	assert.True(t, IsRetryable(deadlock))
	assert.True(t, IsSerializationConflict(deadlock))

	uniqueViolation := &pq.Error{Code: "23505"}
	assert.False(t, IsRetryable(uniqueViolation))
	assert.False(t, IsSerializationConflict(uniqueViolation))
	assert.False(t, IsRetryable(stdErrors.New("plain")))
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 200*time.Millisecond, p.next(100*time.Millisecond))
	assert.Equal(t, 300*time.Millisecond, p.next(200*time.Millisecond))

	calls := 0
	err := RetryPolicy{Attempts: 2, Initial: time.Millisecond, ShouldRetry: func(error) bool { return true }}.
		Do(context.Background(), func() error {
			calls++
			return stdErrors.New("still failing")
		})
	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 2, calls)
}

func TestHandlerLogsBySeverity(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(slog.New(slog.NewTextHandler(&buf, nil)), false)
	ctx := context.Background()

	h.Handle(ctx, NewRateLimitError(time.Second))
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "code=E500")

	buf.Reset()
	h.Handle(ctx, NewDatabaseError(stdErrors.New("conn reset")))
	assert.Contains(t, buf.String(), "level=ERROR")

	buf.Reset()
	h.Handle(ctx, domain.ErrBanned)
	assert.Empty(t, buf.String())
}

package errors

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/lib/pq"
)

// RetryPolicy bounds how often and how patiently an operation is retried.
type RetryPolicy struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// ShouldRetry decides whether an error deserves another attempt. Nil means IsRetryable.
	ShouldRetry func(error) bool
}

// DefaultRetry is used by WithRetry.
var DefaultRetry = RetryPolicy{
	Attempts:   4,
	Initial:    100 * time.Millisecond,
	Max:        5 * time.Second,
	Multiplier: 2,
}

// WithRetry runs fn under DefaultRetry.
func WithRetry(ctx context.Context, fn func() error) error {
	return DefaultRetry.Do(ctx, fn)
}

// Do calls fn until it succeeds, fails with an error ShouldRetry rejects, or
// the attempts run out. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	retryable := p.ShouldRetry
	if retryable == nil {
		retryable = IsRetryable
	}
	attempts := max(p.Attempts, 1)
	delay := p.Initial

	var err error
	for attempt := 1; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		if err = fn(); err == nil || !retryable(err) || attempt == attempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = p.next(delay)
	}
}

func (p RetryPolicy) next(d time.Duration) time.Duration {
	if p.Multiplier > 1 {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// IsRetryable reports whether err is marked retryable or is a Postgres
// conflict that rolled its transaction back.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil && appErr.Retryable {
		return true
	}

	return IsSerializationConflict(err) || errors.Is(err, driver.ErrBadConn)
}

// Postgres SQLSTATEs after which the whole transaction was rolled back.
const (
	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
)

// IsSerializationConflict reports a serialization failure or deadlock. Both
// guarantee nothing was committed, so replaying the transaction is safe.
func IsSerializationConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

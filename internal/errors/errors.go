// Package errors classifies application failures and turns them into
// user-facing message keys.
package errors

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Fallback message key for errors nobody classified.
const KeyInternal = "errors.internal"

type AppError struct {
	Code      string
	Message   string
	Key       string
	Params    map[string]any
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:      "E100",
		Message:   msg,
		Key:       "errors.validation",
		Params:    map[string]any{"details": msg},
		Severity:  SeverityLow,
		Retryable: false,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:      "E200",
		Message:   fmt.Sprintf("Database error: %s", underlyingMsg),
		Key:       "errors.database",
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:      "E300",
		Message:   fmt.Sprintf("External API error: %s", apiName),
		Key:       "errors.external_api",
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:      "E400",
		Message:   msg,
		Key:       "errors.state",
		Severity:  SeverityMedium,
		Retryable: false,
	}
}

func NewRateLimitError(retryAfter time.Duration) *AppError {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	return &AppError{
		Code:      "E500",
		Message:   fmt.Sprintf("Rate limit exceeded: retry after %d seconds", seconds),
		Key:       "errors.rate_limit",
		Params:    map[string]any{"seconds": seconds},
		Severity:  SeverityLow,
		Retryable: false,
	}
}

// NewLedgerError wraps a failed balance mutation. The cause stays reachable
// through errors.Is.
func NewLedgerError(op string, cause error) *AppError {
	return &AppError{
		Code:      "E600",
		Message:   fmt.Sprintf("Ledger error in %s: %v", op, cause),
		Key:       "errors.ledger",
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

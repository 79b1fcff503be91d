package state

import "time"

// State represents a finite-state machine state.
type State string

const (
	// StateIdle indicates that the bot is waiting for the next user command.
	StateIdle State = "idle"
	// StateAwaitingPaymentProof indicates that /buy was issued and the next
	// photo or document is treated as a payment receipt.
	StateAwaitingPaymentProof State = "awaiting_payment_proof"
	// StateError indicates that the bot is in an error state and requires recovery.
	StateError State = "error"
)

// Context keys stored alongside StateAwaitingPaymentProof.
const (
	ContextPaymentID = "payment_id"
	ContextTier      = "tier"
)

// UserState captures the current FSM state for a Telegram user.
type UserState struct {
	UserID       int64          `json:"user_id"`
	CurrentState State          `json:"current_state"`
	Context      map[string]any `json:"context"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// String returns the context value for key, or "" when it is absent.
func (s *UserState) String(key string) string {
	if s == nil || s.Context == nil {
		return ""
	}
	v, _ := s.Context[key].(string)
	return v
}

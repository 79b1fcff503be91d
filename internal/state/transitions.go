package state

// IsTransitionAllowed reports whether a user may move from one state to
// another. Returning to idle or failing into the error state is always
// possible; the only prompt is the payment proof, entered from idle or
// re-entered when /buy is sent again.
func IsTransitionAllowed(from, to State) bool {
	switch to {
	case StateIdle, StateError:
		return true
	case StateAwaitingPaymentProof:
		return from == StateIdle || from == StateAwaitingPaymentProof
	default:
		return false
	}
}

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransitionAllowed(t *testing.T) {
	tests := map[string]struct {
		from, to State
		want     bool
	}{
		"buy from idle":               {StateIdle, StateAwaitingPaymentProof, true},
		"buy again while waiting":     {StateAwaitingPaymentProof, StateAwaitingPaymentProof, true},
		"proof received":              {StateAwaitingPaymentProof, StateIdle, true},
		"prompt after failure":        {StateError, StateAwaitingPaymentProof, false},
		"prompt from unknown state":   {State("unknown"), StateAwaitingPaymentProof, false},
		"reset from anywhere":         {State("whatever"), StateIdle, true},
		"fail from prompt":            {StateAwaitingPaymentProof, StateError, true},
		"unknown target is never set": {StateIdle, State("checkout"), false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransitionAllowed(tc.from, tc.to))
		})
	}
}

package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Proton-105/tiergate-bot/internal/bot/handlers"
	"github.com/Proton-105/tiergate-bot/internal/state"
)

// Dispatcher picks the handler for free text based on the sender's
// conversation state, e.g. a photo sent while a payment proof is awaited.
type Dispatcher struct {
	fsm state.StateMachine
	log *slog.Logger

	mu     sync.RWMutex
	routes map[state.State]route
}

// NewDispatcher returns a Dispatcher with no state handlers.
func NewDispatcher(fsm state.StateMachine, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{fsm: fsm, log: log, routes: map[state.State]route{}}
}

// RegisterStateHandler handles messages received in s. The gate evaluates
// them as command.
func (d *Dispatcher) RegisterStateHandler(s state.State, command string, h handlers.Handler) {
	d.mu.Lock()
	d.routes[s] = route{command: normalizeCommand(command), handler: h}
	d.mu.Unlock()
}

// lookup returns the route for the user's current state. ok is false when
// the user is idle or nothing handles the state.
func (d *Dispatcher) lookup(ctx context.Context, userID int64) (route, bool, error) {
	if d.fsm == nil {
		return route{}, false, nil
	}

	current, err := d.fsm.Current(ctx, userID)
	if err != nil {
		return route{}, false, err
	}

	d.mu.RLock()
	rt, ok := d.routes[current.CurrentState]
	d.mu.RUnlock()

	if !ok && current.CurrentState != state.StateIdle {
		d.log.Warn("no handler for state",
			slog.String("state", string(current.CurrentState)),
			slog.Int64("user_id", userID),
		)
	}
	return rt, ok, nil
}

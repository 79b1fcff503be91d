// Package state manages user conversation state for the bot.
package state

import (
	"context"
	"sync"
	"time"
)

// Storage defines the persistence contract for user FSM state.
type Storage interface {
	// GetState returns the current state for the specified user.
	GetState(ctx context.Context, userID int64) (*UserState, error)
	// SetState saves the provided state for the specified user.
	SetState(ctx context.Context, userID int64, state *UserState) error
	// ClearState removes the state for the specified user.
	ClearState(ctx context.Context, userID int64) error
}

// MemoryStorage keeps states in process memory. Entries older than ttl are
// treated as absent and dropped on read.
type MemoryStorage struct {
	mu     sync.Mutex
	states map[int64]*UserState
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStorage creates a MemoryStorage. A zero ttl keeps states forever.
func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	return &MemoryStorage{
		states: make(map[int64]*UserState),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemoryStorage) GetState(_ context.Context, userID int64) (*UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		return nil, ErrStateNotFound
	}
	if s.ttl > 0 && s.now().Sub(st.UpdatedAt) > s.ttl {
		delete(s.states, userID)
		return nil, ErrStateNotFound
	}

	return cloneState(st), nil
}

func (s *MemoryStorage) SetState(_ context.Context, userID int64, st *UserState) error {
	st.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = cloneState(st)
	return nil
}

func (s *MemoryStorage) ClearState(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

func cloneState(st *UserState) *UserState {
	if st == nil {
		return nil
	}

	out := *st
	if st.Context != nil {
		out.Context = make(map[string]any, len(st.Context))
		for k, v := range st.Context {
			out.Context[k] = v
		}
	}
	return &out
}

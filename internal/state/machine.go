package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "fsm:lock:%d"
	lockTTL            = 5 * time.Second
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that a user state record does not exist.
	ErrStateNotFound = errors.New("user state not found")
	// ErrStateLocked indicates that a concurrent operation already holds the lock.
	ErrStateLocked = errors.New("state is locked, try again later")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		recorder = func(string, string) {}
	}
	transitionRecorder = recorder
}

// StateMachine describes the operations supported by the FSM controller.
type StateMachine interface {
	GetState(ctx context.Context, userID int64) (*UserState, error)
	// Current returns StateIdle for users without a stored state.
	Current(ctx context.Context, userID int64) (*UserState, error)
	SetState(ctx context.Context, userID int64, state State, contextData map[string]any) error
	TransitionTo(ctx context.Context, userID int64, newState State, contextData map[string]any) error
	ClearState(ctx context.Context, userID int64) error
}

type machine struct {
	storage Storage
	locks   *stateLocks
	log     *slog.Logger
	now     func() time.Time
}

// NewStateMachine creates a FSM controller. Writes for one user are serialized
// through a Redis lock; a nil redisClient disables locking.
func NewStateMachine(storage Storage, log *slog.Logger, redisClient *redis.Client) StateMachine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage: storage,
		locks:   &stateLocks{client: redisClient, log: log},
		log:     log,
		now:     time.Now,
	}
}

func (m *machine) GetState(ctx context.Context, userID int64) (*UserState, error) {
	return m.storage.GetState(ctx, userID)
}

func (m *machine) Current(ctx context.Context, userID int64) (*UserState, error) {
	st, err := m.storage.GetState(ctx, userID)
	if errors.Is(err, ErrStateNotFound) {
		return &UserState{UserID: userID, CurrentState: StateIdle}, nil
	}
	return st, err
}

// SetState stores state without checking the transition table.
func (m *machine) SetState(ctx context.Context, userID int64, state State, contextData map[string]any) error {
	return m.locks.with(ctx, userID, func() error {
		return m.save(ctx, userID, state, contextData)
	})
}

// TransitionTo moves the user to newState when the table allows it. Reaching
// StateIdle deletes the stored record.
func (m *machine) TransitionTo(ctx context.Context, userID int64, newState State, contextData map[string]any) error {
	return m.locks.with(ctx, userID, func() error {
		current, err := m.Current(ctx, userID)
		if err != nil {
			return err
		}

		if !IsTransitionAllowed(current.CurrentState, newState) {
			m.log.Warn("invalid state transition",
				slog.Int64("user_id", userID),
				slog.String("from", string(current.CurrentState)),
				slog.String("to", string(newState)),
			)
			return ErrInvalidTransition
		}

		transitionRecorder(string(current.CurrentState), string(newState))

		if newState == StateIdle {
			return m.storage.ClearState(ctx, userID)
		}
		return m.save(ctx, userID, newState, contextData)
	})
}

func (m *machine) ClearState(ctx context.Context, userID int64) error {
	return m.locks.with(ctx, userID, func() error {
		return m.storage.ClearState(ctx, userID)
	})
}

func (m *machine) save(ctx context.Context, userID int64, state State, contextData map[string]any) error {
	return m.storage.SetState(ctx, userID, &UserState{
		UserID:       userID,
		CurrentState: state,
		Context:      contextData,
		UpdatedAt:    m.now().UTC(),
	})
}

// releaseLockScript deletes the lock only while it still carries our token,
// so an expired lock taken over by another update is left alone.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type stateLocks struct {
	client *redis.Client
	log    *slog.Logger
}

// with runs fn while holding the user's lock. It fails fast with
// ErrStateLocked instead of waiting: a second update racing the same
// conversation step is dropped.
func (l *stateLocks) with(ctx context.Context, userID int64, fn func() error) error {
	if l.client == nil {
		return fn()
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
	if err != nil {
		l.log.Error("failed to acquire user state lock", slog.Int64("user_id", userID), slog.Any("error", err))
		return err
	}
	if !acquired {
		l.log.Warn("user state lock already held", slog.Int64("user_id", userID))
		return ErrStateLocked
	}

	defer func() {
		if err := releaseLockScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err(); err != nil {
			l.log.Error("failed to release user state lock", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}()

	return fn()
}

package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that a user state record does not exist.
	ErrStateNotFound = errors.New("user state not found")
	// ErrStateLocked indicates that a concurrent operation already holds the lock.
	ErrStateLocked = errors.New("state is locked, try again later")
)

var transitionRecorder = func(flow, from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(flow, from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string, string) {}
		return
	}

	transitionRecorder = recorder
}

// StateMachine describes the operations supported by the FSM controller.
// Callers hold Lock for the whole read-modify-write of a user's draft.
type StateMachine interface {
	Lock(ctx context.Context, userID int64) (release func(), err error)
	GetState(ctx context.Context, userID int64) (*UserState, error)
	// Begin starts flow at an entry step, replacing any draft the user had.
	Begin(ctx context.Context, userID int64, flow FlowKind, step State, draft Draft) (*UserState, error)
	// TransitionTo moves st to newState and persists its draft.
	TransitionTo(ctx context.Context, st *UserState, newState State) error
	ClearState(ctx context.Context, userID int64) error
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

// machine is a concrete implementation of StateMachine backed by Storage and a Locker.
type machine struct {
	storage Storage
	locker  Locker
	log     *slog.Logger
	now     func() time.Time
}

// NewStateMachine creates a FSM controller. A nil locker falls back to a process-local lock.
func NewStateMachine(storage Storage, locker Locker, log *slog.Logger) StateMachine {
	if log == nil {
		log = slog.Default()
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}

	return &machine{
		storage: storage,
		locker:  locker,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *machine) Lock(ctx context.Context, userID int64) (func(), error) {
	return m.locker.Acquire(ctx, userID)
}

// GetState proxies to the underlying storage implementation.
func (m *machine) GetState(ctx context.Context, userID int64) (*UserState, error) {
	return m.storage.GetState(ctx, userID)
}

// GetAllStates returns every persisted user state.
func (m *machine) GetAllStates(ctx context.Context) ([]*UserState, error) {
	return m.storage.GetAllStates(ctx)
}

func (m *machine) Begin(ctx context.Context, userID int64, flow FlowKind, step State, draft Draft) (*UserState, error) {
	if !IsEntryState(flow, step) {
		m.log.Warn("invalid flow entry", "user_id", userID, "flow", flow, "state", step)
		return nil, ErrInvalidTransition
	}
	if err := draft.ValidateFor(flow); err != nil {
		return nil, fmt.Errorf("begin %s: %w", flow, err)
	}

	st := &UserState{
		UserID:       userID,
		Flow:         flow,
		CurrentState: step,
		Draft:        draft,
		UpdatedAt:    m.now(),
	}
	if err := m.storage.SetState(ctx, userID, st); err != nil {
		return nil, err
	}

	transitionRecorder(string(flow), string(StateIdle), string(step))
	return st, nil
}

func (m *machine) TransitionTo(ctx context.Context, st *UserState, newState State) error {
	if st == nil {
		return ErrStateNotFound
	}
	if newState == StateIdle {
		return m.finish(ctx, st)
	}

	if !IsTransitionAllowed(st.CurrentState, newState) {
		m.log.Warn("invalid state transition", "user_id", st.UserID, "from", st.CurrentState, "to", newState)
		return ErrInvalidTransition
	}

	from := st.CurrentState
	st.CurrentState = newState
	st.UpdatedAt = m.now()
	if err := m.storage.SetState(ctx, st.UserID, st); err != nil {
		st.CurrentState = from
		return err
	}

	if from != newState {
		transitionRecorder(string(st.Flow), string(from), string(newState))
	}
	return nil
}

func (m *machine) finish(ctx context.Context, st *UserState) error {
	if err := m.storage.ClearState(ctx, st.UserID); err != nil {
		return err
	}
	transitionRecorder(string(st.Flow), string(st.CurrentState), string(StateIdle))
	return nil
}

// ClearState removes the stored draft.
func (m *machine) ClearState(ctx context.Context, userID int64) error {
	return m.storage.ClearState(ctx, userID)
}

package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/testutil"
)

var errStorageFailure = errors.New("storage error")

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	args := m.Called(ctx, userID)
	st, _ := args.Get(0).(*UserState)
	return st, args.Error(1)
}

func (m *mockStorage) SetState(ctx context.Context, userID int64, st *UserState) error {
	args := m.Called(ctx, userID, st)
	return args.Error(0)
}

func (m *mockStorage) ClearState(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockStorage) GetAllStates(ctx context.Context) ([]*UserState, error) {
	args := m.Called(ctx)
	states, _ := args.Get(0).([]*UserState)
	return states, args.Error(1)
}

func ticketDraft() Draft {
	return Draft{Ticket: &TicketDraft{Type: domain.TicketProblem, BranchName: "Север"}}
}

func TestStateMachine_Begin(t *testing.T) {
	ctx := context.Background()
	const userID = int64(42)

	tests := []struct {
		name    string
		flow    FlowKind
		step    State
		draft   Draft
		setup   func(ms *mockStorage)
		wantErr error
	}{
		{
			name:  "valid entry",
			flow:  FlowFeedback,
			step:  StateTicketMessage,
			draft: ticketDraft(),
			setup: func(ms *mockStorage) {
				ms.On("SetState", ctx, userID, mock.MatchedBy(func(st *UserState) bool {
					return st.Flow == FlowFeedback && st.CurrentState == StateTicketMessage && !st.UpdatedAt.IsZero()
				})).Return(nil).Once()
			},
		},
		{
			name:    "not an entry step",
			flow:    FlowOrder,
			step:    StateOrderQuantity,
			draft:   Draft{Order: &OrderDraft{}},
			wantErr: ErrInvalidTransition,
		},
		{
			name:  "storage failure",
			flow:  FlowQuestion,
			step:  StateTicketMessage,
			draft: ticketDraft(),
			setup: func(ms *mockStorage) {
				ms.On("SetState", ctx, userID, mock.Anything).Return(errStorageFailure).Once()
			},
			wantErr: errStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := new(mockStorage)
			if tt.setup != nil {
				tt.setup(ms)
			}
			fsm := NewStateMachine(ms, nil, testutil.Logger())

			st, err := fsm.Begin(ctx, userID, tt.flow, tt.step, tt.draft)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, st)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.step, st.CurrentState)
			}
			ms.AssertExpectations(t)
		})
	}
}

func TestStateMachine_BeginRejectsMismatchedDraft(t *testing.T) {
	ms := new(mockStorage)
	fsm := NewStateMachine(ms, nil, testutil.Logger())

	_, err := fsm.Begin(context.Background(), 1, FlowInventory, StateInventoryQuantity, ticketDraft())
	require.Error(t, err)
	ms.AssertNotCalled(t, "SetState", mock.Anything, mock.Anything, mock.Anything)
}

func TestStateMachine_TransitionTo(t *testing.T) {
	ctx := context.Background()

	base := func() *UserState {
		return &UserState{
			UserID:       7,
			Flow:         FlowRegistration,
			CurrentState: StateRegistrationLanguage,
			Draft:        Draft{Registration: &RegistrationDraft{Mode: RegistrationFull}},
		}
	}

	tests := []struct {
		name      string
		to        State
		setup     func(ms *mockStorage)
		wantErr   error
		wantState State
	}{
		{
			name: "forward step",
			to:   StateRegistrationBranch,
			setup: func(ms *mockStorage) {
				ms.On("SetState", ctx, int64(7), mock.Anything).Return(nil).Once()
			},
			wantState: StateRegistrationBranch,
		},
		{
			name:      "skipping a step",
			to:        StateRegistrationSector,
			wantErr:   ErrInvalidTransition,
			wantState: StateRegistrationLanguage,
		},
		{
			name: "finishing clears the draft",
			to:   StateIdle,
			setup: func(ms *mockStorage) {
				ms.On("ClearState", ctx, int64(7)).Return(nil).Once()
			},
			wantState: StateRegistrationLanguage,
		},
		{
			name: "failed save keeps the old step",
			to:   StateRegistrationBranch,
			setup: func(ms *mockStorage) {
				ms.On("SetState", ctx, int64(7), mock.Anything).Return(errStorageFailure).Once()
			},
			wantErr:   errStorageFailure,
			wantState: StateRegistrationLanguage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := new(mockStorage)
			if tt.setup != nil {
				tt.setup(ms)
			}
			fsm := NewStateMachine(ms, nil, testutil.Logger())

			st := base()
			err := fsm.TransitionTo(ctx, st, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, st.CurrentState)
			ms.AssertExpectations(t)
		})
	}

	t.Run("nil state", func(t *testing.T) {
		fsm := NewStateMachine(new(mockStorage), nil, testutil.Logger())
		assert.ErrorIs(t, fsm.TransitionTo(ctx, nil, StateIdle), ErrStateNotFound)
	})
}

func TestStateMachine_RecordsTransitions(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	RegisterTransitionRecorder(func(flow, from, to string) {
		mu.Lock()
		seen = append(seen, flow+":"+from+">"+to)
		mu.Unlock()
	})
	t.Cleanup(func() { RegisterTransitionRecorder(nil) })

	ctx := context.Background()
	fsm := NewStateMachine(NewMemoryStorage(), nil, testutil.Logger())

	st, err := fsm.Begin(ctx, 1, FlowOrder, StateOrderChoosing, Draft{Order: &OrderDraft{}})
	require.NoError(t, err)
	require.NoError(t, fsm.TransitionTo(ctx, st, StateOrderQuantity))
	require.NoError(t, fsm.TransitionTo(ctx, st, StateOrderQuantity))
	require.NoError(t, fsm.TransitionTo(ctx, st, StateIdle))

	assert.Equal(t, []string{
		"order:idle>order.choosing",
		"order:order.choosing>order.quantity",
		"order:order.quantity>idle",
	}, seen)

	_, err = fsm.GetState(ctx, 1)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateMachine_Lock(t *testing.T) {
	ctx := context.Background()

	lockers := map[string]func(t *testing.T) Locker{
		"memory": func(*testing.T) Locker { return NewMemoryLocker() },
		"redis": func(t *testing.T) Locker {
			client, _ := testutil.NewRedis(t)
			return NewRedisLocker(client, testutil.Logger(), time.Second)
		},
	}

	for name, newLocker := range lockers {
		t.Run(name, func(t *testing.T) {
			fsm := NewStateMachine(NewMemoryStorage(), newLocker(t), testutil.Logger())

			release, err := fsm.Lock(ctx, 5)
			require.NoError(t, err)

			_, err = fsm.Lock(ctx, 5)
			assert.ErrorIs(t, err, ErrStateLocked)

			other, err := fsm.Lock(ctx, 6)
			require.NoError(t, err)
			other()

			release()
			again, err := fsm.Lock(ctx, 5)
			require.NoError(t, err)
			again()
		})
	}
}

func TestRedisLocker_ExpiresAbandonedLock(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	locker := NewRedisLocker(client, testutil.Logger(), time.Second)

	_, err := locker.Acquire(context.Background(), 9)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	release, err := locker.Acquire(context.Background(), 9)
	require.NoError(t, err)
	release()
}

func TestCleaner_Sweep(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, storage.SetState(ctx, 1, &UserState{UserID: 1, Flow: FlowFeedback, CurrentState: StateTicketMessage, Draft: ticketDraft(), UpdatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, storage.SetState(ctx, 2, &UserState{UserID: 2, Flow: FlowFeedback, CurrentState: StateTicketMessage, Draft: ticketDraft(), UpdatedAt: now.Add(-10 * time.Minute)}))

	c := NewCleaner(storage, testutil.Logger(), time.Hour, time.Minute)
	c.now = func() time.Time { return now }

	assert.Equal(t, 1, c.Sweep(ctx))

	states, err := storage.GetAllStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, int64(2), states[0].UserID)
}

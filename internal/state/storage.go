// Package state keeps the per-user conversation drafts and guards them with per-user locks.
package state

import (
	"context"
	"sync"
)

// Storage defines the persistence contract for user drafts.
type Storage interface {
	// GetState returns the current state for the specified user or ErrStateNotFound.
	GetState(ctx context.Context, userID int64) (*UserState, error)
	// SetState saves the provided state for the specified user.
	SetState(ctx context.Context, userID int64, state *UserState) error
	// ClearState removes the state for the specified user.
	ClearState(ctx context.Context, userID int64) error
	// GetAllStates returns every stored state.
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

// MemoryStorage keeps drafts in process memory. Used in tests and single-node development runs.
type MemoryStorage struct {
	mu     sync.RWMutex
	states map[int64]*UserState
}

// NewMemoryStorage creates an empty in-memory Storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{states: make(map[int64]*UserState)}
}

func (s *MemoryStorage) GetState(_ context.Context, userID int64) (*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStorage) SetState(_ context.Context, userID int64, state *UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state.Clone()
	return nil
}

func (s *MemoryStorage) ClearState(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

func (s *MemoryStorage) GetAllStates(_ context.Context) ([]*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*UserState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st.Clone())
	}
	return out, nil
}

// Package idempotency makes sure a redelivered Telegram update is handled once.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrInProgress is returned while another worker holds the key.
	ErrInProgress = errors.New("request with this key is already in progress")
	// ErrAlreadyDone is returned when the key completed earlier.
	ErrAlreadyDone = errors.New("request with this key was already handled")
)

const (
	DefaultLockTTL   = 5 * time.Minute
	DefaultResultTTL = 24 * time.Hour
)

// Operation is the work guarded by a key.
type Operation func(ctx context.Context) error

// Manager runs an operation at most once per key.
type Manager struct {
	store     Store
	log       *slog.Logger
	lockTTL   time.Duration
	resultTTL time.Duration
}

func NewManager(store Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		store:     store,
		log:       log,
		lockTTL:   DefaultLockTTL,
		resultTTL: DefaultResultTTL,
	}
}

// Execute claims key and runs fn. A failed fn releases the claim so a
// redelivery can retry; a successful one is remembered for the result TTL.
func (m *Manager) Execute(ctx context.Context, key string, fn Operation) error {
	if fn == nil {
		return errors.New("operation fn cannot be nil")
	}

	claimed, err := m.store.Claim(ctx, key, m.lockTTL)
	if err != nil {
		return err
	}
	if !claimed {
		status, err := m.store.Status(ctx, key)
		if err != nil {
			return err
		}
		if status == StatusCompleted {
			return ErrAlreadyDone
		}
		return ErrInProgress
	}

	if err := fn(ctx); err != nil {
		if releaseErr := m.store.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
			m.log.Warn("failed to release idempotency key after error", slog.String("key", key), slog.Any("error", releaseErr))
		}
		return err
	}

	return m.store.Complete(context.WithoutCancel(ctx), key, m.resultTTL)
}

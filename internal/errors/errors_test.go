package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_TripsAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(withClock(func() time.Time { return now }))

	for i := 0; i < MinRequests; i++ {
		_ = cb.Call(func() error { return errBoom })
	}
	require.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	now = now.Add(TimeoutDuration)
	for i := 0; i < HalfOpenMaxRequests; i++ {
		require.NoError(t, cb.Call(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FilteredErrorsDoNotTrip(t *testing.T) {
	errBlocked := errors.New("blocked by user")
	cb := NewCircuitBreaker(WithFailureFilter(func(err error) bool { return !errors.Is(err, errBlocked) }))

	for i := 0; i < MinRequests*2; i++ {
		assert.ErrorIs(t, cb.Call(func() error { return errBlocked }), errBlocked)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestWithRetry(t *testing.T) {
	t.Run("retryable error is retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 2 {
				return NewDatabaseError(errBoom)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("plain error is returned at once", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error { return NewDatabaseError(errBoom) })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHandler_Handle(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	msg, retry := h.Handle(context.Background(), NewConfigurationError("support_group_id"))
	assert.Equal(t, "Ошибка: целевая группа не настроена.", msg)
	assert.False(t, retry)

	msg, retry = h.Handle(context.Background(), NewDatabaseError(errBoom))
	assert.Equal(t, "Временная проблема, попробуйте позже", msg)
	assert.True(t, retry)

	msg, _ = h.Handle(context.Background(), errBoom)
	assert.Equal(t, "Произошла ошибка. Попробуйте позже", msg)

	msg, _ = h.Handle(context.Background(), nil)
	assert.Empty(t, msg)
}

func TestAppError_MatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewBusyError(errBoom))

	assert.ErrorIs(t, wrapped, &AppError{Code: CodeBusy})
	assert.ErrorIs(t, wrapped, errBoom)
	assert.NotErrorIs(t, wrapped, &AppError{Code: CodeDatabase})

	assert.Equal(t, CodeBusy, CodeOf(wrapped))
	assert.Equal(t, CodeCache, CodeOf(NewCacheError(nil)))
	assert.Equal(t, CodeUnknown, CodeOf(errBoom))
	assert.Equal(t, "cache error", NewCacheError(nil).Error())
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Retries: 5, Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	assert.Equal(t, 200*time.Millisecond, b.Delay(1))
	assert.Equal(t, 800*time.Millisecond, b.Delay(3))
	assert.Equal(t, time.Second, b.Delay(4))
	assert.Equal(t, time.Second, b.Delay(10))
}

func TestBackoff_RetryStopsAfterRetries(t *testing.T) {
	b := Backoff{Retries: 2, Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 2}

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		return NewCacheError(errBoom)
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
}

func TestCircuitBreaker_ReportsStateChanges(t *testing.T) {
	now := time.Unix(0, 0)
	var changes []string
	cb := NewCircuitBreaker(
		withClock(func() time.Time { return now }),
		WithStateChange(func(from, to State) { changes = append(changes, from.String()+">"+to.String()) }),
	)

	for i := 0; i < MinRequests; i++ {
		_ = cb.Call(func() error { return errBoom })
	}
	now = now.Add(TimeoutDuration)
	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)

	assert.Equal(t, []string{"closed>open", "open>half_open", "half_open>open"}, changes)
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)
}

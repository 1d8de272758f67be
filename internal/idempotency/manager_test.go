package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/testutil"
)

func newManager(t *testing.T) (*Manager, *RedisStore) {
	t.Helper()
	client, _ := testutil.NewRedis(t)
	store := NewRedisStore(client, testutil.Logger())
	return NewManager(store, testutil.Logger()), store
}

func TestManager_RunsOnce(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()
	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, m.Execute(ctx, "upd:1", op))
	err := m.Execute(ctx, "upd:1", op)

	assert.ErrorIs(t, err, ErrAlreadyDone)
	assert.Equal(t, 1, calls)

	status, err := store.Status(ctx, "upd:1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
}

func TestManager_FailedOperationCanRetry(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.Execute(ctx, "upd:2", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	status, err := store.Status(ctx, "upd:2")
	require.NoError(t, err)
	assert.Equal(t, StatusNone, status)

	assert.NoError(t, m.Execute(ctx, "upd:2", func(context.Context) error { return nil }))
}

func TestManager_InProgress(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "upd:3", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	err = m.Execute(ctx, "upd:3", func(context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrInProgress)
}

func TestCleaner_RemovesKeysWithoutTTL(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client, testutil.Logger())

	require.NoError(t, store.Complete(ctx, "fresh", time.Hour))
	require.NoError(t, client.Set(ctx, KeyPrefix+"stuck", string(StatusProcessing), 0).Err())

	cleaner := NewCleaner(client, testutil.Logger(), time.Minute)
	assert.Equal(t, 1, cleaner.Sweep(ctx))

	status, err := store.Status(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
}

func TestGenerateKey(t *testing.T) {
	a := GenerateKey("cb", "abc")
	assert.Equal(t, a, GenerateKey("cb", "abc"))
	assert.NotEqual(t, a, GenerateKey("cb", "abd"))
	assert.NotEqual(t, a, GenerateKey("msg", "abc"))
	assert.Regexp(t, `^cb:[0-9a-f]{32}$`, a)
}

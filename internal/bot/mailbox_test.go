package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/testutil"
)

func TestMailbox_KeepsOrderPerUser(t *testing.T) {
	mb := NewMailbox(0, testutil.Logger())

	var mu sync.Mutex
	got := map[int64][]int{}

	for i := 0; i < 20; i++ {
		for _, user := range []int64{1, 2, 3} {
			i, user := i, user
			require.NoError(t, mb.Submit(user, func() {
				mu.Lock()
				got[user] = append(got[user], i)
				mu.Unlock()
			}))
		}
	}

	require.NoError(t, mb.Close(context.Background()))
	for _, user := range []int64{1, 2, 3} {
		require.Len(t, got[user], 20)
		for i, v := range got[user] {
			assert.Equal(t, i, v)
		}
	}
	assert.Zero(t, mb.Pending())
}

func TestMailbox_OneJobAtATimePerUser(t *testing.T) {
	mb := NewMailbox(0, testutil.Logger())

	var running, maxRunning int32
	for i := 0; i < 10; i++ {
		require.NoError(t, mb.Submit(7, func() {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxRunning)
				if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
		}))
	}

	require.NoError(t, mb.Close(context.Background()))
	assert.Equal(t, int32(1), maxRunning)
}

func TestMailbox_UsersRunConcurrently(t *testing.T) {
	mb := NewMailbox(0, testutil.Logger())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, mb.Submit(1, func() { <-release }))
	require.NoError(t, mb.Submit(2, func() { close(started) }))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second user blocked behind the first")
	}
	close(release)
	require.NoError(t, mb.Close(context.Background()))
}

func TestMailbox_Full(t *testing.T) {
	mb := NewMailbox(2, testutil.Logger())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, mb.Submit(1, func() {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, mb.Submit(1, func() {}))
	require.NoError(t, mb.Submit(1, func() {}))
	assert.ErrorIs(t, mb.Submit(1, func() {}), ErrMailboxFull)

	close(release)
	require.NoError(t, mb.Close(context.Background()))
}

func TestMailbox_RecoversPanics(t *testing.T) {
	mb := NewMailbox(0, testutil.Logger())

	ran := false
	require.NoError(t, mb.Submit(1, func() { panic("boom") }))
	require.NoError(t, mb.Submit(1, func() { ran = true }))
	require.NoError(t, mb.Close(context.Background()))

	assert.True(t, ran)
}

func TestMailbox_CloseRejectsAndTimesOut(t *testing.T) {
	mb := NewMailbox(0, testutil.Logger())

	release := make(chan struct{})
	require.NoError(t, mb.Submit(1, func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, mb.Close(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, mb.Submit(1, func() {}), ErrMailboxClosed)

	close(release)
	assert.NoError(t, mb.Close(context.Background()))
}

package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrMailboxClosed is returned by Submit after Close.
	ErrMailboxClosed = errors.New("mailbox closed")
	// ErrMailboxFull is returned when a user already has too many pending updates.
	ErrMailboxFull = errors.New("mailbox full")
)

// DefaultMailboxDepth bounds the pending updates of one user.
const DefaultMailboxDepth = 32

type userQueue struct {
	jobs []func()
}

// Mailbox runs jobs one at a time per user, in submission order. Different users run concurrently.
type Mailbox struct {
	mu     sync.Mutex
	queues map[int64]*userQueue
	depth  int
	closed bool
	wg     sync.WaitGroup
	log    *slog.Logger
}

// NewMailbox creates a Mailbox; depth <= 0 uses DefaultMailboxDepth.
func NewMailbox(depth int, log *slog.Logger) *Mailbox {
	if depth <= 0 {
		depth = DefaultMailboxDepth
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mailbox{queues: make(map[int64]*userQueue), depth: depth, log: log}
}

// Submit queues job behind the pending jobs of userID.
func (m *Mailbox) Submit(userID int64, job func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMailboxClosed
	}

	q, running := m.queues[userID]
	if !running {
		q = &userQueue{}
		m.queues[userID] = q
	}
	if len(q.jobs) >= m.depth {
		return ErrMailboxFull
	}
	q.jobs = append(q.jobs, job)

	if !running {
		m.wg.Add(1)
		go m.drain(userID, q)
	}
	return nil
}

// drain runs the user's jobs until the queue is empty, then forgets the queue.
func (m *Mailbox) drain(userID int64, q *userQueue) {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		if len(q.jobs) == 0 {
			delete(m.queues, userID)
			m.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		m.mu.Unlock()

		m.run(userID, job)
	}
}

func (m *Mailbox) run(userID int64, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("mailbox job panicked", slog.Int64("user_id", userID), slog.Any("panic", r))
		}
	}()
	job()
}

// Pending returns the number of users with queued or running jobs.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}

// Close stops accepting jobs and waits for queued ones to finish or ctx to expire.
func (m *Mailbox) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

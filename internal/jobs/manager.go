package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// RemindDedupWindow drops a repeated /remind from the same chat with the same note.
const RemindDedupWindow = 30 * time.Second

// Manager enqueues tasks on the asynq queue.
type Manager struct {
	client *asynq.Client
	log    *slog.Logger
}

func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{client: asynq.NewClient(redisOpt), log: log.With("component", "jobs")}
}

func (m *Manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("jobs: enqueue %s: %w", task.Type(), err)
	}
	return info, nil
}

// EnqueueRemind queues an operator reminder whose summary goes to replyChatID.
// A duplicate inside RemindDedupWindow is accepted and dropped.
func (m *Manager) EnqueueRemind(ctx context.Context, note string, replyChatID int64) error {
	task, err := NewRemindTask(note, replyChatID)
	if err != nil {
		return err
	}

	info, err := m.Enqueue(ctx, task, asynq.Unique(RemindDedupWindow))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		m.log.DebugContext(ctx, "duplicate remind task dropped", slog.Int64("chat_id", replyChatID))
		return nil
	}
	if err != nil {
		return err
	}

	m.log.InfoContext(ctx, "remind task enqueued", slog.String("task_id", info.ID), slog.String("queue", info.Queue))
	return nil
}

func (m *Manager) Close() error {
	return m.client.Close()
}

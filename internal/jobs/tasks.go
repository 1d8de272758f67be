package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeAutoSchedule = "inventory:auto_schedule"
	TaskTypeReminder     = "inventory:reminder"
	TaskTypeRemind       = "inventory:remind"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues weights the queues served by the worker.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// RemindPayload carries an operator's reminder note and where to report the result.
type RemindPayload struct {
	Note        string `json:"note"`
	ReplyChatID int64  `json:"reply_chat_id"`
}

func NewAutoScheduleTask() *asynq.Task {
	return asynq.NewTask(TaskTypeAutoSchedule, nil, asynq.Queue(QueueCritical), asynq.MaxRetry(3))
}

func NewReminderTask() *asynq.Task {
	// A retry would remind the already delivered users a second time.
	return asynq.NewTask(TaskTypeReminder, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(0))
}

func NewRemindTask(note string, replyChatID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(RemindPayload{Note: note, ReplyChatID: replyChatID})
	if err != nil {
		return nil, fmt.Errorf("marshal remind payload: %w", err)
	}

	return asynq.NewTask(TaskTypeRemind, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// ParseRemindPayload decodes the payload of a remind task.
func ParseRemindPayload(t *asynq.Task) (RemindPayload, error) {
	var p RemindPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return RemindPayload{}, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return p, nil
}

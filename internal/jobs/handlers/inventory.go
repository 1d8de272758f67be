// Package handlers holds the asynq task handlers.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/jobs"
	"github.com/Proton-105/stockroom-bot/internal/notify"
	"github.com/Proton-105/stockroom-bot/internal/schedule"
	"github.com/Proton-105/stockroom-bot/internal/settings"
)

// Scheduler is the inventory schedule policy.
type Scheduler interface {
	CheckAutoSchedule(ctx context.Context) (schedule.Action, error)
	SendReminders(ctx context.Context) (notify.Summary, error)
	Remind(ctx context.Context, note string) (notify.Summary, error)
}

type InventoryHandler struct {
	schedule Scheduler
	sender   notify.Sender
	i18n     *i18n.Manager
	log      *slog.Logger
}

func NewInventoryHandler(s Scheduler, sender notify.Sender, m *i18n.Manager, log *slog.Logger) *InventoryHandler {
	if log == nil {
		log = slog.Default()
	}
	return &InventoryHandler{schedule: s, sender: sender, i18n: m, log: log}
}

// Register wires every inventory task into w.
func (h *InventoryHandler) Register(w jobs.Worker) {
	w.RegisterHandler(jobs.TaskTypeAutoSchedule, asynq.HandlerFunc(h.AutoSchedule))
	w.RegisterHandler(jobs.TaskTypeReminder, asynq.HandlerFunc(h.Reminder))
	w.RegisterHandler(jobs.TaskTypeRemind, asynq.HandlerFunc(h.Remind))
}

func (h *InventoryHandler) AutoSchedule(ctx context.Context, t *asynq.Task) error {
	action, err := h.schedule.CheckAutoSchedule(ctx)
	if errors.Is(err, settings.ErrMalformedDay) {
		h.log.ErrorContext(ctx, "auto schedule: malformed day settings", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err != nil {
		return err
	}

	h.log.InfoContext(ctx, "auto schedule: done", slog.String("action", string(action)))
	return nil
}

func (h *InventoryHandler) Reminder(ctx context.Context, t *asynq.Task) error {
	summary, err := h.schedule.SendReminders(ctx)
	if err != nil {
		return err
	}

	h.log.InfoContext(ctx, "reminder: done",
		slog.String("task_type", t.Type()),
		slog.Int("total", summary.Total),
		slog.Int("delivered", summary.Delivered),
	)
	return nil
}

func (h *InventoryHandler) Remind(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.ParseRemindPayload(t)
	if err != nil {
		h.log.ErrorContext(ctx, "remind: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	summary, err := h.schedule.Remind(ctx, payload.Note)
	if err != nil {
		return err
	}
	if payload.ReplyChatID == 0 {
		return nil
	}

	text := h.i18n.Default().Format("admin.remind.done", map[string]string{
		"Delivered": strconv.Itoa(summary.Delivered),
		"Total":     strconv.Itoa(summary.Total),
	})
	if _, err := h.sender.Send(ctx, payload.ReplyChatID, text, nil); err != nil {
		h.log.WarnContext(ctx, "remind: summary not delivered", slog.Int64("chat_id", payload.ReplyChatID), slog.Any("error", err))
	}
	return nil
}

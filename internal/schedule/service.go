// Package schedule implements the daily inventory window policy and the report reminders.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/notify"
	"github.com/Proton-105/stockroom-bot/internal/settings"
	"github.com/Proton-105/stockroom-bot/pkg/metrics"
)

// ReminderLookback is how far back a submitted report exempts a user from the daily reminder.
const ReminderLookback = 24 * time.Hour

// Action is the outcome of an auto-schedule check.
type Action string

const (
	ActionNone     Action = "none"
	ActionDisabled Action = "disabled"
	ActionOpened   Action = "opened"
	ActionClosed   Action = "closed"
)

// Settings is the window state store.
type Settings interface {
	InventoryOpen(ctx context.Context) (bool, error)
	SetInventoryOpen(ctx context.Context, open bool) error
	Schedule(ctx context.Context) (settings.Schedule, error)
}

// Users lists reminder recipients.
type Users interface {
	All(ctx context.Context) ([]domain.User, error)
	PendingReport(ctx context.Context, since time.Time, headOffice string) ([]domain.User, error)
}

// Admins lists the users told about automatic window changes.
type Admins interface {
	Admins() []int64
}

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Settings   Settings
	Users      Users
	Admins     Admins
	Sender     notify.Sender
	I18n       *i18n.Manager
	HeadOffice string
	Location   *time.Location
	Log        *slog.Logger
}

// Service runs the scheduled inventory jobs.
type Service struct {
	settings   Settings
	users      Users
	admins     Admins
	sender     notify.Sender
	i18n       *i18n.Manager
	headOffice string
	loc        *time.Location
	now        func() time.Time
	log        *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service. A nil location means UTC.
func NewService(deps Dependencies, opts ...Option) *Service {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Service{
		settings:   deps.Settings,
		users:      deps.Users,
		admins:     deps.Admins,
		sender:     deps.Sender,
		i18n:       deps.I18n,
		headOffice: deps.HeadOffice,
		loc:        loc,
		now:        time.Now,
		log:        log.With(slog.String("component", "schedule")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAutoSchedule opens the window on the start day and closes it on the end day.
// It is level triggered: a window already in the state the day implies is left alone.
// Malformed day settings abort the run without touching the window.
func (s *Service) CheckAutoSchedule(ctx context.Context) (Action, error) {
	sched, err := s.settings.Schedule(ctx)
	if err != nil && !errors.Is(err, settings.ErrMalformedDay) {
		return ActionNone, err
	}
	if !sched.Enabled {
		metrics.RecordSchedulerRun("auto_schedule", string(ActionDisabled))
		return ActionDisabled, nil
	}
	if err != nil {
		metrics.RecordSchedulerRun("auto_schedule", "error")
		return ActionNone, fmt.Errorf("read schedule: %w", err)
	}

	open, err := s.settings.InventoryOpen(ctx)
	if err != nil {
		return ActionNone, err
	}

	today := s.now().In(s.loc).Day()
	action := ActionNone
	switch {
	case today == sched.StartDay && !open:
		if err := s.settings.SetInventoryOpen(ctx, true); err != nil {
			return ActionNone, err
		}
		action = ActionOpened
		s.notifyAdmins(ctx, "schedule.admin_opened")
		s.announceOpening(ctx)
	case today == sched.EndDay && open:
		if err := s.settings.SetInventoryOpen(ctx, false); err != nil {
			return ActionNone, err
		}
		action = ActionClosed
		s.notifyAdmins(ctx, "schedule.admin_closed")
	}

	metrics.RecordSchedulerRun("auto_schedule", string(action))
	s.log.Info("auto schedule checked",
		slog.Int("day", today),
		slog.Int("start_day", sched.StartDay),
		slog.Int("end_day", sched.EndDay),
		slog.String("action", string(action)),
	)
	return action, nil
}

func (s *Service) notifyAdmins(ctx context.Context, key string) {
	text := s.i18n.Default().T(key)
	notify.Fanout(ctx, s.log, "schedule_admin", s.admins.Admins(), func(ctx context.Context, id int64) error {
		_, err := s.sender.Send(ctx, id, text, nil)
		return err
	})
}

func (s *Service) announceOpening(ctx context.Context) {
	users, err := s.users.All(ctx)
	if err != nil {
		s.log.Error("list users for opening notice", slog.Any("error", err))
		return
	}
	notify.Fanout(ctx, s.log, "schedule_opened", users, func(ctx context.Context, u domain.User) error {
		t := s.i18n.Translator(string(u.Language))
		_, err := s.sender.Send(ctx, u.TelegramID, t.T("schedule.opened"), nil)
		return err
	})
}

// SendReminders reminds users without a report in the trailing day. Nothing is sent while the window is closed.
func (s *Service) SendReminders(ctx context.Context) (notify.Summary, error) {
	open, err := s.settings.InventoryOpen(ctx)
	if err != nil {
		return notify.Summary{}, err
	}
	if !open {
		metrics.RecordSchedulerRun("reminder", "closed")
		return notify.Summary{}, nil
	}

	now := s.now()
	users, err := s.users.PendingReport(ctx, now.Add(-ReminderLookback), s.headOffice)
	if err != nil {
		return notify.Summary{}, fmt.Errorf("list pending users: %w", err)
	}

	date := now.In(s.loc).Format("02.01.2006")
	summary := notify.Fanout(ctx, s.log, "reminder", users, func(ctx context.Context, u domain.User) error {
		t := s.i18n.Translator(string(u.Language))
		text := t.T("reminder.header") + "\n\n" + t.Format("reminder.body", map[string]string{"Date": date})
		_, err := s.sender.Send(ctx, u.TelegramID, text, keyboard.StartInventory(t))
		return err
	})

	metrics.RecordSchedulerRun("reminder", "sent")
	s.log.Info("reminders sent", slog.Int("total", summary.Total), slog.Int("delivered", summary.Delivered))
	return summary, nil
}

// Remind sends an operator's note to every user with a button that starts the inventory flow.
func (s *Service) Remind(ctx context.Context, note string) (notify.Summary, error) {
	note = strings.TrimSpace(note)
	users, err := s.users.All(ctx)
	if err != nil {
		return notify.Summary{}, err
	}

	return notify.Fanout(ctx, s.log, "remind", users, func(ctx context.Context, u domain.User) error {
		t := s.i18n.Translator(string(u.Language))
		text := t.Format("reminder.note", map[string]string{"Note": note})
		_, err := s.sender.Send(ctx, u.TelegramID, text, keyboard.StartInventory(t))
		return err
	}), nil
}

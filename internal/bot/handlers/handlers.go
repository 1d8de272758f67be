// Package handlers turns routed updates into conversation steps and admin views.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/conversation"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/export"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/notify"
	"github.com/Proton-105/stockroom-bot/internal/settings"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
	"github.com/Proton-105/stockroom-bot/internal/user"
)

// Flows is the conversation engine.
type Flows interface {
	Start(ctx context.Context, actor conversation.Actor, kind state.FlowKind, opts conversation.StartOptions) (conversation.Reply, error)
	Advance(ctx context.Context, actor conversation.Actor, in conversation.Input) (conversation.Reply, error)
	Cancel(ctx context.Context, actor conversation.Actor) (conversation.Reply, error)
	StartTicketReply(ctx context.Context, actor conversation.Actor, ticketID uint, fromGroup bool) (conversation.Reply, error)
}

// Users reads profiles.
type Users interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
}

// Directory manages branches, items and contacts.
type Directory interface {
	Branches(ctx context.Context) ([]domain.Branch, error)
	Branch(ctx context.Context, id uint) (*domain.Branch, error)
	AddBranch(ctx context.Context, name string) (*domain.Branch, error)
	DeleteBranch(ctx context.Context, id uint) error
	Catalog(ctx context.Context) ([]domain.Item, error)
	AddItem(ctx context.Context, name string) (*domain.Item, error)
	RemoveItem(ctx context.Context, id uint) error
	Contacts(ctx context.Context) ([]domain.Contact, error)
	AddContact(ctx context.Context, department, info string) (*domain.Contact, error)
	DeleteContact(ctx context.Context, id uint) error
}

// Tickets lists the open queue.
type Tickets interface {
	ListOpen(ctx context.Context, opts ticket.ListOptions) ([]domain.Ticket, error)
	CountOpen(ctx context.Context, ticketType domain.TicketType) (int64, error)
}

// Reports reads submitted inventory reports.
type Reports interface {
	Latest(ctx context.Context, limit int) ([]domain.InventoryReport, error)
}

// Settings controls the collection window.
type Settings interface {
	InventoryOpen(ctx context.Context) (bool, error)
	SetInventoryOpen(ctx context.Context, open bool) error
	AutoMode(ctx context.Context) (bool, error)
	SetAutoMode(ctx context.Context, on bool) error
	Schedule(ctx context.Context) (settings.Schedule, error)
}

// Exporter renders the Excel report.
type Exporter interface {
	Build(ctx context.Context, days int) (*export.File, error)
}

// Reminders queues operator reminders.
type Reminders interface {
	EnqueueRemind(ctx context.Context, note string, replyChatID int64) error
}

// Access answers permission questions.
type Access interface {
	IsAdmin(userID int64) bool
	CanTriage(userID, chatID int64) bool
}

// Dependencies are the collaborators of Handlers.
type Dependencies struct {
	Flows     Flows
	Users     Users
	Directory Directory
	Tickets   Tickets
	Reports   Reports
	Settings  Settings
	Exporter  Exporter
	Reminders Reminders
	Access    Access
	Sender    notify.Sender
	I18n      *i18n.Manager
	// Location formats dates shown to admins.
	Location *time.Location
	Log      *slog.Logger
}

// Handlers implements every routed command, button and menu entry.
type Handlers struct {
	flows     Flows
	users     Users
	directory Directory
	tickets   Tickets
	reports   Reports
	settings  Settings
	exporter  Exporter
	reminders Reminders
	access    Access
	sender    notify.Sender
	i18n      *i18n.Manager
	loc       *time.Location
	log       *slog.Logger
}

// New constructs Handlers.
func New(deps Dependencies) *Handlers {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{
		flows:     deps.Flows,
		users:     deps.Users,
		directory: deps.Directory,
		tickets:   deps.Tickets,
		reports:   deps.Reports,
		settings:  deps.Settings,
		exporter:  deps.Exporter,
		reminders: deps.Reminders,
		access:    deps.Access,
		sender:    deps.Sender,
		i18n:      deps.I18n,
		loc:       loc,
		log:       log.With(slog.String("component", "handlers")),
	}
}

// translator returns the sender's language, or the default one for unknown users.
func (h *Handlers) translator(ctx context.Context, userID int64) (*domain.User, i18n.Translator) {
	u, err := h.users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			h.log.Warn("load profile", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil, h.i18n.Default()
	}
	return u, h.i18n.Translator(string(u.Language))
}

func (h *Handlers) send(ctx context.Context, u *Update, text string, markup *keyboard.Markup) error {
	_, err := h.sender.Send(ctx, u.ChatID, text, markup)
	return err
}

// render shows a conversation reply. Alerts on button presses become popups.
func (h *Handlers) render(ctx context.Context, u *Update, reply conversation.Reply) error {
	if u.IsCallback() && reply.Alert {
		u.Answer(reply.Text, true)
		return nil
	}
	if reply.Empty() {
		return nil
	}
	return h.send(ctx, u, reply.Text, reply.Markup)
}

// adminOnly rejects non-admins with a localized message.
func (h *Handlers) adminOnly(next Handler) Handler {
	return func(ctx context.Context, u *Update) error {
		if !h.access.IsAdmin(u.UserID) {
			text := h.i18n.Default().T("errors.forbidden")
			if u.IsCallback() {
				u.Answer(text, true)
				return nil
			}
			return h.send(ctx, u, text, nil)
		}
		return next(ctx, u)
	}
}

// PrivateOnly drops updates from group chats.
func PrivateOnly(next Handler) Handler {
	return func(ctx context.Context, u *Update) error {
		if !u.Private {
			return nil
		}
		return next(ctx, u)
	}
}

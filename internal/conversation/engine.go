// Package conversation drives the multi-step flows of staff and operators.
//
// Every Start, Advance and Cancel runs under the per-user state lock, so the draft a step
// reads always reflects the previous step of the same user. Side effects that fan out to
// many recipients run after the lock is released.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	apperrors "github.com/Proton-105/stockroom-bot/internal/errors"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/notify"
	"github.com/Proton-105/stockroom-bot/internal/report"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
	"github.com/Proton-105/stockroom-bot/internal/user"
	"github.com/Proton-105/stockroom-bot/pkg/metrics"
)

var (
	// ErrNoActiveFlow is returned by Advance when the user is idle.
	ErrNoActiveFlow = errors.New("no active flow")
	// ErrUnknownFlow is returned for flow kinds the engine cannot start.
	ErrUnknownFlow = errors.New("unknown flow")
)

// Actor identifies who sent an update and where to.
type Actor struct {
	UserID      int64
	ChatID      int64
	DisplayName string
}

// Input is one inbound message or button press.
type Input struct {
	Text     string
	Caption  string
	HasMedia bool
	// Choice holds callback data of a pressed inline button.
	Choice string
	// Message references the inbound message so it can be copied.
	Message notify.MessageRef
}

// IsChoice reports whether the input is a button press.
func (in Input) IsChoice() bool { return in.Choice != "" }

// Reason explains why a step did not go ahead.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonInvalidInput  Reason = "invalid_input"
	ReasonNotRegistered Reason = "not_registered"
	ReasonNoBranch      Reason = "no_branch"
	ReasonHeadOffice    Reason = "head_office"
	ReasonWindowClosed  Reason = "window_closed"
	ReasonEmptyCatalog  Reason = "empty_catalog"
	ReasonEmptyCart     Reason = "empty_cart"
	ReasonNotConfigured Reason = "not_configured"
	ReasonNotFound      Reason = "not_found"
	ReasonAlreadyClosed Reason = "already_closed"
	ReasonDuplicate     Reason = "duplicate"
	ReasonForbidden     Reason = "forbidden"
	ReasonNoBranches    Reason = "no_branches"
	ReasonNoRecipients  Reason = "no_recipients"
	ReasonExpired       Reason = "expired"
	ReasonFlowActive    Reason = "flow_active"
)

// Reply is what the actor sees next. Rejections carry a Reason and leave the state unchanged.
type Reply struct {
	Text     string
	Markup   *keyboard.Markup
	Rejected Reason
	// Done is set when the step finished the flow.
	Done bool
	// Alert asks the transport to show the text as a popup answer to a button press.
	Alert bool
}

// Empty reports whether there is nothing to show.
func (r Reply) Empty() bool {
	return r.Text == "" && r.Markup == nil
}

// StartOptions parameterize flow entry.
type StartOptions struct {
	// Mode narrows registration.
	Mode state.RegistrationMode
	// EditID selects the branch, item or contact to edit; zero adds a new one.
	EditID uint
	// Day limits schedule configuration to one day.
	Day ScheduleDay
}

// ScheduleDay selects which collection window bound is configured.
type ScheduleDay string

const (
	ScheduleBoth  ScheduleDay = ""
	ScheduleStart ScheduleDay = "start"
	ScheduleEnd   ScheduleDay = "end"
)

// KeepCurrent is typed into edit flows to keep a field unchanged.
const KeepCurrent = "-"

// MediaPlaceholder is stored as ticket body for messages with neither text nor caption.
const MediaPlaceholder = "[Media]"

// Users is the user registry.
type Users interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
	SaveProfile(ctx context.Context, userID int64, lang domain.Language, branchID *uint, sector domain.Sector) error
	All(ctx context.Context) ([]domain.User, error)
	ByBranch(ctx context.Context, branchID uint) ([]domain.User, error)
}

// Directory holds branches, items and contacts.
type Directory interface {
	Branches(ctx context.Context) ([]domain.Branch, error)
	Branch(ctx context.Context, id uint) (*domain.Branch, error)
	IsHeadOffice(b *domain.Branch) bool
	Catalog(ctx context.Context) ([]domain.Item, error)
	ActiveItem(ctx context.Context, id uint) (*domain.Item, error)
	AddBranch(ctx context.Context, name string) (*domain.Branch, error)
	RenameBranch(ctx context.Context, id uint, name string) error
	AddItem(ctx context.Context, name string) (*domain.Item, error)
	RenameItem(ctx context.Context, id uint, name string) error
	Contact(ctx context.Context, id uint) (*domain.Contact, error)
	AddContact(ctx context.Context, department, info string) (*domain.Contact, error)
	UpdateContact(ctx context.Context, id uint, department, info string) error
}

// Reports is the inventory record store.
type Reports interface {
	Submit(ctx context.Context, sub report.Submission) (*domain.InventoryReport, error)
}

// Tickets is the ticket subsystem.
type Tickets interface {
	Create(ctx context.Context, in ticket.NewTicket) (*domain.Ticket, error)
	Get(ctx context.Context, id uint) (*domain.Ticket, error)
	Close(ctx context.Context, id uint, reply ticket.Reply) (*domain.Ticket, error)
}

// Settings is the shared settings store.
type Settings interface {
	InventoryOpen(ctx context.Context) (bool, error)
	SetStartDay(ctx context.Context, day int) error
	SetEndDay(ctx context.Context, day int) error
}

// Access answers permission questions.
type Access interface {
	IsAdmin(userID int64) bool
	CanTriage(userID, chatID int64) bool
	SupportGroup() int64
	QuestionsGroup() int64
}

// Dependencies are the collaborators of an Engine.
type Dependencies struct {
	States    state.StateMachine
	Users     Users
	Directory Directory
	Reports   Reports
	Tickets   Tickets
	Settings  Settings
	Access    Access
	Sender    notify.Sender
	I18n      *i18n.Manager
	Log       *slog.Logger
}

// Engine runs conversation flows.
type Engine struct {
	fsm       state.StateMachine
	users     Users
	directory Directory
	reports   Reports
	tickets   Tickets
	settings  Settings
	access    Access
	sender    notify.Sender
	i18n      *i18n.Manager
	log       *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(deps Dependencies) *Engine {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		fsm:       deps.States,
		users:     deps.Users,
		directory: deps.Directory,
		reports:   deps.Reports,
		tickets:   deps.Tickets,
		settings:  deps.Settings,
		access:    deps.Access,
		sender:    deps.Sender,
		i18n:      deps.I18n,
		log:       log.With(slog.String("component", "conversation")),
	}
}

// afterFunc runs once the user lock is released; its reply replaces the locked step's reply.
type afterFunc func(ctx context.Context) Reply

func (e *Engine) withLock(ctx context.Context, userID int64, fn func(ctx context.Context) (Reply, afterFunc, error)) (Reply, error) {
	release, err := e.fsm.Lock(ctx, userID)
	if err != nil {
		if errors.Is(err, state.ErrStateLocked) {
			return Reply{}, apperrors.NewBusyError(err)
		}
		return Reply{}, fmt.Errorf("lock user %d: %w", userID, err)
	}

	reply, after, err := fn(ctx)
	release()
	if err != nil || after == nil {
		return reply, err
	}
	return after(ctx), nil
}

// Start enters flow kind for the actor, replacing any flow in progress.
func (e *Engine) Start(ctx context.Context, actor Actor, kind state.FlowKind, opts StartOptions) (Reply, error) {
	return e.withLock(ctx, actor.UserID, func(ctx context.Context) (Reply, afterFunc, error) {
		reply, err := e.start(ctx, actor, kind, opts)
		return reply, nil, err
	})
}

func (e *Engine) start(ctx context.Context, actor Actor, kind state.FlowKind, opts StartOptions) (Reply, error) {
	if isAdminFlow(kind) && !e.access.IsAdmin(actor.UserID) {
		return e.reject(kind, ReasonForbidden, e.i18n.Default().T("errors.forbidden")), nil
	}

	switch kind {
	case state.FlowRegistration:
		return e.startRegistration(ctx, actor, opts.Mode)
	case state.FlowInventory:
		return e.startInventory(ctx, actor)
	case state.FlowOrder:
		return e.startOrder(ctx, actor)
	case state.FlowFeedback, state.FlowQuestion:
		return e.startTicket(ctx, actor, kind)
	case state.FlowAdminReply:
		return e.startAdminReply(ctx, actor)
	case state.FlowAdminBranch:
		return e.startBranchEdit(ctx, actor, opts.EditID)
	case state.FlowAdminItem:
		return e.startItemEdit(ctx, actor, opts.EditID)
	case state.FlowAdminContact:
		return e.startContactEdit(ctx, actor, opts.EditID)
	case state.FlowScheduleConfig:
		return e.startSchedule(ctx, actor, opts.Day)
	case state.FlowBroadcast:
		return e.startBroadcast(ctx, actor)
	default:
		return Reply{}, fmt.Errorf("start %s: %w", kind, ErrUnknownFlow)
	}
}

func isAdminFlow(kind state.FlowKind) bool {
	switch kind {
	case state.FlowAdminReply, state.FlowAdminBranch, state.FlowAdminItem, state.FlowAdminContact,
		state.FlowScheduleConfig, state.FlowBroadcast:
		return true
	}
	return false
}

// Advance applies in to the actor's current step. It returns ErrNoActiveFlow when the actor is idle.
func (e *Engine) Advance(ctx context.Context, actor Actor, in Input) (Reply, error) {
	return e.withLock(ctx, actor.UserID, func(ctx context.Context) (Reply, afterFunc, error) {
		st, err := e.fsm.GetState(ctx, actor.UserID)
		if errors.Is(err, state.ErrStateNotFound) {
			return Reply{}, nil, ErrNoActiveFlow
		}
		if err != nil {
			return Reply{}, nil, err
		}
		if err := st.Draft.ValidateFor(st.Flow); err != nil {
			e.log.Warn("dropping malformed draft", slog.Int64("user_id", actor.UserID), slog.Any("error", err))
			reply, err := e.expire(ctx, st)
			return reply, nil, err
		}

		switch st.Flow {
		case state.FlowBroadcast:
			return e.advanceBroadcast(ctx, actor, st, in)
		case state.FlowRegistration:
			reply, err := e.advanceRegistration(ctx, actor, st, in)
			return reply, nil, err
		case state.FlowInventory:
			reply, err := e.advanceInventory(ctx, actor, st, in)
			return reply, nil, err
		case state.FlowOrder:
			reply, err := e.advanceOrder(ctx, actor, st, in)
			return reply, nil, err
		case state.FlowFeedback, state.FlowQuestion:
			reply, err := e.advanceTicket(ctx, actor, st, in)
			return reply, nil, err
		case state.FlowAdminReply, state.FlowTicketReply:
			reply, err := e.advanceReply(ctx, actor, st, in)
			return reply, nil, err
		case state.FlowAdminBranch:
			reply, err := e.advanceBranchEdit(ctx, st, in)
			return reply, nil, err
		case state.FlowAdminItem:
			reply, err := e.advanceItemEdit(ctx, st, in)
			return reply, nil, err
		case state.FlowAdminContact:
			reply, err := e.advanceContactEdit(ctx, st, in)
			return reply, nil, err
		case state.FlowScheduleConfig:
			reply, err := e.advanceSchedule(ctx, st, in)
			return reply, nil, err
		default:
			reply, err := e.expire(ctx, st)
			return reply, nil, err
		}
	})
}

// Cancel discards the actor's draft. Cancelling while idle is not an error.
func (e *Engine) Cancel(ctx context.Context, actor Actor) (Reply, error) {
	return e.withLock(ctx, actor.UserID, func(ctx context.Context) (Reply, afterFunc, error) {
		st, err := e.fsm.GetState(ctx, actor.UserID)
		if err != nil && !errors.Is(err, state.ErrStateNotFound) {
			return Reply{}, nil, err
		}

		u, t := e.actorProfile(ctx, actor)
		if st == nil {
			return Reply{Text: t.T("common.nothing_to_cancel"), Markup: e.menuFor(u, t)}, nil, nil
		}

		if err := e.fsm.ClearState(ctx, actor.UserID); err != nil {
			return Reply{}, nil, err
		}
		metrics.RecordFlowOutcome(string(st.Flow), "cancelled", "")
		e.log.Info("flow cancelled", slog.Int64("user_id", actor.UserID), slog.String("flow", string(st.Flow)))
		return Reply{Text: t.T("common.cancelled"), Markup: e.menuFor(u, t), Done: true}, nil, nil
	})
}

// Active returns the actor's flow in progress, if any.
func (e *Engine) Active(ctx context.Context, userID int64) (*state.UserState, bool, error) {
	st, err := e.fsm.GetState(ctx, userID)
	if errors.Is(err, state.ErrStateNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (e *Engine) begin(ctx context.Context, userID int64, kind state.FlowKind, step state.State, draft state.Draft) (*state.UserState, error) {
	st, err := e.fsm.Begin(ctx, userID, kind, step, draft)
	if err != nil {
		return nil, err
	}
	metrics.RecordFlowOutcome(string(kind), "started", "")
	e.log.Debug("flow started", slog.Int64("user_id", userID), slog.String("flow", string(kind)), slog.String("state", string(step)))
	return st, nil
}

func (e *Engine) finish(ctx context.Context, st *state.UserState) error {
	if err := e.fsm.TransitionTo(ctx, st, state.StateIdle); err != nil {
		return err
	}
	metrics.RecordFlowOutcome(string(st.Flow), "completed", "")
	return nil
}

// abandon ends the flow without completing it.
func (e *Engine) abandon(ctx context.Context, st *state.UserState, reason Reason) error {
	if err := e.fsm.TransitionTo(ctx, st, state.StateIdle); err != nil {
		return err
	}
	metrics.RecordFlowOutcome(string(st.Flow), "aborted", string(reason))
	return nil
}

func (e *Engine) reject(kind state.FlowKind, reason Reason, text string) Reply {
	metrics.RecordFlowOutcome(string(kind), "rejected", string(reason))
	return Reply{Text: text, Rejected: reason}
}

// retry re-prompts the current step.
func (e *Engine) retry(kind state.FlowKind, text string, markup *keyboard.Markup) Reply {
	metrics.RecordFlowOutcome(string(kind), "rejected", string(ReasonInvalidInput))
	return Reply{Text: text, Markup: markup, Rejected: ReasonInvalidInput}
}

func (e *Engine) expire(ctx context.Context, st *state.UserState) (Reply, error) {
	if err := e.abandon(ctx, st, ReasonExpired); err != nil {
		return Reply{}, err
	}
	t := e.i18n.Default()
	return Reply{Text: t.T("errors.session_expired"), Rejected: ReasonExpired, Done: true}, nil
}

// actorProfile loads the actor's profile and translator. Unknown users get the default language.
func (e *Engine) actorProfile(ctx context.Context, actor Actor) (*domain.User, i18n.Translator) {
	u, err := e.users.Get(ctx, actor.UserID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			e.log.Warn("load profile", slog.Int64("user_id", actor.UserID), slog.Any("error", err))
		}
		return nil, e.i18n.Default()
	}
	return u, e.i18n.Translator(string(u.Language))
}

func (e *Engine) translatorFor(u *domain.User) i18n.Translator {
	if u == nil {
		return e.i18n.Default()
	}
	return e.i18n.Translator(string(u.Language))
}

// menuFor returns the main menu for registered users and nothing otherwise.
func (e *Engine) menuFor(u *domain.User, t i18n.Translator) *keyboard.Markup {
	if u == nil || !u.HasBranch() {
		return keyboard.Remove()
	}
	return keyboard.MainMenu(t)
}

// branchOf resolves the user's branch. A deleted branch counts as none.
func (e *Engine) branchOf(ctx context.Context, u *domain.User) (*domain.Branch, error) {
	if u == nil || !u.HasBranch() {
		return nil, nil
	}
	b, err := e.directory.Branch(ctx, *u.BranchID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// parseCount accepts a non-negative integer written with digits only.
func parseCount(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > 9 {
		return 0, false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(text)
	return n, err == nil
}

// parseID extracts the numeric id of a callback payload like "item:5".
func parseID(s string) (uint, bool) { return keyboard.ParseID(s) }

func uitoa(n uint) string { return keyboard.FormatID(n) }

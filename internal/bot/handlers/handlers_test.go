package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/access"
	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/internal/conversation"
	"github.com/Proton-105/stockroom-bot/internal/directory"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/export"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/notify/notifytest"
	"github.com/Proton-105/stockroom-bot/internal/report"
	"github.com/Proton-105/stockroom-bot/internal/repository"
	"github.com/Proton-105/stockroom-bot/internal/settings"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/testutil"
	"github.com/Proton-105/stockroom-bot/internal/ticket"
	"github.com/Proton-105/stockroom-bot/internal/user"
	"github.com/Proton-105/stockroom-bot/pkg/config"
)

const (
	adminID      int64 = 100
	staffID      int64 = 200
	supportGroup int64 = -1001
)

type reminderMock struct {
	mock.Mock
}

func (m *reminderMock) EnqueueRemind(ctx context.Context, note string, replyChatID int64) error {
	args := m.Called(ctx, note, replyChatID)
	return args.Error(0)
}

type fixture struct {
	h         *Handlers
	engine    *conversation.Engine
	sender    *notifytest.Recorder
	users     *user.Service
	dir       *directory.Service
	tickets   *ticket.Service
	settings  *settings.Service
	reminders *reminderMock
	t         i18n.Translator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	log := testutil.Logger()
	catalog, err := i18n.Load("ru")
	require.NoError(t, err)

	users := user.NewService(repository.NewUserRepository(db, log), log)
	dir := directory.NewService(
		repository.NewBranchRepository(db),
		repository.NewItemRepository(db),
		repository.NewContactRepository(db),
		"Головной офис",
		log,
	)
	tickets := ticket.NewService(repository.NewTicketRepository(db), log)
	reports := report.NewService(repository.NewReportRepository(db), log)
	settingsSvc := settings.NewService(repository.NewSettingRepository(db), log)
	policy := access.NewPolicy(config.AdminConfig{IDs: []int64{adminID}, SupportGroupID: supportGroup})
	sender := notifytest.New()

	engine := conversation.NewEngine(conversation.Dependencies{
		States:    state.NewStateMachine(state.NewMemoryStorage(), nil, log),
		Users:     users,
		Directory: dir,
		Reports:   reports,
		Tickets:   tickets,
		Settings:  settingsSvc,
		Access:    policy,
		Sender:    sender,
		I18n:      catalog,
		Log:       log,
	})

	f := &fixture{
		engine:    engine,
		sender:    sender,
		users:     users,
		dir:       dir,
		tickets:   tickets,
		settings:  settingsSvc,
		reminders: &reminderMock{},
		t:         catalog.Default(),
	}
	f.h = New(Dependencies{
		Flows:     engine,
		Users:     users,
		Directory: dir,
		Tickets:   tickets,
		Reports:   reports,
		Settings:  settingsSvc,
		Exporter:  export.NewExporter(reports, tickets, nil, log),
		Reminders: f.reminders,
		Access:    policy,
		Sender:    sender,
		I18n:      catalog,
		Log:       log,
	})

	for _, id := range []int64{adminID, staffID} {
		_, err := users.GetOrCreate(context.Background(), &telebot.User{ID: id, FirstName: fmt.Sprint("User", id)})
		require.NoError(t, err)
	}
	return f
}

func message(from int64, text string) *Update {
	return &Update{UserID: from, ChatID: from, Private: true, FirstName: "Test", Text: text, MessageID: 1}
}

func press(from int64, data string) *Update {
	return &Update{UserID: from, ChatID: from, Private: true, FirstName: "Test", CallbackID: "cb", CallbackData: data, MessageID: 1}
}

func (f *fixture) last(t *testing.T, chatID int64) notifytest.Message {
	t.Helper()
	msgs := f.sender.To(chatID)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (f *fixture) run(t *testing.T, h Handler, u *Update) {
	t.Helper()
	require.NoError(t, h(context.Background(), u))
}

func buttonsOf(m *keyboard.Markup, unique string) []string {
	var out []string
	for _, b := range m.Buttons() {
		if b.Unique == unique {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestAdminCommands_RejectNonAdmins(t *testing.T) {
	f := newFixture(t)
	forbidden := f.t.T("errors.forbidden")

	tests := []struct {
		name string
		h    Handler
		text string
	}{
		{"admin", f.h.Admin(), "/admin"},
		{"tickets", f.h.Tickets(), "/tickets"},
		{"report", f.h.Report(), "/report"},
		{"remind", f.h.Remind(), "/remind hi"},
		{"add branch", f.h.AddBranch(), "/add_branch X"},
		{"add item", f.h.AddItem(), "/add_item X"},
		{"add contact", f.h.AddContact(), "/add_contact IT 123"},
		{"del contact", f.h.DelContact(), "/del_contact 1"},
		{"contacts admin", f.h.ContactsAdmin(), "/contacts_admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.sender.Reset()
			f.run(t, tt.h, message(staffID, tt.text))
			assert.Equal(t, forbidden, f.last(t, staffID).Text)
		})
	}

	u := press(staffID, "admin:panel")
	f.run(t, f.h.AdminButton(), u)
	answer, ok := u.Answered()
	require.True(t, ok)
	assert.Equal(t, forbidden, answer.Text)
	assert.True(t, answer.Alert)
}

func TestAddBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.run(t, f.h.AddBranch(), message(adminID, "/add_branch"))
	assert.Equal(t, f.t.T("admin.usage.add_branch"), f.last(t, adminID).Text)

	f.run(t, f.h.AddBranch(), message(adminID, "/add_branch Астана"))
	assert.Equal(t, f.t.Format("admin.branch.added", map[string]string{"Name": "Астана"}), f.last(t, adminID).Text)

	f.run(t, f.h.AddBranch(), message(adminID, "/add_branch Астана"))
	assert.Equal(t, f.t.Format("admin.duplicate", map[string]string{"Name": "Астана"}), f.last(t, adminID).Text)

	branches, err := f.dir.Branches(ctx)
	require.NoError(t, err)
	assert.Len(t, branches, 1)
}

func TestContactCommands(t *testing.T) {
	f := newFixture(t)

	f.run(t, f.h.AddContact(), message(adminID, "/add_contact Бухгалтерия"))
	assert.Equal(t, f.t.T("admin.usage.add_contact"), f.last(t, adminID).Text)

	f.run(t, f.h.AddContact(), message(adminID, "/add_contact Бухгалтерия +7 701 000 00 00"))
	contacts, err := f.dir.Contacts(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Бухгалтерия", contacts[0].Department)
	assert.Equal(t, "+7 701 000 00 00", contacts[0].Info)

	f.run(t, f.h.ContactsAdmin(), message(adminID, "/contacts_admin"))
	assert.Contains(t, f.last(t, adminID).Text, fmt.Sprintf("ID: %d | Бухгалтерия: +7 701 000 00 00", contacts[0].ID))

	f.run(t, f.h.DelContact(), message(adminID, "/del_contact abc"))
	assert.Equal(t, f.t.T("admin.contact.invalid_id"), f.last(t, adminID).Text)

	f.run(t, f.h.DelContact(), message(adminID, "/del_contact 999"))
	assert.Equal(t, f.t.T("admin.not_found"), f.last(t, adminID).Text)

	id := fmt.Sprint(contacts[0].ID)
	f.run(t, f.h.DelContact(), message(adminID, "/del_contact "+id))
	assert.Equal(t, f.t.Format("admin.contact.deleted", map[string]string{"ID": id}), f.last(t, adminID).Text)
}

func TestRemind(t *testing.T) {
	f := newFixture(t)

	f.run(t, f.h.Remind(), message(adminID, "/remind"))
	assert.Equal(t, f.t.T("admin.usage.remind"), f.last(t, adminID).Text)
	f.reminders.AssertNotCalled(t, "EnqueueRemind", mock.Anything, mock.Anything, mock.Anything)

	f.reminders.On("EnqueueRemind", mock.Anything, "Завтра до 17:00", adminID).Return(nil).Once()
	f.run(t, f.h.Remind(), message(adminID, "/remind Завтра до 17:00"))

	assert.Equal(t, f.t.T("admin.remind.queued"), f.last(t, adminID).Text)
	f.reminders.AssertExpectations(t)
}

func TestTicketQueuePagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.run(t, f.h.Tickets(), message(adminID, "/tickets"))
	assert.Equal(t, f.t.T("admin.tickets.empty"), f.last(t, adminID).Text)

	var ids []string
	for i := 0; i < TicketPageSize+2; i++ {
		tk, err := f.tickets.Create(ctx, ticket.NewTicket{
			UserID:     staffID,
			UserName:   "Staff",
			BranchName: "Астана",
			Message:    fmt.Sprintf("problem %d", i),
			Type:       domain.TicketProblem,
		})
		require.NoError(t, err)
		ids = append(ids, fmt.Sprint(tk.ID))
	}

	f.run(t, f.h.Tickets(), message(adminID, "/tickets"))
	first := f.last(t, adminID)
	assert.Equal(t, ids[:TicketPageSize], buttonsOf(first.Markup, keyboard.ActionReply))
	assert.Contains(t, buttonsOf(first.Markup, keyboard.ActionAdmin+":"+keyboard.AdminTickets), "2")

	f.run(t, f.h.AdminButton(), press(adminID, "admin:tickets:2"))
	second := f.last(t, adminID)
	assert.Equal(t, ids[TicketPageSize:], buttonsOf(second.Markup, keyboard.ActionReply))

	// pages past the end clamp to the last page
	f.run(t, f.h.AdminButton(), press(adminID, "admin:tickets:9"))
	assert.Equal(t, ids[TicketPageSize:], buttonsOf(f.last(t, adminID).Markup, keyboard.ActionReply))
}

func TestExportButton(t *testing.T) {
	f := newFixture(t)

	f.run(t, f.h.AdminButton(), press(adminID, "admin:export:7"))

	msgs := f.sender.To(adminID)
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[0].Document)
	assert.True(t, strings.HasSuffix(msgs[1].Document, ".xlsx"))
	assert.NotEmpty(t, msgs[1].Data)

	f.sender.Reset()
	u := press(adminID, "admin:export:-1")
	f.run(t, f.h.AdminButton(), u)
	assert.Zero(t, f.sender.Count())
	answer, ok := u.Answered()
	require.True(t, ok)
	assert.Equal(t, f.t.T("errors.stale"), answer.Text)
}

func TestInventoryToggles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.run(t, f.h.AdminButton(), press(adminID, "admin:window:on"))
	open, err := f.settings.InventoryOpen(ctx)
	require.NoError(t, err)
	assert.True(t, open)
	assert.Contains(t, buttonsOf(f.last(t, adminID).Markup, keyboard.ActionAdmin), "window:off")

	f.run(t, f.h.AdminButton(), press(adminID, "admin:auto:on"))
	auto, err := f.settings.AutoMode(ctx)
	require.NoError(t, err)
	assert.True(t, auto)

	f.run(t, f.h.AdminButton(), press(adminID, "admin:window:off"))
	open, err = f.settings.InventoryOpen(ctx)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestDeleteMissingBranch(t *testing.T) {
	f := newFixture(t)

	u := press(adminID, "admin:branch:del:42")
	f.run(t, f.h.AdminButton(), u)

	answer, ok := u.Answered()
	require.True(t, ok)
	assert.Equal(t, f.t.T("admin.not_found"), answer.Text)
	assert.True(t, answer.Alert)
	assert.Zero(t, f.sender.Count())
}

func TestEntityEditStartsFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.dir.AddBranch(ctx, "Караганда")
	require.NoError(t, err)

	f.run(t, f.h.AdminButton(), press(adminID, fmt.Sprintf("admin:branch:edit:%d", b.ID)))

	st, ok, err := f.engine.Active(ctx, adminID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state.FlowAdminBranch, st.Flow)
}

func TestTicketTrigger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tk, err := f.tickets.Create(ctx, ticket.NewTicket{
		UserID:   staffID,
		UserName: "Staff",
		Message:  "broken scanner",
		Type:     domain.TicketProblem,
	})
	require.NoError(t, err)

	group := &Update{UserID: staffID, ChatID: supportGroup, Text: fmt.Sprint(tk.ID)}
	f.run(t, f.h.TicketTrigger(), group)
	_, ok, err := f.engine.Active(ctx, staffID)
	require.NoError(t, err)
	assert.True(t, ok, "members of the support group may triage")

	f.sender.Reset()
	outsider := message(300, fmt.Sprint(tk.ID))
	f.run(t, f.h.TicketTrigger(), outsider)
	assert.Zero(t, f.sender.Count())

	f.run(t, f.h.TicketTrigger(), &Update{UserID: adminID, ChatID: supportGroup, Text: "9999"})
	assert.Zero(t, f.sender.Count(), "unknown ids stay silent")
}

func TestHelp(t *testing.T) {
	f := newFixture(t)

	f.run(t, f.h.Help(), message(staffID, "/help"))
	staff := f.last(t, staffID)
	assert.Equal(t, f.t.T("help.user"), staff.Text)
	assert.Nil(t, staff.Markup, "unregistered users get no menu")

	f.run(t, f.h.Help(), message(adminID, "/help"))
	assert.Contains(t, f.last(t, adminID).Text, f.t.T("help.admin"))
}

func TestStaleButtonWithoutFlow(t *testing.T) {
	f := newFixture(t)

	u := press(staffID, "branch:3")
	f.run(t, f.h.Advance(), u)

	answer, ok := u.Answered()
	require.True(t, ok)
	assert.Equal(t, f.t.T("errors.stale"), answer.Text)
	assert.False(t, answer.Alert)
}

func TestUpdateCommand(t *testing.T) {
	tests := []struct {
		text, name, args string
	}{
		{"/start", "/start", ""},
		{"/Add_Branch@stockroom_bot  Астана ", "/add_branch", "Астана"},
		{"hello", "", ""},
		{"  /remind a b", "/remind", "a b"},
	}
	for _, tt := range tests {
		name, args := (&Update{Text: tt.text}).Command()
		assert.Equal(t, tt.name, name, tt.text)
		assert.Equal(t, tt.args, args, tt.text)
	}

	name, _ := (&Update{Text: "/start", CallbackData: "x"}).Command()
	assert.Empty(t, name)
}

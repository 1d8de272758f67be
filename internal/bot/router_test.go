package bot

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/bot/handlers"
	"github.com/Proton-105/stockroom-bot/internal/state"
	"github.com/Proton-105/stockroom-bot/internal/testutil"
)

type fakeFlows struct {
	active map[int64]state.FlowKind
	err    error
}

func (f *fakeFlows) Active(_ context.Context, userID int64) (*state.UserState, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	kind, ok := f.active[userID]
	if !ok {
		return nil, false, nil
	}
	return &state.UserState{Flow: kind}, true, nil
}

// recorder returns a handler that records its name.
func recorder(calls *[]string, name string) handlers.Handler {
	return func(context.Context, *handlers.Update) error {
		*calls = append(*calls, name)
		return nil
	}
}

func newTestRouter(flows *fakeFlows, calls *[]string) *Router {
	d := NewDispatcher(flows, testutil.Logger())
	d.SetDefault(recorder(calls, "flow"))
	d.AllowInGroups(state.FlowTicketReply)

	r := NewRouter(d, testutil.Logger())
	r.RegisterCommand("/start", recorder(calls, "start"))
	r.RegisterCallback("admin", recorder(calls, "admin"))
	r.RegisterText("📞 Контакты", recorder(calls, "contacts"))
	r.RegisterPattern("ticket_id", regexp.MustCompile(`^\d+$`), recorder(calls, "ticket"))
	r.SetStaleCallback(recorder(calls, "stale"))
	r.SetDefault(recorder(calls, "default"))
	return r
}

func TestRouter_Order(t *testing.T) {
	const (
		idle   int64 = 1
		inFlow int64 = 2
	)

	tests := []struct {
		name  string
		u     handlers.Update
		want  string
		route string
	}{
		{"command beats flow", handlers.Update{UserID: inFlow, Private: true, Text: "/start"}, "start", "command:/start"},
		{"command with bot suffix", handlers.Update{UserID: idle, Private: true, Text: "/START@stockroom_bot"}, "start", "command:/start"},
		{"unknown command goes to flow", handlers.Update{UserID: inFlow, Private: true, Text: "/nope"}, "flow", "flow:inventory"},
		{"flow beats menu", handlers.Update{UserID: inFlow, Private: true, Text: "📞 Контакты"}, "flow", "flow:inventory"},
		{"menu when idle", handlers.Update{UserID: idle, Private: true, Text: "📞 Контакты"}, "contacts", "menu"},
		{"pattern when idle", handlers.Update{UserID: idle, Private: true, Text: "42"}, "ticket", "pattern:ticket_id"},
		{"default when idle", handlers.Update{UserID: idle, Private: true, Text: "hello"}, "default", "default"},
		{"registered callback", handlers.Update{UserID: inFlow, Private: true, CallbackData: "admin:panel"}, "admin", "callback:admin"},
		{"flow callback", handlers.Update{UserID: inFlow, Private: true, CallbackData: "branch:3"}, "flow", "flow:inventory"},
		{"stale callback", handlers.Update{UserID: idle, Private: true, CallbackData: "branch:3"}, "stale", "callback:stale"},
		{"private flow ignored in group", handlers.Update{UserID: inFlow, ChatID: -100, Text: "42"}, "ticket", "pattern:ticket_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			r := newTestRouter(&fakeFlows{active: map[int64]state.FlowKind{inFlow: state.FlowInventory}}, &calls)

			u := tt.u
			require.NoError(t, r.Route(context.Background(), &u))
			assert.Equal(t, []string{tt.want}, calls)
			assert.Equal(t, tt.route, u.Route)
		})
	}
}

func TestRouter_GroupFlowAllowed(t *testing.T) {
	var calls []string
	r := newTestRouter(&fakeFlows{active: map[int64]state.FlowKind{5: state.FlowTicketReply}}, &calls)

	u := handlers.Update{UserID: 5, ChatID: -100, Text: "answer text"}
	require.NoError(t, r.Route(context.Background(), &u))
	assert.Equal(t, []string{"flow"}, calls)
}

func TestRouter_FlowLookupError(t *testing.T) {
	var calls []string
	boom := errors.New("redis down")
	r := newTestRouter(&fakeFlows{err: boom}, &calls)

	u := handlers.Update{UserID: 1, Private: true, Text: "hello"}
	assert.ErrorIs(t, r.Route(context.Background(), &u), boom)
	assert.Empty(t, calls)
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	var calls []string
	r := newTestRouter(&fakeFlows{}, &calls)

	mw := func(name string) handlers.Middleware {
		return func(next handlers.Handler) handlers.Handler {
			return func(ctx context.Context, u *handlers.Update) error {
				calls = append(calls, name)
				return next(ctx, u)
			}
		}
	}
	r.Use(mw("outer"))
	r.Use(mw("inner"))

	u := handlers.Update{UserID: 1, Private: true, Text: "/start"}
	require.NoError(t, r.Route(context.Background(), &u))
	assert.Equal(t, []string{"outer", "inner", "start"}, calls)
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/idempotency"
	"github.com/Proton-105/stockroom-bot/internal/ratelimit"
	"github.com/Proton-105/stockroom-bot/internal/testutil"
	"github.com/Proton-105/stockroom-bot/pkg/config"
	"github.com/Proton-105/stockroom-bot/pkg/logger"
)

func newBot(t *testing.T) *telebot.Bot {
	t.Helper()
	tb, err := telebot.NewBot(telebot.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return tb
}

func textUpdate(id int, userID int64) telebot.Update {
	user := &telebot.User{ID: userID}
	return telebot.Update{
		ID: id,
		Message: &telebot.Message{
			ID:     id,
			Sender: user,
			Chat:   &telebot.Chat{ID: userID, Type: telebot.ChatPrivate},
			Text:   "hi",
		},
	}
}

type notices struct{ texts []string }

func (n *notices) notify(_ telebot.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

func newRateLimit(t *testing.T, cfg config.RateLimitConfig, n *notices) *RateLimitMiddleware {
	t.Helper()
	rules, err := ratelimit.NewRules(cfg)
	require.NoError(t, err)

	message := func(context.Context, int64) string { return "slow down" }
	return NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(), rules, message, testutil.Logger(), WithNotifier(n.notify))
}

func TestRateLimit_PerUser(t *testing.T) {
	tb := newBot(t)
	n := &notices{}
	m := newRateLimit(t, config.RateLimitConfig{
		Enabled: true,
		PerUser: config.RateLimitRule{Limit: 2, Window: "1m"},
	}, n)

	handled := 0
	h := m.Handle(func(telebot.Context) error {
		handled++
		return nil
	})

	for i := 1; i <= 5; i++ {
		require.NoError(t, h(tb.NewContext(textUpdate(i, 10))))
	}
	require.NoError(t, h(tb.NewContext(textUpdate(6, 11))))

	assert.Equal(t, 3, handled)
	assert.Equal(t, []string{"slow down"}, n.texts)
}

func TestRateLimit_Whitelist(t *testing.T) {
	tb := newBot(t)
	n := &notices{}
	m := newRateLimit(t, config.RateLimitConfig{
		Enabled:   true,
		PerUser:   config.RateLimitRule{Limit: 1, Window: "1m"},
		Whitelist: []int64{10},
	}, n)

	handled := 0
	h := m.Handle(func(telebot.Context) error {
		handled++
		return nil
	})
	for i := 1; i <= 3; i++ {
		require.NoError(t, h(tb.NewContext(textUpdate(i, 10))))
	}

	assert.Equal(t, 3, handled)
	assert.Empty(t, n.texts)
}

func TestRateLimit_Global(t *testing.T) {
	tb := newBot(t)
	n := &notices{}
	m := newRateLimit(t, config.RateLimitConfig{
		Enabled: true,
		PerUser: config.RateLimitRule{Limit: 10, Window: "1m"},
		Global:  config.RateLimitRule{Limit: 2, Window: "1m"},
	}, n)

	handled := 0
	h := m.Handle(func(telebot.Context) error {
		handled++
		return nil
	})
	for i := 1; i <= 3; i++ {
		require.NoError(t, h(tb.NewContext(textUpdate(i, int64(100+i)))))
	}

	assert.Equal(t, 2, handled)
	assert.Len(t, n.texts, 1)
}

func TestRateLimit_Disabled(t *testing.T) {
	tb := newBot(t)
	n := &notices{}
	m := newRateLimit(t, config.RateLimitConfig{
		PerUser: config.RateLimitRule{Limit: 1, Window: "1m"},
	}, n)

	handled := 0
	h := m.Handle(func(telebot.Context) error {
		handled++
		return nil
	})
	for i := 1; i <= 3; i++ {
		require.NoError(t, h(tb.NewContext(textUpdate(i, 10))))
	}
	assert.Equal(t, 3, handled)
}

func TestRateLimit_NotifiesAgainAfterWindow(t *testing.T) {
	tb := newBot(t)
	n := &notices{}
	m := newRateLimit(t, config.RateLimitConfig{
		Enabled: true,
		PerUser: config.RateLimitRule{Limit: 1, Window: "1m"},
	}, n)
	now := time.Now()
	m.now = func() time.Time { return now }

	h := m.Handle(func(telebot.Context) error { return nil })
	for i := 1; i <= 3; i++ {
		require.NoError(t, h(tb.NewContext(textUpdate(i, 10))))
	}
	require.Len(t, n.texts, 1)

	now = now.Add(2 * time.Minute)
	assert.True(t, m.shouldNotify(10, now.Add(time.Minute)))
}

func newIdempotency(t *testing.T) *idempotency.Manager {
	t.Helper()
	client, _ := testutil.NewRedis(t)
	return idempotency.NewManager(idempotency.NewRedisStore(client, testutil.Logger()), testutil.Logger())
}

func TestIdempotency_SkipsRedeliveredUpdate(t *testing.T) {
	tb := newBot(t)
	mw := Idempotency(newIdempotency(t), testutil.Logger())

	handled := 0
	h := mw(func(telebot.Context) error {
		handled++
		return nil
	})

	require.NoError(t, h(tb.NewContext(textUpdate(42, 1))))
	require.NoError(t, h(tb.NewContext(textUpdate(42, 1))))
	require.NoError(t, h(tb.NewContext(textUpdate(43, 1))))

	assert.Equal(t, 2, handled)
}

func TestIdempotency_RetriesAfterError(t *testing.T) {
	tb := newBot(t)
	mw := Idempotency(newIdempotency(t), testutil.Logger())

	boom := errors.New("mailbox full")
	attempts := 0
	h := mw(func(telebot.Context) error {
		attempts++
		if attempts == 1 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, h(tb.NewContext(textUpdate(7, 1))), boom)
	assert.NoError(t, h(tb.NewContext(textUpdate(7, 1))))
	assert.Equal(t, 2, attempts)
}

func TestUpdateKey(t *testing.T) {
	tb := newBot(t)

	tests := []struct {
		name   string
		update telebot.Update
		empty  bool
	}{
		{name: "update id", update: textUpdate(5, 1)},
		{name: "callback id", update: telebot.Update{Callback: &telebot.Callback{ID: "cb1", Sender: &telebot.User{ID: 1}}}},
		{name: "message id", update: telebot.Update{Message: &telebot.Message{ID: 3, Chat: &telebot.Chat{ID: 1}}}},
		{name: "nothing", update: telebot.Update{}, empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := UpdateKey(tb.NewContext(tt.update))
			if tt.empty {
				assert.Empty(t, key)
				return
			}
			assert.NotEmpty(t, key)
		})
	}
}

func TestRequestLogger_PropagatesCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(testutil.Logger()))

	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = logger.CorrelationIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get(CorrelationHeader))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))
	assert.Equal(t, seen, rec.Header().Get(CorrelationHeader))
}

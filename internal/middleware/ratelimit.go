package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/ratelimit"
)

// LimitedMessage returns the text shown to a throttled user.
type LimitedMessage func(ctx context.Context, userID int64) string

// Notifier delivers the throttling notice.
type Notifier func(c telebot.Context, text string) error

// RateLimitMiddleware drops updates from senders over their limit. A throttled
// sender is told once per window.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	message LimitedMessage
	notify  Notifier
	log     *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	notified map[int64]time.Time
}

// RateLimitOption customizes RateLimitMiddleware.
type RateLimitOption func(*RateLimitMiddleware)

// WithNotifier replaces the default reply used for throttled senders.
func WithNotifier(n Notifier) RateLimitOption {
	return func(m *RateLimitMiddleware) { m.notify = n }
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, message LimitedMessage, log *slog.Logger, opts ...RateLimitOption) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	m := &RateLimitMiddleware{
		limiter:  limiter,
		rules:    rules,
		message:  message,
		notify:   replyLimited,
		log:      log,
		now:      time.Now,
		notified: make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle returns a telebot middleware that enforces the per-user and global limits.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || !m.rules.Enabled() {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil || m.rules.IsWhitelisted(sender.ID) {
			return next(c)
		}

		ctx := context.Background()
		result, ok := m.check(ctx, ratelimit.UserKey(sender.ID), m.rules.PerUser())
		if ok {
			result, ok = m.check(ctx, ratelimit.GlobalKey, m.rules.Global())
		}
		if ok {
			return next(c)
		}

		m.log.Warn("rate limit exceeded",
			slog.Int64("user_id", sender.ID),
			slog.Duration("retry_after", result.RetryAfter(m.now())),
		)
		if !m.shouldNotify(sender.ID, result.ResetAt) {
			return nil
		}

		text := "⏳"
		if m.message != nil {
			text = m.message(ctx, sender.ID)
		}
		return m.notify(c, text)
	}
}

// check fails open on limiter errors.
func (m *RateLimitMiddleware) check(ctx context.Context, key string, rule ratelimit.Rule) (*ratelimit.Result, bool) {
	if !rule.Enabled() {
		return nil, true
	}
	result, err := m.limiter.Check(ctx, key, rule)
	if err != nil {
		m.log.Warn("rate limiter error", slog.String("key", key), slog.Any("error", err))
		return nil, true
	}
	return result, result.Allowed
}

func (m *RateLimitMiddleware) shouldNotify(userID int64, until time.Time) bool {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.notified[userID]; ok && now.Before(prev) {
		return false
	}
	for id, t := range m.notified {
		if !now.Before(t) {
			delete(m.notified, id)
		}
	}
	m.notified[userID] = until
	return true
}

func replyLimited(c telebot.Context, text string) error {
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text})
	}
	return c.Send(text)
}

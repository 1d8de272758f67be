// Package bot connects Telegram to the routed handlers.
package bot

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/bot/handlers"
	errors "github.com/Proton-105/stockroom-bot/internal/errors"
	"github.com/Proton-105/stockroom-bot/internal/i18n"
	"github.com/Proton-105/stockroom-bot/internal/idempotency"
	"github.com/Proton-105/stockroom-bot/internal/middleware"
	"github.com/Proton-105/stockroom-bot/internal/notify"
	"github.com/Proton-105/stockroom-bot/pkg/config"
)

// updateTimeout bounds the handling of one update.
const updateTimeout = 30 * time.Second

// Options are the collaborators of Bot.
type Options struct {
	Handlers     *handlers.Handlers
	Flows        ActiveFlows
	Users        UserRegistry
	ErrHandler   *errors.Handler
	Sender       notify.Sender
	I18n         *i18n.Manager
	RateLimit    *middleware.RateLimitMiddleware
	Idempotency  *idempotency.Manager
	MailboxDepth int
	Log          *slog.Logger
}

// Bot wraps telebot.Bot with the router and the per-user mailbox.
type Bot struct {
	telebot *telebot.Bot
	router  *Router
	mailbox *Mailbox
	log     *slog.Logger
}

// NewTelebot builds the Telegram client for the configured transport.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token:       cfg.Token,
		Synchronous: true,
		OnError: func(err error, c telebot.Context) {
			attrs := []any{slog.Any("error", err)}
			if c != nil {
				attrs = append(attrs, slog.Int("update_id", c.Update().ID))
			}
			log.Error("telegram update failed", attrs...)
		},
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{Timeout: cfg.Timeout}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// New wires the router and middlewares onto tb.
func New(tb *telebot.Bot, opts Options) *Bot {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	router := NewRoutes(opts.Handlers, opts.Flows, opts.I18n, log)
	router.Use(RecoveryMiddleware(log, opts.ErrHandler, opts.Sender))
	router.Use(LoggingMiddleware(log))
	router.Use(ErrorHandlingMiddleware(log, opts.ErrHandler, opts.Sender))
	router.Use(AuthMiddleware(opts.Users, log))
	router.Use(LastActiveMiddleware(opts.Users, log))
	router.Use(middleware.Metrics)

	b := &Bot{
		telebot: tb,
		router:  router,
		mailbox: NewMailbox(opts.MailboxDepth, log),
		log:     log,
	}

	if opts.Idempotency != nil {
		tb.Use(middleware.Idempotency(opts.Idempotency, log))
	}
	if opts.RateLimit != nil {
		tb.Use(opts.RateLimit.Handle)
	}

	tb.Handle(telebot.OnText, b.enqueue)
	tb.Handle(telebot.OnMedia, b.enqueue)
	tb.Handle(telebot.OnCallback, b.enqueue)

	return b
}

// Start runs the telegram bot event loop. It blocks until Stop.
func (b *Bot) Start() {
	b.log.Info("telegram bot started", slog.String("username", b.telebot.Me.Username))
	b.telebot.Start()
}

// Stop stops polling and waits for queued updates to finish.
func (b *Bot) Stop(ctx context.Context) error {
	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
	return b.mailbox.Close(ctx)
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// enqueue hands the update to the sender's mailbox so each user is served in order.
func (b *Bot) enqueue(c telebot.Context) error {
	u := handlers.FromContext(c)
	if u == nil {
		return nil
	}
	cb := c.Callback()

	err := b.mailbox.Submit(u.UserID, func() {
		b.process(u, cb)
	})
	if stdErrors.Is(err, ErrMailboxFull) {
		b.log.Warn("mailbox full, update dropped", slog.Int64("user_id", u.UserID), slog.Int("update_id", u.ID))
	}
	return err
}

func (b *Bot) process(u *handlers.Update, cb *telebot.Callback) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if err := b.router.Route(ctx, u); err != nil {
		b.log.ErrorContext(ctx, "route update", slog.Int64("user_id", u.UserID), slog.Any("error", err))
	}

	if cb == nil {
		return
	}
	// Telegram keeps the button spinner until the press is answered.
	resp := &telebot.CallbackResponse{}
	if answer, ok := u.Answered(); ok {
		resp.Text = answer.Text
		resp.ShowAlert = answer.Alert
	}
	if err := b.telebot.Respond(cb, resp); err != nil {
		b.log.Debug("answer callback", slog.Int64("user_id", u.UserID), slog.Any("error", err))
	}
}

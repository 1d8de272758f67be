package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	apperrors "github.com/Proton-105/stockroom-bot/internal/errors"
	"github.com/Proton-105/stockroom-bot/pkg/metrics"
)

// API is the subset of *telebot.Bot used for delivery.
type API interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Copy(to telebot.Recipient, msg telebot.Editable, opts ...interface{}) (*telebot.Message, error)
}

// TelegramSender delivers messages through the Bot API behind a circuit breaker.
type TelegramSender struct {
	api     API
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

// NewTelegramSender wraps api. Errors caused by one unreachable recipient do not open the breaker.
func NewTelegramSender(api API, log *slog.Logger) *TelegramSender {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "telegram_sender")
	breaker := apperrors.NewCircuitBreaker(
		apperrors.WithFailureFilter(func(err error) bool { return !IsUnreachable(err) }),
		apperrors.WithStateChange(func(from, to apperrors.State) {
			log.Warn("telegram circuit breaker changed state", slog.String("from", from.String()), slog.String("to", to.String()))
			metrics.SetBreakerState("telegram", int(to))
		}),
	)
	return &TelegramSender{api: api, breaker: breaker, log: log}
}

// IsUnreachable reports errors that concern a single recipient rather than the transport.
func IsUnreachable(err error) bool {
	for _, target := range []error{
		telebot.ErrBlockedByUser,
		telebot.ErrNotStartedByUser,
		telebot.ErrUserIsDeactivated,
		telebot.ErrChatNotFound,
		telebot.ErrKickedFromGroup,
		telebot.ErrKickedFromSuperGroup,
		telebot.ErrNoRightsToSend,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func options(markup *keyboard.Markup) []interface{} {
	opts := []interface{}{telebot.NoPreview}
	if rendered := keyboard.Render(markup); rendered != nil {
		opts = append(opts, rendered)
	}
	return opts
}

func (s *TelegramSender) call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.breaker.Call(fn)
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string, markup *keyboard.Markup) (MessageRef, error) {
	var ref MessageRef
	err := s.call(ctx, func() error {
		msg, err := s.api.Send(telebot.ChatID(chatID), text, options(markup)...)
		if err != nil {
			return err
		}
		ref = MessageRef{ChatID: chatID, MessageID: msg.ID}
		return nil
	})
	return ref, err
}

func (s *TelegramSender) Copy(ctx context.Context, from MessageRef, chatID int64, markup *keyboard.Markup) error {
	stored := telebot.StoredMessage{MessageID: strconv.Itoa(from.MessageID), ChatID: from.ChatID}
	return s.call(ctx, func() error {
		_, err := s.api.Copy(telebot.ChatID(chatID), stored, options(markup)...)
		return err
	})
}

func (s *TelegramSender) SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	doc := &telebot.Document{
		File:     telebot.FromReader(bytes.NewReader(data)),
		FileName: name,
		Caption:  caption,
		MIME:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
	return s.call(ctx, func() error {
		_, err := s.api.Send(telebot.ChatID(chatID), doc)
		return err
	})
}

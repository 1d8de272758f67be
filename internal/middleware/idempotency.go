package middleware

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/idempotency"
)

// Idempotency skips Telegram updates that were already accepted, e.g. after a
// webhook retry or a poller restart.
func Idempotency(manager *idempotency.Manager, log *slog.Logger) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		if manager == nil {
			return next
		}

		return func(c telebot.Context) error {
			key := UpdateKey(c)
			if key == "" {
				return next(c)
			}

			err := manager.Execute(context.Background(), key, func(context.Context) error {
				return next(c)
			})
			switch {
			case errors.Is(err, idempotency.ErrAlreadyDone), errors.Is(err, idempotency.ErrInProgress):
				log.Debug("duplicate update skipped", slog.String("key", key))
				return nil
			case err != nil:
				return err
			}
			return nil
		}
	}
}

// UpdateKey identifies an update for deduplication. It returns "" when the
// update carries nothing stable to key on.
func UpdateKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if id := c.Update().ID; id != 0 {
		return idempotency.GenerateKey("upd", id)
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return idempotency.GenerateKey("cb", cb.ID)
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 {
		var chatID int64
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		return idempotency.GenerateKey("msg", chatID, msg.ID)
	}

	return ""
}

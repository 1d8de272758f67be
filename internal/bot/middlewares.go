package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/bot/handlers"
	"github.com/Proton-105/stockroom-bot/internal/domain"
	errors "github.com/Proton-105/stockroom-bot/internal/errors"
	"github.com/Proton-105/stockroom-bot/internal/notify"
	"github.com/Proton-105/stockroom-bot/pkg/logger"
)

const defaultErrorMessage = "Произошла ошибка. Попробуйте позже"

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, sender notify.Sender) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, u *handlers.Update) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.ErrorContext(ctx, "panic recovered in handler",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
						slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
					)

					userMsg := defaultErrorMessage
					if errHandler != nil {
						appErr := errors.NewDatabaseError(fmt.Errorf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(ctx, appErr); msg != "" {
							userMsg = msg
						}
					}
					notifyUser(ctx, log, sender, u, userMsg)
					err = nil
				}
			}()

			return next(ctx, u)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(log *slog.Logger, errHandler *errors.Handler, sender notify.Sender) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, u *handlers.Update) error {
			err := next(ctx, u)
			if err == nil {
				return nil
			}

			userMsg := defaultErrorMessage
			if errHandler != nil {
				if msg, _ := errHandler.Handle(ctx, err); msg != "" {
					userMsg = msg
				}
			}
			notifyUser(ctx, log, sender, u, userMsg)
			return nil
		}
	}
}

// notifyUser shows msg as a popup for button presses and as a message otherwise.
func notifyUser(ctx context.Context, log *slog.Logger, sender notify.Sender, u *handlers.Update, msg string) {
	if u == nil {
		return
	}
	if u.IsCallback() {
		u.Answer(msg, true)
		return
	}
	if sender == nil {
		return
	}
	if _, err := sender.Send(ctx, u.ChatID, msg, nil); err != nil {
		log.Error("failed to notify user about error", slog.Int64("user_id", u.UserID), slog.Any("error", err))
	}
}

// LoggingMiddleware assigns a correlation id and logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, u *handlers.Update) error {
			ctx, correlationID := logger.WithCorrelationID(ctx)
			start := time.Now()

			action := u.Text
			if u.IsCallback() {
				action = u.CallbackData
			}

			log.DebugContext(ctx, "handling update",
				slog.String("correlation_id", correlationID),
				slog.Int64("user_id", u.UserID),
				slog.Int64("chat_id", u.ChatID),
				slog.String("action", truncate(action, 64)),
			)
			err := next(ctx, u)
			log.InfoContext(ctx, "handled update",
				slog.String("correlation_id", correlationID),
				slog.Int64("user_id", u.UserID),
				slog.String("route", u.Route),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// UserRegistry creates users on first contact.
type UserRegistry interface {
	GetOrCreate(ctx context.Context, telegramUser *telebot.User) (*domain.User, error)
	UpdateLastActive(ctx context.Context, userID int64) error
}

// AuthMiddleware ensures that each private update is associated with a user record.
// Group members are not registered as staff.
func AuthMiddleware(users UserRegistry, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, u *handlers.Update) error {
			if users == nil || !u.Private {
				return next(ctx, u)
			}

			if _, err := users.GetOrCreate(ctx, u.TelegramUser()); err != nil {
				log.ErrorContext(ctx, "failed to resolve user", slog.Int64("user_id", u.UserID), slog.Any("error", err))
				return errors.NewDatabaseError(err)
			}

			return next(ctx, u)
		}
	}
}

// LastActiveMiddleware records user activity timestamps without blocking request flow.
func LastActiveMiddleware(users UserRegistry, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, u *handlers.Update) error {
			if users != nil && u.Private {
				go func(id int64) {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := users.UpdateLastActive(ctx, id); err != nil {
						log.Debug("failed to update last activity", slog.Int64("user_id", id), slog.Any("error", err))
					}
				}(u.UserID)
			}

			return next(ctx, u)
		}
	}
}

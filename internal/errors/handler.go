package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/stockroom-bot/pkg/logger"
	"github.com/Proton-105/stockroom-bot/pkg/metrics"
)

// DefaultUserMessage is shown for errors that carry no message of their own.
const DefaultUserMessage = "Произошла ошибка. Попробуйте позже"

// Handler logs errors at the dispatch boundary and picks the message shown to the user.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sentryEnabled: sentryEnabled}
}

// Handle reports err and returns the user message and whether retrying may help.
// Errors that are not AppErrors count as high severity.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	appErr := classify(err)

	attrs := []any{
		slog.String("code", appErr.Code),
		slog.String("message", err.Error()),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	level := slog.LevelError
	if appErr.Severity == SeverityLow {
		level = slog.LevelWarn
	}
	h.log.Log(ctx, level, "application error", attrs...)
	metrics.RecordError(appErr.Code, string(appErr.Severity))

	if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
		h.sendToSentry(ctx, err, appErr)
	}

	msg := appErr.UserMessage
	if msg == "" {
		msg = DefaultUserMessage
	}
	return msg, appErr.Retryable
}

func classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}
	return &AppError{Code: CodeUnknown, Message: err.Error(), Severity: SeverityHigh, cause: err}
}

func (h *Handler) sendToSentry(ctx context.Context, err error, appErr *AppError) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		scope.SetTag("code", appErr.Code)
		scope.SetTag("severity", string(appErr.Severity))
		hub.CaptureException(err)
	})
}

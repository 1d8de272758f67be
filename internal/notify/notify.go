// Package notify delivers outbound messages and fans them out to many recipients.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/stockroom-bot/internal/bot/keyboard"
	"github.com/Proton-105/stockroom-bot/pkg/metrics"
)

// MessageRef points at an existing message that can be copied.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// IsZero reports whether the reference is unset.
func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 && r.MessageID == 0
}

// Sender is the outbound messaging transport. Each call may fail for a single recipient.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, markup *keyboard.Markup) (MessageRef, error)
	// Copy re-sends the referenced message unmodified to chatID.
	Copy(ctx context.Context, from MessageRef, chatID int64, markup *keyboard.Markup) error
	SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error
}

// Summary counts the outcome of a fanout.
type Summary struct {
	Total     int
	Delivered int
	Failed    int
}

// Fanout calls send for every recipient in order. Failures are logged and counted; they never stop the batch.
// A cancelled context marks the remaining recipients as failed.
func Fanout[T any](ctx context.Context, log *slog.Logger, kind string, recipients []T, send func(context.Context, T) error) Summary {
	if log == nil {
		log = slog.Default()
	}

	started := time.Now()
	sum := Summary{Total: len(recipients)}
	for i, r := range recipients {
		if err := ctx.Err(); err != nil {
			sum.Failed += len(recipients) - i
			log.Warn("fanout interrupted", slog.String("kind", kind), slog.Int("remaining", len(recipients)-i), slog.Any("error", err))
			break
		}

		if err := send(ctx, r); err != nil {
			sum.Failed++
			metrics.RecordDelivery(kind, false)
			log.Warn("delivery failed", slog.String("kind", kind), slog.Any("recipient", r), slog.Any("error", err))
			continue
		}
		sum.Delivered++
		metrics.RecordDelivery(kind, true)
	}

	log.Info("fanout finished",
		slog.String("kind", kind),
		slog.Int("total", sum.Total),
		slog.Int("delivered", sum.Delivered),
		slog.Int("failed", sum.Failed),
		slog.Duration("duration", time.Since(started)),
	)
	return sum
}

package logger

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const masked = "***"

// Key fragments that mark an attribute as secret, matched case-insensitively anywhere in the key.
var sensitiveKeyParts = []string{"password", "token", "secret", "api_key", "authorization", "dsn"}

// botTokenPattern matches a Telegram bot token, which telebot embeds in request URLs and therefore in errors.
var botTokenPattern = regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`)

// MaskingHandler hides secrets before the record reaches next.
type MaskingHandler struct {
	next slog.Handler
}

func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MaskingHandler{next: h.next.WithAttrs(maskAll(attrs))}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, scrub(record.Message), record.PC)
	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	out.AddAttrs(maskAll(attrs)...)
	return h.next.Handle(ctx, out)
}

func maskAll(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = mask(a)
	}
	return out
}

func mask(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, masked)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskAll(v.Group())...)}
	case slog.KindString:
		return slog.String(a.Key, scrub(v.String()))
	case slog.KindAny:
		// errors keep their type for the sentry handler unless they carry a token
		if err, ok := v.Any().(error); ok {
			if text := err.Error(); scrub(text) != text {
				return slog.String(a.Key, scrub(text))
			}
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func scrub(s string) string {
	if !strings.Contains(s, ":") {
		return s
	}
	return botTokenPattern.ReplaceAllString(s, masked)
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

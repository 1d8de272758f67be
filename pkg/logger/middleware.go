package logger

import (
	"context"

	"github.com/google/uuid"
)

// correlationIDKey marks the context storage slot for the correlation identifier.
type correlationIDKey struct{}

// CorrelationIDFromContext returns the correlation identifier stored in ctx, or an empty string when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}

	return ""
}

// WithCorrelationID returns a context carrying a fresh correlation identifier, keeping an existing one.
func WithCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return context.WithValue(ctx, correlationIDKey{}, id), id
}

// ContextWithCorrelationID stores id in ctx, e.g. one received in a request header.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		ctx, _ = WithCorrelationID(ctx)
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey{}, id)
}

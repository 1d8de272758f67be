package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/stockroom-bot/pkg/logger"
)

// CorrelationHeader carries the request correlation id in and out.
const CorrelationHeader = "X-Request-ID"

// RequestLogger logs every ops HTTP request with its correlation id.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()

		ctx := logger.ContextWithCorrelationID(c.Request.Context(), c.GetHeader(CorrelationHeader))
		correlationID := logger.CorrelationIDFromContext(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(CorrelationHeader, correlationID)

		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		log.Log(ctx, level, "handled http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("correlation_id", correlationID),
		)
	}
}

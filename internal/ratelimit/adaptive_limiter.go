package ratelimit

import (
	"context"
	"log/slog"

	"github.com/Proton-105/stockroom-bot/pkg/metrics"
)

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to
// a stricter in-memory limiter when the primary fails.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

var _ Limiter = (*AdaptiveLimiter)(nil)

// NewAdaptiveLimiter creates a limiter that adapts between Redis and in-memory backends.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Check evaluates the limit using the primary backend, falling back to memory on errors.
// The fallback allows half the configured limit.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, rule Rule) (*Result, error) {
	if a.primary != nil {
		result, err := a.primary.Check(ctx, key, rule)
		if err == nil {
			metrics.RecordRateLimit("redis", result.Allowed)
			return result, nil
		}

		metrics.RecordRateLimitBackendError("redis")
		a.log.WarnContext(ctx, "redis limiter failed, falling back to in-memory", slog.String("key", key), slog.Any("error", err))
	}

	if rule.Enabled() {
		rule.Limit = max(rule.Limit/2, 1)
	}
	result, err := a.fallback.Check(ctx, key, rule)
	if err != nil {
		metrics.RecordRateLimitBackendError("memory")
		return nil, err
	}
	metrics.RecordRateLimit("memory", result.Allowed)
	return result, nil
}

package ratelimit

import (
	"context"
	"errors"
	"time"
)

// KeyPrefix namespaces limiter keys in Redis.
const KeyPrefix = "stockroom:ratelimit:"

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window frees a slot.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r == nil || r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// Limiter decides whether one more hit on key fits the rule.
// A rejected hit is not counted against the window.
type Limiter interface {
	Check(ctx context.Context, key string, rule Rule) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

package errors

import (
	"context"
	"errors"
	"time"
)

const (
	MaxRetries        = 3
	InitialBackoff    = 100 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2
)

// Backoff is an exponential retry policy for retryable AppErrors.
type Backoff struct {
	Retries    int
	Initial    time.Duration
	Max        time.Duration
	Multiplier int
}

// DefaultBackoff waits 200ms, 400ms and 800ms between four attempts.
var DefaultBackoff = Backoff{
	Retries:    MaxRetries,
	Initial:    InitialBackoff,
	Max:        MaxBackoff,
	Multiplier: BackoffMultiplier,
}

// WithRetry runs fn under DefaultBackoff.
func WithRetry(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Retry(ctx, fn)
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the retries run out.
// Cancelling ctx stops waiting and returns ctx.Err().
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || !IsRetryable(err) || attempt >= b.Retries {
			return err
		}

		timer := time.NewTimer(b.Delay(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay is the wait before retry number attempt (1-based), capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt; i++ {
		d *= time.Duration(max(b.Multiplier, 1))
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	return d
}

func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Retryable
}

// Package periodic runs background sweeps on a fixed interval.
package periodic

import (
	"context"
	"time"
)

// Every calls fn each interval until ctx is done. It returns ctx.Err(), or nil at once for a non-positive interval.
// A slow fn delays the next call instead of overlapping it.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	if interval <= 0 || fn == nil {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}

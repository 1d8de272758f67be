package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Proton-105/stockroom-bot/pkg/periodic"
)

const sweepBatch = 100

// Cleaner removes claim keys that lost their TTL, e.g. after a manual restore.
type Cleaner struct {
	client   *redis.Client
	log      *slog.Logger
	interval time.Duration
}

func NewCleaner(client *redis.Client, log *slog.Logger, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	return &Cleaner{client: client, log: log.With("component", "idempotency_cleaner"), interval: interval}
}

func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = periodic.Every(ctx, c.interval, func(ctx context.Context) {
		if n := c.Sweep(ctx); n > 0 {
			c.log.Info("stale idempotency keys removed", slog.Int("removed", n))
		}
	})
}

// Sweep deletes keys without expiry or with one longer than DefaultResultTTL.
// TTLs are read in one pipeline per scanned batch.
func (c *Cleaner) Sweep(ctx context.Context) int {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, KeyPrefix+"*", sweepBatch).Result()
		if err != nil {
			c.log.Error("idempotency scan failed", slog.Any("error", err))
			return removed
		}
		removed += c.dropStale(ctx, keys)
		if cursor = next; cursor == 0 {
			return removed
		}
	}
}

func (c *Cleaner) dropStale(ctx context.Context, keys []string) int {
	if len(keys) == 0 {
		return 0
	}

	ttls := make([]*redis.DurationCmd, len(keys))
	if _, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			ttls[i] = p.TTL(ctx, key)
		}
		return nil
	}); err != nil {
		c.log.Warn("idempotency ttl pipeline failed", slog.Any("error", err))
		return 0
	}

	var stale []string
	for i, cmd := range ttls {
		// -2 means the key is already gone, -1 means it never expires
		if ttl := cmd.Val(); ttl == -1 || ttl > DefaultResultTTL {
			stale = append(stale, keys[i])
		}
	}
	if len(stale) == 0 {
		return 0
	}

	n, err := c.client.Del(ctx, stale...).Result()
	if err != nil {
		c.log.Warn("failed to delete stale idempotency keys", slog.Int("count", len(stale)), slog.Any("error", err))
		return 0
	}
	return int(n)
}

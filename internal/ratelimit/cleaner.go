package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Proton-105/stockroom-bot/pkg/periodic"
)

// Cleaner periodically drops limiter windows that saw no traffic for maxAge.
type Cleaner struct {
	redisClient *redis.Client
	memory      *MemoryLimiter
	log         *slog.Logger
	interval    time.Duration
	maxAge      time.Duration
}

// NewCleaner constructs a Cleaner. Either backend may be nil.
func NewCleaner(client *redis.Client, memory *MemoryLimiter, log *slog.Logger, interval, maxAge time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		redisClient: client,
		memory:      memory,
		log:         log,
		interval:    interval,
		maxAge:      maxAge,
	}
}

// Run starts the cleaner loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if err := periodic.Every(ctx, c.interval, func(ctx context.Context) { c.Sweep(ctx) }); err != nil {
		c.log.Info("rate limit cleaner stopped", slog.Any("reason", err))
	}
}

// Sweep runs one cleanup pass and returns the number of windows removed.
func (c *Cleaner) Sweep(ctx context.Context) int {
	removed := 0
	if c.memory != nil {
		removed += c.memory.Sweep(c.maxAge)
	}
	if c.redisClient != nil {
		removed += c.sweepRedis(ctx)
	}

	if removed > 0 {
		c.log.Info("rate limit windows cleaned", slog.Int("removed", removed))
	}
	return removed
}

func (c *Cleaner) sweepRedis(ctx context.Context) int {
	const scanCount = 100

	cutoff := time.Now().Add(-c.maxAge).UnixMilli()
	removed := 0

	iter := c.redisClient.Scan(ctx, 0, KeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		pipe := c.redisClient.TxPipeline()
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", cutoff))
		cardCmd := pipe.ZCard(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			c.log.Warn("cleanup pipeline failed", slog.String("key", key), slog.Any("error", err))
			continue
		}

		if cardCmd.Val() > 0 {
			continue
		}
		if err := c.redisClient.Del(ctx, key).Err(); err != nil {
			c.log.Warn("failed to delete empty rate limit key", slog.String("key", key), slog.Any("error", err))
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		c.log.Error("rate limit scan failed", slog.Any("error", err))
	}

	return removed
}

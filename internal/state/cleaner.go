package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/stockroom-bot/pkg/periodic"
)

// Cleaner drops drafts that have been idle longer than ttl.
type Cleaner struct {
	storage  Storage
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(storage Storage, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		storage:  storage,
		log:      log,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the cleanup loop until the context is cancelled. A zero ttl disables it.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil || c.ttl <= 0 || c.interval <= 0 {
		return
	}

	err := periodic.Every(ctx, c.interval, func(ctx context.Context) { c.Sweep(ctx) })
	c.log.Info("state cleaner stopped", slog.Any("reason", err))
}

// Sweep clears every expired draft and returns how many were removed.
func (c *Cleaner) Sweep(ctx context.Context) int {
	states, err := c.storage.GetAllStates(ctx)
	if err != nil {
		c.log.Error("state cleaner failed to list states", slog.Any("error", err))
		return 0
	}

	cleared := 0
	for _, st := range states {
		if ctx.Err() != nil {
			break
		}
		if st == nil || c.now().Sub(st.UpdatedAt) <= c.ttl {
			continue
		}
		if err := c.storage.ClearState(ctx, st.UserID); err != nil {
			c.log.Error("state cleaner failed to clear state", slog.Int64("user_id", st.UserID), slog.Any("error", err))
			continue
		}
		c.log.Info("stale draft cleared",
			slog.Int64("user_id", st.UserID),
			slog.String("flow", string(st.Flow)),
			slog.String("state", string(st.CurrentState)),
		)
		cleared++
	}
	return cleared
}

// Package usercache keeps staff profiles in Redis so every update does not hit the database.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/pkg/metrics"
)

// KeyPrefix namespaces cached profiles.
const KeyPrefix = "stockroom:user:"

const metricName = "user"

// Cache stores one JSON profile per Telegram id. A nil *Cache is a valid cache that never hits.
type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewCache(rdb redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get returns nil, nil on a miss.
func (c *Cache) Get(ctx context.Context, telegramID int64) (*domain.User, error) {
	if c.disabled() {
		return nil, nil
	}

	raw, err := c.rdb.Get(ctx, key(telegramID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheLookup(metricName, false)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u := new(domain.User)
	if err := json.Unmarshal(raw, u); err != nil {
		// a profile written by an older build; treat as a miss and let the caller refill it
		_ = c.rdb.Del(ctx, key(telegramID)).Err()
		metrics.RecordCacheLookup(metricName, false)
		return nil, nil
	}
	metrics.RecordCacheLookup(metricName, true)
	return u, nil
}

func (c *Cache) Set(ctx context.Context, u *domain.User) error {
	if c.disabled() || u == nil {
		return nil
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(u.TelegramID), raw, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context, telegramID int64) error {
	if c.disabled() {
		return nil
	}
	return c.rdb.Del(ctx, key(telegramID)).Err()
}

func (c *Cache) disabled() bool { return c == nil || c.rdb == nil }

func key(telegramID int64) string {
	return KeyPrefix + strconv.FormatInt(telegramID, 10)
}

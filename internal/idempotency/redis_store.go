package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces claim keys in Redis.
const KeyPrefix = "stockroom:idempotency:"

// Status of a claimed key.
type Status string

const (
	StatusNone       Status = ""
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Store records which keys were claimed and whether their work finished.
type Store interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Complete(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	Status(ctx context.Context, key string) (Status, error)
}

// RedisStore keeps claims as plain string keys with a TTL.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

// Claim marks key as processing unless someone already holds it.
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, KeyPrefix+key, string(StatusProcessing), ttl).Result()
	if err != nil {
		s.log.Error("failed to claim idempotency key", slog.String("key", key), slog.Any("error", err))
		return false, err
	}
	return acquired, nil
}

// Complete marks key as done for ttl.
func (s *RedisStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, KeyPrefix+key, string(StatusCompleted), ttl).Err(); err != nil {
		s.log.Error("failed to complete idempotency key", slog.String("key", key), slog.Any("error", err))
		return err
	}
	return nil
}

// Release forgets key so the work may run again.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, KeyPrefix+key).Err(); err != nil {
		s.log.Error("failed to release idempotency key", slog.String("key", key), slog.Any("error", err))
		return err
	}
	return nil
}

func (s *RedisStore) Status(ctx context.Context, key string) (Status, error) {
	value, err := s.client.Get(ctx, KeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return StatusNone, nil
	}
	if err != nil {
		return StatusNone, err
	}
	return Status(value), nil
}

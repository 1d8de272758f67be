package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix = "stockroom:state:"
	scanBatch      = 100
)

// RedisStorage keeps one JSON document per user under stockroom:state:<id>.
type RedisStorage struct {
	rdb redis.Cmdable
	log *slog.Logger
	ttl time.Duration
}

// NewRedisStorage returns a Storage on rdb. A zero ttl keeps drafts until the flow ends.
func NewRedisStorage(rdb redis.Cmdable, log *slog.Logger, ttl time.Duration) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStorage{rdb: rdb, log: log.With("component", "state_storage"), ttl: ttl}
}

func (s *RedisStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	raw, err := s.rdb.Get(ctx, stateKey(userID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrStateNotFound
	case err != nil:
		return nil, fmt.Errorf("state: get %d: %w", userID, err)
	}

	st := new(UserState)
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("state: decode %d: %w", userID, err)
	}
	return st, nil
}

// SetState stores st and restarts its TTL. A zero UpdatedAt is stamped with the current time.
func (s *RedisStorage) SetState(ctx context.Context, userID int64, st *UserState) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("state: encode %d: %w", userID, err)
	}
	if err := s.rdb.Set(ctx, stateKey(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("state: set %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStorage) ClearState(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("state: clear %d: %w", userID, err)
	}
	return nil
}

// GetAllStates scans every stored state. Documents that fail to decode are logged and skipped.
func (s *RedisStorage) GetAllStates(ctx context.Context) ([]*UserState, error) {
	var (
		out    []*UserState
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, stateKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("state: scan: %w", err)
		}
		if len(keys) > 0 {
			batch, err := s.load(ctx, keys)
			if err != nil {
				return nil, err
			}
			out = append(out, batch...)
		}
		if cursor = next; cursor == 0 {
			return out, nil
		}
	}
}

func (s *RedisStorage) load(ctx context.Context, keys []string) ([]*UserState, error) {
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("state: mget: %w", err)
	}

	out := make([]*UserState, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		st := new(UserState)
		if err := json.Unmarshal([]byte(raw), st); err != nil {
			s.log.WarnContext(ctx, "skipping undecodable state", slog.String("key", keys[i]), slog.Any("error", err))
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func stateKey(userID int64) string {
	return fmt.Sprintf("%s%d", stateKeyPrefix, userID)
}

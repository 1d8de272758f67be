package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "stockroom:lock:%d"
	defaultLockTTL     = 30 * time.Second
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker grants exclusive access to a user's draft.
type Locker interface {
	// Acquire returns ErrStateLocked when another holder owns the lock.
	Acquire(ctx context.Context, userID int64) (release func(), err error)
}

// RedisLocker is a SET NX lock shared by every bot instance using the same Redis.
type RedisLocker struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisLocker creates a Redis lock; ttl bounds how long a crashed holder blocks the user.
func NewRedisLocker(client *redis.Client, log *slog.Logger, ttl time.Duration) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, log: log, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, userID int64) (func(), error) {
	key := fmt.Sprintf(userLockKeyPattern, userID)
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		l.log.Error("failed to acquire user state lock", "user_id", userID, "error", err)
		return nil, err
	}
	if !acquired {
		l.log.Warn("user state lock already held", "user_id", userID)
		return nil, ErrStateLocked
	}

	return func() {
		// the caller's context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Error("failed to release user state lock", "user_id", userID, "error", err)
		}
	}, nil
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[int64]struct{})}
}

func (l *MemoryLocker) Acquire(_ context.Context, userID int64) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[userID]; ok {
		return nil, ErrStateLocked
	}
	l.held[userID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, userID)
			l.mu.Unlock()
		})
	}, nil
}

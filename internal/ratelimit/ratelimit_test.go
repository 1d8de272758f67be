package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stockroom-bot/internal/testutil"
	"github.com/Proton-105/stockroom-bot/pkg/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func TestNewRules(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RateLimitConfig
		perUser Rule
		global  Rule
		wantErr bool
	}{
		{
			name: "both rules",
			cfg: config.RateLimitConfig{
				Enabled: true,
				PerUser: config.RateLimitRule{Limit: 20, Window: "1m"},
				Global:  config.RateLimitRule{Limit: 30, Window: "1s"},
			},
			perUser: Rule{Limit: 20, Window: time.Minute},
			global:  Rule{Limit: 30, Window: time.Second},
		},
		{
			name:    "empty window disables rule",
			cfg:     config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 5}},
			perUser: Rule{},
		},
		{
			name:    "bad window",
			cfg:     config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 5, Window: "soon"}},
			wantErr: true,
		},
		{
			name:    "negative limit",
			cfg:     config.RateLimitConfig{Global: config.RateLimitRule{Limit: -1, Window: "1s"}},
			wantErr: true,
		},
		{
			name:    "negative window",
			cfg:     config.RateLimitConfig{Global: config.RateLimitRule{Limit: 1, Window: "-1s"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := NewRules(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.perUser, rules.PerUser())
			assert.Equal(t, tt.global, rules.Global())
			assert.Equal(t, tt.cfg.Enabled, rules.Enabled())
		})
	}
}

func TestRules_Whitelist(t *testing.T) {
	rules, err := NewRules(config.RateLimitConfig{Whitelist: []int64{7, 9}})
	require.NoError(t, err)

	assert.True(t, rules.IsWhitelisted(7))
	assert.False(t, rules.IsWhitelisted(8))
}

func TestRedisLimiter_BlocksWhenExceeded(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	clock := newClock()
	limiter := NewRedisLimiter(client, testutil.Logger())
	limiter.now = clock.Now
	ctx := context.Background()
	rule := Rule{Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "user:1", rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 1-i, result.Remaining)
	}

	result, err := limiter.Check(ctx, "user:1", rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, time.Minute, result.RetryAfter(clock.Now()))

	other, err := limiter.Check(ctx, "user:2", rule)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestRedisLimiter_RejectedHitsDoNotExtendWindow(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	clock := newClock()
	limiter := NewRedisLimiter(client, testutil.Logger())
	limiter.now = clock.Now
	ctx := context.Background()
	rule := Rule{Limit: 1, Window: time.Second}

	result, err := limiter.Check(ctx, "user:1", rule)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	for i := 0; i < 5; i++ {
		clock.Advance(100 * time.Millisecond)
		result, err = limiter.Check(ctx, "user:1", rule)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	}

	clock.Advance(600 * time.Millisecond)
	result, err = limiter.Check(ctx, "user:1", rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	count, err := client.ZCard(ctx, KeyPrefix+"user:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisLimiter_DisabledRuleAllows(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	limiter := NewRedisLimiter(client, testutil.Logger())

	result, err := limiter.Check(context.Background(), "user:1", Rule{})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	clock := newClock()
	limiter := NewMemoryLimiter()
	limiter.now = clock.Now
	ctx := context.Background()
	rule := Rule{Limit: 2, Window: time.Second}

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "k", rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
	result, err := limiter.Check(ctx, "k", rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	clock.Advance(1100 * time.Millisecond)
	result, err = limiter.Check(ctx, "k", rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	clock := newClock()
	limiter := NewMemoryLimiter()
	limiter.now = clock.Now
	ctx := context.Background()
	rule := Rule{Limit: 5, Window: time.Minute}

	_, err := limiter.Check(ctx, "old", rule)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	_, err = limiter.Check(ctx, "fresh", rule)
	require.NoError(t, err)

	assert.Equal(t, 1, limiter.Sweep(5*time.Minute))
	assert.Equal(t, 1, limiter.Len())
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, Rule) (*Result, error) {
	return nil, errors.New("connection refused")
}

func TestAdaptiveLimiter_FallsBackWithHalfLimit(t *testing.T) {
	fallback := NewMemoryLimiter()
	limiter := NewAdaptiveLimiter(failingLimiter{}, fallback, testutil.Logger())
	ctx := context.Background()
	rule := Rule{Limit: 4, Window: time.Minute}

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "user:1", rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "user:1", rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestAdaptiveLimiter_UsesPrimary(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	fallback := NewMemoryLimiter()
	limiter := NewAdaptiveLimiter(NewRedisLimiter(client, testutil.Logger()), fallback, testutil.Logger())

	result, err := limiter.Check(context.Background(), "user:1", Rule{Limit: 1, Window: time.Minute})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Zero(t, fallback.Len())
}

func TestCleaner_SweepRemovesIdleWindows(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	ctx := context.Background()

	limiter := NewRedisLimiter(client, testutil.Logger())
	limiter.now = func() time.Time { return time.Now().Add(-time.Hour) }
	_, err := limiter.Check(ctx, "user:idle", Rule{Limit: 5, Window: 2 * time.Hour})
	require.NoError(t, err)

	limiter.now = time.Now
	_, err = limiter.Check(ctx, "user:busy", Rule{Limit: 5, Window: 2 * time.Hour})
	require.NoError(t, err)

	require.NoError(t, client.Set(ctx, "stockroom:state:1", "x", 0).Err())

	cleaner := NewCleaner(client, nil, testutil.Logger(), time.Minute, 5*time.Minute)
	assert.Equal(t, 1, cleaner.Sweep(ctx))

	exists, err := client.Exists(ctx, KeyPrefix+"user:idle", KeyPrefix+"user:busy", "stockroom:state:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), exists)
}

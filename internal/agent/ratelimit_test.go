package agent

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter(t *testing.T) {
	rl := NewMemoryRateLimiter(2, time.Minute)
	defer rl.Stop()
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, "a"))
	assert.True(t, rl.Allow(ctx, "a"))
	assert.False(t, rl.Allow(ctx, "a"))
	assert.True(t, rl.Allow(ctx, "b"), "keys are limited independently")
}

func TestMemoryRateLimiterWindowSlides(t *testing.T) {
	rl := NewMemoryRateLimiter(1, 30*time.Millisecond)
	defer rl.Stop()
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, "a"))
	assert.False(t, rl.Allow(ctx, "a"))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.Allow(ctx, "a"))
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := newRedisRateLimiter(client, 3, time.Minute, nil)
	defer func() { _ = rl.Close() }()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(ctx, "client-1"), "request %d", i)
	}
	assert.False(t, rl.Allow(ctx, "client-1"))
	assert.True(t, rl.Allow(ctx, "client-2"))

	assert.True(t, mr.Exists("personachat:ratelimit:client-1"))
	assert.True(t, mr.TTL("personachat:ratelimit:client-1") > 0)
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := newRedisRateLimiter(client, 1, time.Minute, nil)
	defer func() { _ = rl.Close() }()

	mr.Close()
	assert.True(t, rl.Allow(context.Background(), "client-1"))
}

func TestNewRedisRateLimiterErrors(t *testing.T) {
	tests := []struct {
		name        string
		redisURL    string
		errContains string
	}{
		{"invalid URL format", "invalid-url", "failed to parse"},
		{"invalid protocol", "http://localhost:6379", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisRateLimiter(context.Background(), tt.redisURL, 1, time.Minute, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestNewRedisRateLimiterConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	rl, err := NewRedisRateLimiter(context.Background(), "redis://"+mr.Addr(), 1, time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = rl.Close() }()
	assert.True(t, rl.Allow(context.Background(), "x"))
}

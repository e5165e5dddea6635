package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestLocalLimiterTake(t *testing.T) {
	l := NewLocalLimiter(100, 1)

	// The first take passes straight through, the second waits for a token
	Take(context.Background(), l)

	start := time.Now()
	Take(context.Background(), l)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRedisLimiterTake(t *testing.T) {
	mr := miniredis.RunT(t)

	l := NewRedisLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 100)

	Take(context.Background(), l)
}

package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketBurst(t *testing.T) {
	l := New(1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx), "request %d within burst", i)
	}
	assert.False(t, l.Allow(ctx))
	assert.Contains(t, l.Name(), "token-bucket")
}

func TestTokenBucketAllowN(t *testing.T) {
	l := New(1, 5)
	ctx := context.Background()

	assert.True(t, l.AllowN(ctx, 0))
	assert.True(t, l.AllowN(ctx, 5))
	assert.False(t, l.AllowN(ctx, 1))
}

func TestUnlimited(t *testing.T) {
	l := New(0, 0)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		assert.True(t, l.Allow(ctx))
	}
	assert.NoError(t, l.Wait(ctx))
	assert.Equal(t, "unlimited", l.Name())
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.01, 1)
	ctx := context.Background()
	assert.True(t, l.Allow(ctx))

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, l.Wait(ctx), ErrRateLimitExceeded)
}

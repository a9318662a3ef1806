// Kunhua Huang 2026

package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

func NewTokenBucketLimiter(perSecond float64, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// NewUnlimited returns a limiter that always allows.
func NewUnlimited() *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
}

func (tb *TokenBucketLimiter) Allow(ctx context.Context) bool {
	return tb.AllowN(ctx, 1)
}

func (tb *TokenBucketLimiter) AllowN(_ context.Context, n int) bool {
	if n <= 0 {
		return true
	}
	return tb.limiter.AllowN(time.Now(), n)
}

func (tb *TokenBucketLimiter) Wait(ctx context.Context) error {
	if err := tb.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimitExceeded, err)
	}
	return nil
}

func (tb *TokenBucketLimiter) Name() string {
	if tb.limiter.Limit() == rate.Inf {
		return "unlimited"
	}
	return fmt.Sprintf("token-bucket(%.4g/s, burst %d)", float64(tb.limiter.Limit()), tb.limiter.Burst())
}

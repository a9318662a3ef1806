// Kunhua Huang 2026

package ratelimiter

import (
	"context"
	"errors"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter gates accepted transactions. Allow never blocks; Wait blocks
// until a token is available or ctx is done.
type RateLimiter interface {
	Allow(ctx context.Context) bool
	AllowN(ctx context.Context, n int) bool
	Wait(ctx context.Context) error
	Name() string
}

// New returns a token bucket refilled at perSecond tokens per second holding
// at most burst tokens. A non-positive perSecond disables limiting.
func New(perSecond float64, burst int) RateLimiter {
	if perSecond <= 0 {
		return NewUnlimited()
	}
	if burst <= 0 {
		burst = 1
	}
	return NewTokenBucketLimiter(perSecond, burst)
}

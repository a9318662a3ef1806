//Kunhua Huang 2026

package interceptor

import (
	"context"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/ratelimiter"
)

// ErrRateLimited is returned for requests refused by RateLimit. The
// connection is closed without a reply.
var ErrRateLimited = ratelimiter.ErrRateLimitExceeded

func RateLimit(limiter ratelimiter.RateLimiter) Interceptor {
	return func(ctx context.Context, req *protocol.Packet, invoker Invoker) (*protocol.Packet, error) {
		if !limiter.Allow(ctx) {
			return nil, ErrRateLimited
		}

		return invoker(ctx, req)
	}
}

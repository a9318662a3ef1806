// Kunhua Huang 2026

package interceptor

import (
	"context"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

// Invoker handles one verified-or-not request packet and returns the reply.
type Invoker func(ctx context.Context, req *protocol.Packet) (*protocol.Packet, error)

type Interceptor func(ctx context.Context, req *protocol.Packet, invoker Invoker) (*protocol.Packet, error)

type Chain struct {
	interceptors []Interceptor
}

func NewChain(interceptor ...Interceptor) *Chain {
	return &Chain{interceptors: interceptor}
}

func (ic *Chain) Intercept(ctx context.Context, req *protocol.Packet, invoker Invoker) (*protocol.Packet, error) {
	if len(ic.interceptors) == 0 {
		return invoker(ctx, req)
	}

	return ic.buildChain(invoker)(ctx, req)
}

// Then wraps invoker with the whole chain. The first interceptor added runs
// outermost.
func (ic *Chain) Then(invoker Invoker) Invoker {
	return ic.buildChain(invoker)
}

func (ic *Chain) buildChain(invoker Invoker) Invoker {
	for i := len(ic.interceptors) - 1; i >= 0; i-- {
		next := invoker
		interceptor := ic.interceptors[i]

		invoker = func(ctx context.Context, req *protocol.Packet) (*protocol.Packet, error) {
			return interceptor(ctx, req, next)
		}
	}

	return invoker
}

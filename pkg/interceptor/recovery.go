// Kunhua Huang 2026

package interceptor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

var ErrPanic = errors.New("panic recovered")

func Recovery() Interceptor {
	return func(ctx context.Context, req *protocol.Packet, invoker Invoker) (resp *protocol.Packet, err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				err = fmt.Errorf("%w: %v\nstack:\n%s", ErrPanic, r, stack)
				resp = nil
			}
		}()

		return invoker(ctx, req)
	}
}

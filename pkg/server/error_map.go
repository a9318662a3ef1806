package server

import (
	"context"
	"errors"

	"github.com/ecstasoy/CipherInGo/pkg/interceptor"
	"github.com/ecstasoy/CipherInGo/pkg/pool"
	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

const (
	ClassSuccess   = "success"
	ClassRate      = "rate"
	ClassCapacity  = "capacity"
	ClassProtocol  = "protocol"
	ClassTransport = "transport"
	ClassCanceled  = "canceled"
	ClassInternal  = "internal"
)

// Classify maps an error onto a small fixed set of labels for logs and
// metrics.
func Classify(err error) string {
	if err == nil {
		return ClassSuccess
	}

	if errors.Is(err, interceptor.ErrRateLimited) {
		return ClassRate
	}

	if errors.Is(err, pool.ErrPoolFull) {
		return ClassCapacity
	}

	if protocol.IsViolation(err) {
		return ClassProtocol
	}

	if protocol.IsTransportError(err) {
		return ClassTransport
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}

	return ClassInternal
}

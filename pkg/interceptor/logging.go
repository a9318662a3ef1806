// Kunhua Huang 2026

package interceptor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
)

type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts l to Logger. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (l *slogLogger) Infof(format string, args ...interface{}) {
	l.l.Info(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Errorf(format string, args ...interface{}) {
	l.l.Error(fmt.Sprintf(format, args...))
}

func Logging(logger Logger) Interceptor {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}

	return func(ctx context.Context, req *protocol.Packet, invoker Invoker) (*protocol.Packet, error) {
		start := time.Now()

		peer := "unknown"
		if addr, ok := transport.PeerFromContext(ctx); ok {
			peer = addr.String()
		}
		logger.Infof("→ %s from %s: keyword=%q payload=%d bytes", req.Operation, peer, req.KeywordString(), len(req.Payload))

		resp, err := invoker(ctx, req)

		duration := time.Since(start)

		if err != nil {
			logger.Errorf("✗ %s from %s failed in %v: %v", req.Operation, peer, duration, err)
		} else {
			logger.Infof("✓ %s from %s done in %v", req.Operation, peer, duration)
		}

		return resp, err
	}
}

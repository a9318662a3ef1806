package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/ratelimiter"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
)

func echo(_ context.Context, req *protocol.Packet) (*protocol.Packet, error) {
	return protocol.NewPacket(req.Operation, req.KeywordString(), req.Payload), nil
}

func failing(err error) Invoker {
	return func(context.Context, *protocol.Packet) (*protocol.Packet, error) {
		return nil, err
	}
}

func request() *protocol.Packet {
	p := protocol.NewPacket(protocol.OpEncrypt, "abcd", []byte("hello"))
	p.Seal()
	return p
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Interceptor {
		return func(ctx context.Context, req *protocol.Packet, invoker Invoker) (*protocol.Packet, error) {
			order = append(order, name+">")
			resp, err := invoker(ctx, req)
			order = append(order, "<"+name)
			return resp, err
		}
	}

	chain := NewChain(mark("a"), mark("b"))
	_, err := chain.Intercept(context.Background(), request(), echo)
	require.NoError(t, err)

	assert.Equal(t, []string{"a>", "b>", "<b", "<a"}, order)
}

func TestEmptyChainCallsInvoker(t *testing.T) {
	resp, err := NewChain().Then(echo)(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), resp.Payload)
}

func TestRecovery(t *testing.T) {
	panicking := func(context.Context, *protocol.Packet) (*protocol.Packet, error) {
		panic("boom")
	}

	resp, err := Recovery()(context.Background(), request(), panicking)
	assert.Nil(t, resp)
	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "boom")
}

func TestRateLimit(t *testing.T) {
	limit := RateLimit(ratelimiter.New(0.001, 2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limit(ctx, request(), echo)
		require.NoError(t, err)
	}

	_, err := limit(ctx, request(), echo)
	assert.ErrorIs(t, err, ErrRateLimited)
}

type bufferLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *bufferLogger) Infof(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, "INFO "+fmt.Sprintf(format, args...))
}

func (l *bufferLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, "ERROR "+fmt.Sprintf(format, args...))
}

func TestLogging(t *testing.T) {
	logger := &bufferLogger{}
	ctx := transport.ContextWithPeer(context.Background(), &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000})

	_, err := Logging(logger)(ctx, request(), echo)
	require.NoError(t, err)

	_, err = Logging(logger)(ctx, request(), failing(errors.New("bad packet")))
	require.Error(t, err)

	require.Len(t, logger.lines, 4)
	assert.True(t, strings.HasPrefix(logger.lines[0], "INFO → encrypt from 127.0.0.1:4000"))
	assert.Contains(t, logger.lines[1], "done")
	assert.True(t, strings.HasPrefix(logger.lines[3], "ERROR ✗ encrypt"))
	assert.Contains(t, logger.lines[3], "bad packet")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	classify := func(err error) string {
		if errors.Is(err, protocol.ErrChecksumMismatch) {
			return "protocol"
		}
		return "internal"
	}

	m, err := NewMetrics(reg, classify)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = m.Interceptor()(ctx, request(), echo)
	require.NoError(t, err)
	_, err = m.Interceptor()(ctx, request(), failing(protocol.ErrChecksumMismatch))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.packetsTotal.WithLabelValues("encrypt", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.packetsTotal.WithLabelValues("encrypt", "protocol")))

	m.ConnAccepted(nil)
	m.ConnAccepted(nil)
	m.ConnClosed(nil, nil)
	m.ConnRejected(nil, errors.New("full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.closedTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejectedTotal.WithLabelValues("internal")))

	_, err = NewMetrics(reg, nil)
	assert.Error(t, err, "registering twice on one registry must fail")
}

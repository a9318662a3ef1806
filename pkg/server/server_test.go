package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/CipherInGo/pkg/client"
	"github.com/ecstasoy/CipherInGo/pkg/config"
	"github.com/ecstasoy/CipherInGo/pkg/interceptor"
	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/ratelimiter"
)

var modes = []string{config.ModeGoroutine, config.ModeMultiplex}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	opts = append([]Option{WithAddress("127.0.0.1:0"), WithLogger(quietLogger())}, opts...)
	srv, err := NewServer(opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Listen(ctx))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, srv.Stop())
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return srv
}

func newClient(srv *Server) *client.Client {
	return client.NewClient(srv.Addr(), client.WithTimeout(3*time.Second))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			srv := startServer(t, WithMode(mode))
			c := newClient(srv)
			ctx := context.Background()

			enc, err := c.Encrypt(ctx, "abcd", []byte("Hello"))
			require.NoError(t, err)
			assert.Equal(t, []byte("hfnoo"), enc)

			dec, err := c.Decrypt(ctx, "abcd", enc)
			require.NoError(t, err)
			assert.Equal(t, []byte("hello"), dec)

			assert.Equal(t, int64(2), srv.ServiceStats().Handled)
		})
	}
}

func TestLargePayload(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			srv := startServer(t, WithMode(mode))
			payload := bytes.Repeat([]byte("The Quick Brown Fox. "), 50_000)

			enc, err := newClient(srv).Encrypt(context.Background(), "lmno", payload)
			require.NoError(t, err)
			require.Len(t, enc, len(payload))

			dec, err := newClient(srv).Decrypt(context.Background(), "lmno", enc)
			require.NoError(t, err)
			assert.Equal(t, bytes.ToLower(payload), dec)
		})
	}
}

func TestCorruptedPacketGetsNoReply(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			srv := startServer(t, WithMode(mode))

			req := protocol.NewPacket(protocol.OpEncrypt, "abcd", []byte("Hello"))
			req.Seal()
			req.Payload[1] = 'a'

			_, err := newClient(srv).Send(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, client.ErrRejected)

			require.Eventually(t, func() bool {
				return srv.ServiceStats().Rejected == 1
			}, 3*time.Second, 10*time.Millisecond)
		})
	}
}

func TestUnknownOperationGetsNoReply(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			srv := startServer(t, WithMode(mode))

			_, err := newClient(srv).Do(context.Background(), protocol.Operation(7), "abcd", []byte("Hello"))
			assert.ErrorIs(t, err, client.ErrRejected)
		})
	}
}

func TestPanicIsContained(t *testing.T) {
	srv, err := NewServer(WithAddress("127.0.0.1:0"), WithLogger(quietLogger()))
	require.NoError(t, err)
	srv.Use(interceptor.Recovery(), func(ctx context.Context, req *protocol.Packet, invoker interceptor.Invoker) (*protocol.Packet, error) {
		if bytes.Equal(req.Payload, []byte("panic")) {
			panic("handler exploded")
		}
		return invoker(ctx, req)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Listen(ctx))
	go srv.Serve(ctx)
	defer srv.Stop()

	c := newClient(srv)
	_, err = c.Encrypt(ctx, "abcd", []byte("panic"))
	assert.ErrorIs(t, err, client.ErrRejected)

	// the server keeps serving
	out, err := c.Encrypt(ctx, "abcd", []byte("fine"))
	require.NoError(t, err)
	assert.Equal(t, []byte("fjph"), out)
}

func TestRateLimitInterceptor(t *testing.T) {
	srv, err := NewServer(WithAddress("127.0.0.1:0"), WithLogger(quietLogger()))
	require.NoError(t, err)
	srv.Use(interceptor.RateLimit(ratelimiter.New(0.001, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Listen(ctx))
	go srv.Serve(ctx)
	defer srv.Stop()

	c := newClient(srv)
	_, err = c.Encrypt(ctx, "abcd", []byte("first"))
	require.NoError(t, err)

	_, err = c.Encrypt(ctx, "abcd", []byte("second"))
	assert.ErrorIs(t, err, client.ErrRejected)
}

func TestMetricsWiring(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := interceptor.NewMetrics(reg, Classify)
	require.NoError(t, err)

	srv := startServer(t, WithMode(config.ModeMultiplex), WithMetrics(m))
	c := newClient(srv)

	_, err = c.Encrypt(context.Background(), "abcd", []byte("counted"))
	require.NoError(t, err)

	bad := protocol.NewPacket(protocol.OpDecrypt, "abcd", []byte("x"))
	bad.Checksum = 1
	_, err = c.Send(context.Background(), bad)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		n, err := testutil.GatherAndCount(reg, "cipher_connections_closed_total")
		return err == nil && n == 2
	}, 3*time.Second, 10*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "cipher_packets_total")
	assert.Contains(t, names, "cipher_packet_duration_seconds")
}

func TestNewServerRejectsUnknownMode(t *testing.T) {
	_, err := NewServer(WithMode("fork"))
	assert.Error(t, err)
}

func TestListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	for _, mode := range modes {
		srv, err := NewServer(WithAddress(ln.Addr().String()), WithMode(mode), WithLogger(quietLogger()))
		require.NoError(t, err)
		assert.Error(t, srv.Listen(context.Background()), mode)
		assert.NoError(t, srv.Stop())
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Mode = config.ModeMultiplex
	cfg.Server.PoolSize = 8

	srv, err := NewServer(append(FromConfig(cfg.Server), WithLogger(quietLogger()))...)
	require.NoError(t, err)
	assert.Equal(t, config.ModeMultiplex, srv.Mode())
	assert.Equal(t, "127.0.0.1:0", srv.opts.address)
	assert.Equal(t, 8, srv.opts.poolCapacity)
}

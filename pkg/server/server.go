// Kunhua Huang 2026

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/ecstasoy/CipherInGo/pkg/config"
	"github.com/ecstasoy/CipherInGo/pkg/interceptor"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
	"github.com/ecstasoy/CipherInGo/pkg/transport/tcp"
)

type Server struct {
	opts         *serverOptions
	service      *Service
	transport    transport.ServerTransport
	mu           sync.Mutex
	interceptors []interceptor.Interceptor
}

func NewServer(opts ...Option) (*Server, error) {
	options := defaultServerOptions()
	for _, o := range opts {
		o(options)
	}

	var t transport.ServerTransport
	switch options.mode {
	case config.ModeGoroutine, "":
		t = tcp.NewServer(options.transportOptions()...)
	case config.ModeMultiplex:
		t = tcp.NewMultiplexServer(options.transportOptions()...)
	default:
		return nil, fmt.Errorf("unknown server mode %q", options.mode)
	}

	s := &Server{
		opts:      options,
		service:   NewService(),
		transport: t,
	}

	if options.metrics != nil {
		s.interceptors = append(s.interceptors, options.metrics.Interceptor())
	}

	return s, nil
}

// Use adds interceptors to the server's interceptor chain.
// usage:
// srv.Use(
//
//		interceptor.Recovery(),
//		interceptor.Logging(nil),
//		interceptor.RateLimit(limiter),
//	)
//
// The interceptors will be executed in the order they are added. Use must
// be called before Serve.
func (s *Server) Use(interceptors ...interceptor.Interceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interceptors = append(s.interceptors, interceptors...)
}

func (s *Server) Listen(ctx context.Context) error {
	if err := s.transport.Listen(ctx, s.opts.address); err != nil {
		return fmt.Errorf("failed to listen tcp transport: %w", err)
	}
	return nil
}

// Serve blocks until ctx is canceled or Stop is called. Both end with a nil
// error.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	chain := interceptor.NewChain(s.interceptors...)
	s.mu.Unlock()

	handler := transport.Handler(chain.Then(s.service.Handle))

	s.opts.logger.Info("serving",
		slog.String("addr", s.Addr()),
		slog.String("mode", s.opts.mode),
	)

	err := s.transport.Serve(ctx, handler)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) Stop() error {
	return s.transport.Close()
}

func (s *Server) Addr() string {
	if s.transport.Addr() != nil {
		return s.transport.Addr().String()
	}
	return ""
}

func (s *Server) Mode() string {
	return s.opts.mode
}

func (s *Server) ServiceStats() ServiceStats {
	return s.service.Stats()
}

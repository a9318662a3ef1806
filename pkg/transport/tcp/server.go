// Kunhua Huang 2026

package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecstasoy/CipherInGo/pkg/pool"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
)

// Server hands every accepted connection to its own goroutine, which owns
// the connection until the transaction ends. The accept loop never waits on
// client I/O.
type Server struct {
	address  string
	opts     *transport.ServerOptions
	handler  transport.Handler
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.RWMutex
	serving  bool
	closed   bool
	// atomic counters
	activeConnections   int64
	totalConnections    int64
	rejectedConnections int64
	// semaphore to limit max concurrent connections
	connSemaphore chan struct{}
}

var _ transport.ServerTransport = (*Server)(nil)

func NewServer(options ...transport.ServerOption) *Server {
	opts := transport.DefaultServerOptions()

	for _, o := range options {
		o(opts)
	}

	server := &Server{
		opts: opts,
	}

	if opts.MaxConnections > 0 {
		server.connSemaphore = make(chan struct{}, opts.MaxConnections)
	}

	return server
}

func (s *Server) Listen(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("already listening on %s", s.address)
	}

	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.address = listener.Addr().String()

	return nil
}

func (s *Server) Serve(ctx context.Context, handler transport.Handler) error {
	s.mu.Lock()

	if s.listener == nil {
		s.mu.Unlock()
		return fmt.Errorf("not listening, call Listen() first")
	}

	if s.serving {
		s.mu.Unlock()
		return fmt.Errorf("already serving on %s", s.address)
	}

	s.serving = true
	s.handler = handler
	s.mu.Unlock()

	logger := s.opts.Logger.With(slog.String("mode", "goroutine"), slog.String("addr", s.address))
	logger.Info("server started")

	// close the listener on cancellation so Accept returns
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.listener.Close()
		case <-done:
		}
	}()

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return ctx.Err()
			}

			s.mu.RLock()
			closed := s.closed
			s.mu.RUnlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}

			backoff = nextBackoff(backoff)
			logger.Warn("accept failed", slog.Any("error", err), slog.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		atomic.AddInt64(&s.totalConnections, 1)

		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			default:
				atomic.AddInt64(&s.rejectedConnections, 1)
				logger.Warn("too many clients", slog.String("remote", addrString(conn.RemoteAddr())))
				s.opts.Observer.ConnRejected(conn.RemoteAddr(), errTooManyClients)
				if err := conn.Close(); err != nil {
					logger.Debug("close rejected connection failed", slog.Any("error", err))
				}
				continue
			}
		}

		atomic.AddInt64(&s.activeConnections, 1)
		s.opts.Observer.ConnAccepted(conn.RemoteAddr())

		s.wg.Add(1)
		go s.handleConnection(ctx, conn, logger)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	remote := conn.RemoteAddr()

	var err error
	defer func() {
		logConnResult(logger, remote, err)
		s.opts.Observer.ConnClosed(remote, err)
		s.closeConnection(conn, logger)
	}()

	if err = tuneConn(conn); err != nil {
		err = fmt.Errorf("tune connection failed: %w", err)
		return
	}

	err = serveConn(ctx, conn, s.handler, s.opts)
}

func (s *Server) closeConnection(conn net.Conn, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Debug("close connection failed", slog.Any("error", err))
	}

	atomic.AddInt64(&s.activeConnections, -1)

	if s.connSemaphore != nil {
		<-s.connSemaphore
	}

	s.wg.Done()
}

func (s *Server) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("close listener failed: %w", err)
		}
	}

	s.wg.Wait()

	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

func (s *Server) Stats() ServerStats {
	return ServerStats{
		ActiveConnections:   atomic.LoadInt64(&s.activeConnections),
		TotalConnections:    atomic.LoadInt64(&s.totalConnections),
		RejectedConnections: atomic.LoadInt64(&s.rejectedConnections),
		Address:             s.address,
	}
}

type ServerStats struct {
	ActiveConnections   int64
	TotalConnections    int64
	RejectedConnections int64
	Address             string
}

var errTooManyClients = fmt.Errorf("connection limit reached: %w", pool.ErrPoolFull)

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 10 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

// Kunhua Huang 2026

package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecstasoy/CipherInGo/pkg/pool"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
)

// MultiplexServer serves every connection from one goroutine. Accepted
// connections wait in a fixed-capacity pool until the poller reports them
// readable, then one transaction runs to completion before the loop polls
// again. Read and write deadlines bound how long a stalled peer can hold the
// loop.
type MultiplexServer struct {
	address  string
	opts     *transport.ServerOptions
	listener *net.TCPListener
	listenFD int
	poller   poller
	pool     *pool.Pool

	mu      sync.Mutex
	serving bool
	closed  bool
	done    chan struct{}
	once    sync.Once

	totalConnections    int64
	rejectedConnections int64
}

var _ transport.ServerTransport = (*MultiplexServer)(nil)

func NewMultiplexServer(options ...transport.ServerOption) *MultiplexServer {
	opts := transport.DefaultServerOptions()

	for _, o := range options {
		o(opts)
	}

	return &MultiplexServer{
		opts:     opts,
		listenFD: -1,
		done:     make(chan struct{}),
	}
}

func (s *MultiplexServer) Listen(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("already listening on %s", s.address)
	}

	connPool, err := pool.New(pool.WithCapacity(s.opts.PoolCapacity))
	if err != nil {
		return err
	}

	p, err := newPoller()
	if err != nil {
		return err
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		p.Close()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	tl, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		p.Close()
		return fmt.Errorf("unexpected listener type %T", ln)
	}

	fd, err := fdOf(tl)
	if err == nil {
		err = p.Add(fd)
	}
	if err != nil {
		tl.Close()
		p.Close()
		return fmt.Errorf("register listener failed: %w", err)
	}

	s.listener = tl
	s.listenFD = fd
	s.poller = p
	s.pool = connPool
	s.address = tl.Addr().String()

	return nil
}

func (s *MultiplexServer) Serve(ctx context.Context, handler transport.Handler) error {
	s.mu.Lock()

	if s.listener == nil {
		s.mu.Unlock()
		return fmt.Errorf("not listening, call Listen() first")
	}

	if s.serving {
		s.mu.Unlock()
		return fmt.Errorf("already serving on %s", s.address)
	}

	if s.closed {
		s.mu.Unlock()
		return net.ErrClosed
	}

	s.serving = true
	s.mu.Unlock()

	defer close(s.done)
	defer s.shutdown()

	logger := s.opts.Logger.With(slog.String("mode", "multiplex"), slog.String("addr", s.address))
	logger.Info("server started", slog.Int("pool_capacity", s.pool.Cap()))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.isClosed() {
			return nil
		}

		ready, err := s.poller.Wait(s.opts.PollInterval)
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("wait for readiness failed: %w", err)
		}

		// new connections are admitted or rejected before any pooled
		// connection is served and its slot freed
		for _, fd := range ready {
			if fd == s.listenFD {
				s.accept(logger)
				break
			}
		}

		for _, fd := range ready {
			if fd == s.listenFD {
				continue
			}

			slot, ok := s.pool.Lookup(fd)
			if !ok {
				// released earlier in this round
				continue
			}
			s.serveSlot(ctx, slot, handler, logger)
		}
	}
}

// accept takes one pending connection off the listen queue and parks it in
// the pool. A full pool closes the new connection straight away.
func (s *MultiplexServer) accept(logger *slog.Logger) {
	if err := s.listener.SetDeadline(time.Now().Add(s.opts.PollInterval)); err != nil {
		logger.Warn("set accept deadline failed", slog.Any("error", err))
	}

	conn, err := s.listener.Accept()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, net.ErrClosed) {
			return
		}
		logger.Warn("accept failed", slog.Any("error", err))
		return
	}

	atomic.AddInt64(&s.totalConnections, 1)
	remote := conn.RemoteAddr()

	if err := tuneConn(conn); err != nil {
		logger.Debug("tune connection failed", slog.String("remote", addrString(remote)), slog.Any("error", err))
	}

	fd, err := fdOf(conn)
	if err != nil {
		logger.Error("connection descriptor unavailable", slog.String("remote", addrString(remote)), slog.Any("error", err))
		conn.Close()
		return
	}

	slot, err := s.pool.Acquire(conn, fd)
	if err != nil {
		atomic.AddInt64(&s.rejectedConnections, 1)
		logger.Warn("too many clients", slog.String("remote", addrString(remote)), slog.Any("error", err))
		s.opts.Observer.ConnRejected(remote, err)
		conn.Close()
		return
	}

	if err := s.poller.Add(fd); err != nil {
		logger.Error("register connection failed", slog.String("remote", addrString(remote)), slog.Any("error", err))
		s.pool.Release(slot.Index)
		conn.Close()
		return
	}

	s.opts.Observer.ConnAccepted(remote)
	logger.Debug("connection accepted", slog.String("remote", addrString(remote)), slog.Int("slot", slot.Index))
}

// serveSlot runs the transaction on a ready connection and frees its slot.
// The descriptor leaves the poller before the socket is closed so a reused
// descriptor number is never confused with the old one.
func (s *MultiplexServer) serveSlot(ctx context.Context, slot *pool.Slot, handler transport.Handler, logger *slog.Logger) {
	remote := slot.Conn.RemoteAddr()

	err := serveConn(ctx, slot.Conn, handler, s.opts)

	if rmErr := s.poller.Remove(slot.FD); rmErr != nil {
		logger.Debug("unregister connection failed", slog.Any("error", rmErr))
	}
	if _, relErr := s.pool.Release(slot.Index); relErr != nil {
		logger.Debug("release slot failed", slog.Int("slot", slot.Index), slog.Any("error", relErr))
	}
	if clErr := slot.Conn.Close(); clErr != nil {
		logger.Debug("close connection failed", slog.Any("error", clErr))
	}

	logConnResult(logger, remote, err)
	s.opts.Observer.ConnClosed(remote, err)
}

func (s *MultiplexServer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *MultiplexServer) shutdown() {
	s.once.Do(func() {
		if s.pool != nil {
			s.pool.Close()
		}
		if s.poller != nil {
			s.poller.Close()
		}
		if s.listener != nil {
			s.listener.Close()
		}
	})
}

// Close stops the loop and closes every pooled connection. If Serve is
// running, Close waits for it to return.
func (s *MultiplexServer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	serving := s.serving
	s.mu.Unlock()

	if serving {
		<-s.done
		return nil
	}

	s.shutdown()
	return nil
}

func (s *MultiplexServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

func (s *MultiplexServer) Stats() ServerStats {
	s.mu.Lock()
	connPool, address := s.pool, s.address
	s.mu.Unlock()

	var active int64
	if connPool != nil {
		active = int64(connPool.Len())
	}

	return ServerStats{
		ActiveConnections:   active,
		TotalConnections:    atomic.LoadInt64(&s.totalConnections),
		RejectedConnections: atomic.LoadInt64(&s.rejectedConnections),
		Address:             address,
	}
}

// PoolStats returns the slot table usage. Before Listen it is the zero value.
func (s *MultiplexServer) PoolStats() pool.PoolStats {
	s.mu.Lock()
	connPool := s.pool
	s.mu.Unlock()

	if connPool == nil {
		return pool.PoolStats{}
	}
	return connPool.Stats()
}

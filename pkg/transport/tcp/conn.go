// Kunhua Huang 2026

package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
)

// serveConn runs one receive -> handle -> send transaction. The caller owns
// conn and closes it afterwards, whatever the outcome.
func serveConn(ctx context.Context, conn net.Conn, handler transport.Handler, opts *transport.ServerOptions) error {
	if opts.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline failed: %w", err)
		}
	}

	req, err := protocol.ReadPacket(conn, opts.MaxPayloadSize)
	if err != nil {
		return fmt.Errorf("read request failed: %w", err)
	}

	resp, err := handler(transport.ContextWithPeer(ctx, conn.RemoteAddr()), req)
	if err != nil {
		return fmt.Errorf("handle request failed: %w", err)
	}

	if opts.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline failed: %w", err)
		}
	}

	if _, err := resp.WriteTo(conn); err != nil {
		return fmt.Errorf("write response failed: %w", err)
	}

	return nil
}

func tuneConn(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcpConn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := tcpConn.SetKeepAlivePeriod(30 * time.Second); err != nil {
		return err
	}
	return tcpConn.SetNoDelay(true)
}

// logConnResult reports how a transaction ended. Protocol violations are
// warnings, a peer that hung up before sending anything is routine.
func logConnResult(logger *slog.Logger, remote net.Addr, err error) {
	switch {
	case err == nil:
		logger.Debug("transaction completed", slog.String("remote", addrString(remote)))
	case protocol.IsViolation(err):
		logger.Warn("rejected packet", slog.String("remote", addrString(remote)), slog.Any("error", err))
	case protocol.IsTransportError(err):
		logger.Info("connection dropped", slog.String("remote", addrString(remote)), slog.Any("error", err))
	default:
		logger.Error("transaction failed", slog.String("remote", addrString(remote)), slog.Any("error", err))
	}
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

// fdOf returns the descriptor behind a socket without taking ownership of it.
func fdOf(c any) (int, error) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return -1, errors.New("connection does not expose a file descriptor")
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("syscall conn: %w", err)
	}

	fd := -1
	if err := raw.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1, fmt.Errorf("control: %w", err)
	}
	return fd, nil
}

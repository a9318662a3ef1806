//Kunhua Huang 2026

package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/transport"
)

// Client carries a single request over a single connection. The server
// closes after replying, so a Client is dialed again for every request.
type Client struct {
	address   string
	opts      *transport.ClientOptions
	conn      net.Conn
	connected bool
	mu        sync.RWMutex // protects connected and conn
	sendMu    sync.Mutex   // protects send operations
}

var _ transport.ClientTransport = (*Client)(nil)

func NewClient(address string, options ...transport.ClientOption) *Client {
	opts := transport.DefaultClientOptions()

	for _, o := range options {
		o(opts)
	}

	return &Client{
		address: address,
		opts:    opts,
	}
}

func (c *Client) Dial(ctx context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected to: %s", c.conn.RemoteAddr().String())
	}

	addr := address
	if addr == "" {
		addr = c.address
	}

	dialer := &net.Dialer{
		Timeout:   c.opts.DialTimeout,
		KeepAlive: c.opts.KeepAlivePeriod,
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &protocol.TransportError{Op: "dial " + addr, Err: err}
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if c.opts.KeepAlive {
			if err := tcpConn.SetKeepAlive(true); err != nil {
				_ = conn.Close()
				return fmt.Errorf("set keep-alive failed: %w", err)
			}

			if err := tcpConn.SetKeepAlivePeriod(c.opts.KeepAlivePeriod); err != nil {
				_ = conn.Close()
				return fmt.Errorf("set keep-alive period failed: %w", err)
			}
		}

		if err := tcpConn.SetNoDelay(true); err != nil {
			_ = conn.Close()
			return fmt.Errorf("set no delay failed: %w", err)
		}
	}

	c.conn = conn
	c.connected = true
	c.address = addr

	return nil
}

// RoundTrip writes req exactly as given and reads one reply packet. The
// reply is returned unverified.
func (c *Client) RoundTrip(ctx context.Context, req *protocol.Packet) (*protocol.Packet, error) {
	c.mu.RLock()
	if !c.connected || c.conn == nil {
		c.mu.RUnlock()
		return nil, fmt.Errorf("not connected, call Dial() first")
	}
	conn := c.conn
	c.mu.RUnlock()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := conn.SetWriteDeadline(c.deadline(ctx, c.opts.WriteTimeout)); err != nil {
		return nil, fmt.Errorf("set write deadline failed: %w", err)
	}

	if _, err := req.WriteTo(conn); err != nil {
		return nil, fmt.Errorf("write request failed: %w", err)
	}

	if err := conn.SetReadDeadline(c.deadline(ctx, c.opts.ReadTimeout)); err != nil {
		return nil, fmt.Errorf("set read deadline failed: %w", err)
	}

	resp, err := protocol.ReadPacket(conn, c.opts.MaxPayloadSize)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	// Clear deadlines
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clear deadline failed: %w", err)
	}

	return resp, nil
}

func (c *Client) deadline(ctx context.Context, fallback time.Duration) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	if fallback <= 0 {
		return time.Time{}
	}
	return time.Now().Add(fallback)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("close connection failed: %w", err)
		}
		c.conn = nil
	}

	c.connected = false

	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) LocalAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn != nil {
		return c.conn.LocalAddr()
	}

	return nil
}

func (c *Client) RemoteAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn != nil {
		return c.conn.RemoteAddr()
	}

	return nil
}

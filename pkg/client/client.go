// Kunhua Huang 2026

package client

import (
	"context"
	"fmt"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
	"github.com/ecstasoy/CipherInGo/pkg/transport/tcp"
)

// Client sends one packet per connection to a fixed server address and
// verifies every reply before handing it back.
type Client struct {
	address string
	opts    *clientOptions
}

func NewClient(address string, opts ...Option) *Client {
	options := defaultOptions()
	for _, o := range opts {
		o(options)
	}

	return &Client{
		address: address,
		opts:    options,
	}
}

func (c *Client) Encrypt(ctx context.Context, keyword string, payload []byte) ([]byte, error) {
	return c.Do(ctx, protocol.OpEncrypt, keyword, payload)
}

func (c *Client) Decrypt(ctx context.Context, keyword string, payload []byte) ([]byte, error) {
	return c.Do(ctx, protocol.OpDecrypt, keyword, payload)
}

// Do seals a packet for op and returns the verified reply payload. The
// keyword is truncated or zero padded to four bytes.
func (c *Client) Do(ctx context.Context, op protocol.Operation, keyword string, payload []byte) ([]byte, error) {
	req := protocol.NewPacket(op, keyword, payload)
	req.Seal()

	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := protocol.Verify(resp); err != nil {
		return nil, mapError(fmt.Errorf("verify reply: %w", err))
	}

	return resp.Payload, nil
}

// Send writes req as is, without sealing it, and returns the unverified
// reply.
func (c *Client) Send(ctx context.Context, req *protocol.Packet) (*protocol.Packet, error) {
	if c.opts.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.callTimeout)
		defer cancel()
	}

	conn := tcp.NewClient(c.address, c.opts.transportOptions()...)
	if err := conn.Dial(ctx, ""); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	resp, err := conn.RoundTrip(ctx, req)
	if err != nil {
		return nil, mapError(fmt.Errorf("%s %s: %w", req.Operation, c.address, err))
	}

	return resp, nil
}

func (c *Client) Address() string {
	return c.address
}

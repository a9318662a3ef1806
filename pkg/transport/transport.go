// Kunhua Huang 2026

package transport

import (
	"context"
	"net"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

// Every connection carries exactly one request packet and at most one reply.

type ClientTransport interface {
	Dial(ctx context.Context, addr string) error
	RoundTrip(ctx context.Context, req *protocol.Packet) (*protocol.Packet, error)
	Close() error
	IsConnected() bool
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

type ServerTransport interface {
	Listen(ctx context.Context, addr string) error
	Serve(ctx context.Context, handler Handler) error
	Close() error
	Addr() net.Addr
}

// Handler turns a request packet into the reply packet. Returning an error
// closes the connection without a reply.
type Handler func(ctx context.Context, req *protocol.Packet) (*protocol.Packet, error)

// Observer is told about connection lifecycle events on the server side.
type Observer interface {
	ConnAccepted(remote net.Addr)
	ConnRejected(remote net.Addr, reason error)
	ConnClosed(remote net.Addr, err error)
}

type nopObserver struct{}

func (nopObserver) ConnAccepted(net.Addr)        {}
func (nopObserver) ConnRejected(net.Addr, error) {}
func (nopObserver) ConnClosed(net.Addr, error)   {}

type peerKey struct{}

// ContextWithPeer attaches the remote address of the connection being served.
func ContextWithPeer(ctx context.Context, addr net.Addr) context.Context {
	return context.WithValue(ctx, peerKey{}, addr)
}

func PeerFromContext(ctx context.Context) (net.Addr, bool) {
	addr, ok := ctx.Value(peerKey{}).(net.Addr)
	return addr, ok && addr != nil
}

// Kunhua Huang 2026

package client

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

var (
	// ErrRejected means the server closed the connection without replying,
	// which is how it reports a bad checksum, an unknown operation, a full
	// pool or a rate limit.
	ErrRejected = errors.New("server closed the connection without a reply")
	// ErrBadReply means the reply failed checksum verification.
	ErrBadReply = errors.New("reply failed checksum verification")
)

// mapError turns the low-level failure of a call into the client's
// sentinel errors where one applies. The original error stays in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, protocol.ErrChecksumMismatch) {
		return errors.Join(ErrBadReply, err)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return err
		}
		return errors.Join(ErrRejected, err)
	}

	return err
}

package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedLength  = errors.New("protocol: length field smaller than header")
	ErrPayloadTooLarge  = errors.New("protocol: payload exceeds size limit")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
	ErrUnknownOperation = errors.New("protocol: unknown operation")
)

// TransportError marks a read or write failure on the underlying stream,
// as opposed to a packet that arrived intact but violates the protocol.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsViolation reports whether err means the peer broke the protocol.
func IsViolation(err error) bool {
	return errors.Is(err, ErrMalformedLength) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrUnknownOperation)
}

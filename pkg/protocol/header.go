// Kunhua Huang 2026

package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderLength = 16
	KeywordSize  = 4

	// MaxPayloadSize bounds the allocation made for a single payload.
	MaxPayloadSize uint64 = 10 * 1024 * 1024

	// PayloadSizeLimit is the largest payload accepted whatever the
	// configured max.
	PayloadSizeLimit uint64 = 1 << 31
)

type Operation int16

const (
	OpEncrypt Operation = 0
	OpDecrypt Operation = 1
)

func (op Operation) String() string {
	switch op {
	case OpEncrypt:
		return "encrypt"
	case OpDecrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("unknown(%d)", int16(op))
	}
}

func (op Operation) Valid() bool {
	return op == OpEncrypt || op == OpDecrypt
}

// Header Structure
// Fixed length: 16 bytes
//
// Byte layout:
//   0  1  2  3  4  5  6  7  8  9  10 11 12 13 14 15
//  +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//  | Op  |Csum |  Keyword  |        Length         |
//  +--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//
// Length counts the header itself, so an empty payload has Length == 16.

type Header struct {
	Operation Operation
	Checksum  uint16
	Keyword   [KeywordSize]byte
	Length    uint64
}

func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderLength)
	h.put(buf)
	return buf
}

func (h *Header) put(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.Operation))
	binary.BigEndian.PutUint16(buf[2:4], h.Checksum)
	copy(buf[4:8], h.Keyword[:])
	binary.BigEndian.PutUint64(buf[8:16], h.Length)
}

// Decode parses buf into h. It does not check Length; see PayloadSize.
func (h *Header) Decode(buf []byte) error {
	if len(buf) < HeaderLength {
		return fmt.Errorf("invalid header length: %d, expected: %d", len(buf), HeaderLength)
	}

	h.Operation = Operation(binary.BigEndian.Uint16(buf[0:2]))
	h.Checksum = binary.BigEndian.Uint16(buf[2:4])
	copy(h.Keyword[:], buf[4:8])
	h.Length = binary.BigEndian.Uint64(buf[8:16])

	return nil
}

// PayloadSize validates the length field against the header size and max
// and returns the number of payload bytes that follow the header.
func (h *Header) PayloadSize(max uint64) (uint64, error) {
	if h.Length < HeaderLength {
		return 0, fmt.Errorf("%w: length field %d", ErrMalformedLength, h.Length)
	}

	size := h.Length - HeaderLength
	if max == 0 || max > PayloadSizeLimit {
		max = PayloadSizeLimit
	}
	if size > max {
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, size, max)
	}

	return size, nil
}

func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	err := h.Decode(buf)
	return h, err
}

func (h *Header) String() string {
	return fmt.Sprintf(
		"Header{Op=%s, Checksum=0x%04X, Keyword=%q, Length=%d}",
		h.Operation,
		h.Checksum,
		h.Keyword[:],
		h.Length,
	)
}

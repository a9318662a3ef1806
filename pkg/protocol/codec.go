// Kunhua Huang 2026

package protocol

import (
	"errors"
	"fmt"
	"io"
)

// Encode serializes the packet into its exact wire representation.
func (p *Packet) Encode() []byte {
	buf := make([]byte, p.Size())
	p.Header.put(buf[:HeaderLength])
	copy(buf[HeaderLength:], p.Payload)
	return buf
}

// WriteTo writes the whole packet to w, retrying short writes until every
// byte is flushed. It implements io.WriterTo.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	if p.Length < HeaderLength || uint64(len(p.Payload)) != p.Length-HeaderLength {
		return 0, fmt.Errorf("%w: length field %d, payload %d bytes", ErrMalformedLength, p.Length, len(p.Payload))
	}

	n, err := writeFull(w, p.Encode())
	if err != nil {
		return int64(n), &TransportError{Op: "write packet", Err: err}
	}
	return int64(n), nil
}

// ReadPacket reads one packet from r. The header is validated before the
// payload buffer is allocated; maxPayload of zero means MaxPayloadSize.
// A stream that ends part way through the packet yields a TransportError
// wrapping io.ErrUnexpectedEOF.
func ReadPacket(r io.Reader, maxPayload uint64) (*Packet, error) {
	if maxPayload == 0 {
		maxPayload = MaxPayloadSize
	}

	var headerBytes [HeaderLength]byte
	if _, err := io.ReadFull(r, headerBytes[:]); err != nil {
		return nil, &TransportError{Op: "read header", Err: err}
	}

	p := &Packet{}
	if err := p.Header.Decode(headerBytes[:]); err != nil {
		return nil, fmt.Errorf("decode header error: %w", err)
	}

	size, err := p.Header.PayloadSize(maxPayload)
	if err != nil {
		return nil, err
	}

	p.Payload = make([]byte, size)
	if _, err := io.ReadFull(r, p.Payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &TransportError{Op: "read payload", Err: err}
	}

	return p, nil
}

func writeFull(w io.Writer, b []byte) (int, error) {
	total := 0
	for len(b) > 0 {
		n, err := w.Write(b)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
		b = b[n:]
	}
	return total, nil
}

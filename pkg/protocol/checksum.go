// Kunhua Huang 2026

package protocol

import (
	"encoding/binary"
	"fmt"
)

// The checksum is the 16-bit one's complement of the one's complement sum
// of the packet, accumulated 64 bits at a time with end-around carry and
// folded down to 16 bits. Words are read big endian from the wire bytes so
// the value does not depend on the host.
// ref: http://locklessinc.com/articles/tcp_checksum/

type accumulator uint64

func (a *accumulator) add(s uint64) {
	*a += accumulator(s)
	if uint64(*a) < s {
		*a++
	}
}

// write consumes buf in 8-byte words followed by 4, 2 and 1 byte tails.
// Only the last write may leave a tail; the header is exactly two words.
func (a *accumulator) write(buf []byte) {
	for len(buf) >= 8 {
		a.add(binary.BigEndian.Uint64(buf))
		buf = buf[8:]
	}

	if len(buf)&4 != 0 {
		a.add(uint64(binary.BigEndian.Uint32(buf)))
		buf = buf[4:]
	}

	if len(buf)&2 != 0 {
		a.add(uint64(binary.BigEndian.Uint16(buf)))
		buf = buf[2:]
	}

	if len(buf) != 0 {
		a.add(uint64(buf[0]))
	}
}

func (a accumulator) fold() uint16 {
	t1 := uint32(a)
	t2 := uint32(a >> 32)
	t1 += t2
	if t1 < t2 {
		t1++
	}

	t3 := uint16(t1)
	t4 := uint16(t1 >> 16)
	t3 += t4
	if t3 < t4 {
		t3++
	}

	return ^t3
}

// Sum computes the checksum over raw bytes.
func Sum(buf []byte) uint16 {
	var a accumulator
	a.write(buf)
	return a.fold()
}

// Checksum computes the checksum over the packet's header, exactly as it is
// now, followed by the payload. The checksum field must already be zero;
// Seal and Verify take care of that.
func Checksum(p *Packet) uint16 {
	var header [HeaderLength]byte
	p.Header.put(header[:])

	var a accumulator
	a.write(header[:])
	a.write(p.Payload)
	return a.fold()
}

// Seal zeroes the checksum field, recomputes it and stores the result.
func (p *Packet) Seal() {
	p.Checksum = 0
	p.Checksum = Checksum(p)
}

// Verify zeroes the checksum field, recomputes it and compares against the
// value that was received. The received value is left in place.
func Verify(p *Packet) error {
	if p.Length < HeaderLength {
		return fmt.Errorf("%w: length field %d", ErrMalformedLength, p.Length)
	}

	received := p.Checksum
	p.Checksum = 0
	calculated := Checksum(p)
	p.Checksum = received

	if received != calculated {
		return fmt.Errorf("%w: received 0x%04X, calculated 0x%04X", ErrChecksumMismatch, received, calculated)
	}
	return nil
}

// Kunhua Huang 2026

// Package protocol defines the cipher packet wire format: a fixed 16-byte
// header followed by the payload, and the checksum that guards both.
package protocol

import "fmt"

// Packet is the only entity on the wire. A packet is used for exactly one
// request or reply; it is never reused.
type Packet struct {
	Header
	Payload []byte
}

// NewPacket builds an unsealed packet. The payload is copied so the packet
// owns its bytes. Keywords longer than KeywordSize are truncated, shorter
// ones are zero padded.
func NewPacket(op Operation, keyword string, payload []byte) *Packet {
	p := &Packet{}
	p.Operation = op
	p.SetKeyword(keyword)
	p.SetPayload(payload)
	return p
}

func (p *Packet) SetKeyword(keyword string) {
	p.Keyword = [KeywordSize]byte{}
	copy(p.Keyword[:], keyword)
}

// SetPayload replaces the payload with a copy of data and updates Length.
func (p *Packet) SetPayload(data []byte) {
	p.Payload = make([]byte, len(data))
	copy(p.Payload, data)
	p.Length = HeaderLength + uint64(len(data))
}

func (p *Packet) KeywordString() string {
	return string(p.Keyword[:])
}

// Size is the number of bytes the packet occupies on the wire.
func (p *Packet) Size() int {
	return HeaderLength + len(p.Payload)
}

func (p *Packet) String() string {
	return fmt.Sprintf("Packet{%s, Payload=%d bytes}", p.Header.String(), len(p.Payload))
}

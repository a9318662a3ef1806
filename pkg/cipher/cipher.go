// Kunhua Huang 2026

// Package cipher implements the repeating four-letter keyword shift applied
// to packet payloads. It is a classroom substitution cipher and offers no
// confidentiality.
package cipher

import (
	"fmt"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

const alphabet = 26

// Encrypt lower-cases payload in place and shifts every letter forward by
// the rank of the current keyword letter. The keyword position only advances
// on letters.
func Encrypt(payload []byte, keyword [protocol.KeywordSize]byte) {
	shift(payload, keyword, 1)
}

// Decrypt reverses Encrypt. Case is not restored.
func Decrypt(payload []byte, keyword [protocol.KeywordSize]byte) {
	shift(payload, keyword, -1)
}

// Apply runs the transform selected by op.
func Apply(op protocol.Operation, payload []byte, keyword [protocol.KeywordSize]byte) error {
	switch op {
	case protocol.OpEncrypt:
		Encrypt(payload, keyword)
	case protocol.OpDecrypt:
		Decrypt(payload, keyword)
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnknownOperation, op)
	}
	return nil
}

// ApplyPacket transforms the packet payload and reseals its checksum.
func ApplyPacket(p *protocol.Packet) error {
	if err := Apply(p.Operation, p.Payload, p.Keyword); err != nil {
		return err
	}
	p.Seal()
	return nil
}

func shift(payload []byte, keyword [protocol.KeywordSize]byte, dir int) {
	var offsets [protocol.KeywordSize]int
	for i, k := range keyword {
		offsets[i] = int(toLower(k)) - 'a'
	}

	key := 0
	for i, b := range payload {
		b = toLower(b)
		if isLower(b) {
			c := int(b-'a') + dir*offsets[key]
			c %= alphabet
			if c < 0 {
				c += alphabet
			}
			b = byte('a' + c)

			key = (key + 1) % protocol.KeywordSize
		}
		payload[i] = b
	}
}

// ValidKeyword reports whether keyword is exactly four ASCII letters.
func ValidKeyword(keyword string) bool {
	if len(keyword) != protocol.KeywordSize {
		return false
	}
	for i := 0; i < len(keyword); i++ {
		if !isLower(toLower(keyword[i])) {
			return false
		}
	}
	return true
}

func toLower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func isLower(b byte) bool {
	return b >= 'a' && b <= 'z'
}

package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumKnownValue(t *testing.T) {
	// header words 0x0000000061626364 and 0x0000000000000010, no payload
	p := NewPacket(OpEncrypt, "abcd", nil)
	p.Seal()

	assert.Equal(t, uint16(0x3B29), p.Checksum)
}

func TestSumTails(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want uint16
	}{
		{"empty", nil, 0xFFFF},
		{"one byte", []byte{0x01}, ^uint16(0x0001)},
		{"two bytes", []byte{0x12, 0x34}, ^uint16(0x1234)},
		{"three bytes", []byte{0x12, 0x34, 0x05}, ^uint16(0x1239)},
		{"four bytes", []byte{0x00, 0x01, 0x00, 0x02}, ^uint16(0x0003)},
		{"carry folds back", []byte{0xFF, 0xFF, 0x00, 0x02}, ^uint16(0x0002)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sum(tc.buf))
		})
	}
}

func TestChecksumMatchesSumOverWireBytes(t *testing.T) {
	for _, payload := range [][]byte{nil, []byte("x"), []byte("hello"), bytes.Repeat([]byte{0xFF}, 1031)} {
		p := NewPacket(OpDecrypt, "qrst", payload)
		p.Seal()

		zeroed := p.Encode()
		zeroed[2], zeroed[3] = 0, 0

		assert.Equal(t, Sum(zeroed), p.Checksum)
	}
}

func TestChecksumDeterministic(t *testing.T) {
	a := NewPacket(OpEncrypt, "abcd", []byte("The quick brown fox"))
	b := NewPacket(OpEncrypt, "abcd", []byte("The quick brown fox"))
	a.Seal()
	b.Seal()

	assert.Equal(t, a.Checksum, b.Checksum)

	before := a.Checksum
	a.Seal()
	assert.Equal(t, before, a.Checksum)
}

func TestChecksumDetectsSingleByteChange(t *testing.T) {
	p := NewPacket(OpEncrypt, "abcd", []byte("attack at dawn!"))
	p.Checksum = 0
	wire := p.Encode()
	original := Sum(wire)

	for i := range wire {
		if i == 2 || i == 3 {
			continue
		}
		corrupted := bytes.Clone(wire)
		corrupted[i] ^= 0x01

		assert.NotEqual(t, original, Sum(corrupted), "flipping byte %d went unnoticed", i)
	}
}

func TestVerifyAcceptsSealedPacket(t *testing.T) {
	p := NewPacket(OpDecrypt, "abcd", []byte("hello"))
	p.Seal()

	require.NoError(t, Verify(p))
	assert.NotZero(t, p.Checksum, "verify must leave the received checksum in place")
}

func TestVerifyRejectsCorruption(t *testing.T) {
	p := NewPacket(OpEncrypt, "abcd", []byte("hello"))
	p.Seal()

	p.Payload[0] = 'j'
	assert.ErrorIs(t, Verify(p), ErrChecksumMismatch)

	p.Payload[0] = 'h'
	p.Checksum++
	assert.ErrorIs(t, Verify(p), ErrChecksumMismatch)
}

func TestVerifyRejectsMalformedLength(t *testing.T) {
	p := &Packet{}
	p.Length = 10

	assert.ErrorIs(t, Verify(p), ErrMalformedLength)
}

func TestChecksumRequiresZeroedField(t *testing.T) {
	p := NewPacket(OpEncrypt, "abcd", []byte("hello"))
	p.Seal()
	require.NotZero(t, p.Checksum)

	// skipping the zeroing step folds the stored checksum into the sum,
	// so a perfectly valid packet would no longer match
	assert.NotEqual(t, p.Checksum, Checksum(p))
	assert.NoError(t, Verify(p))
}

package cipher

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/CipherInGo/pkg/protocol"
)

func kw(s string) [protocol.KeywordSize]byte {
	var k [protocol.KeywordSize]byte
	copy(k[:], s)
	return k
}

func TestEncryptHello(t *testing.T) {
	payload := []byte("Hello")
	Encrypt(payload, kw("abcd"))
	assert.Equal(t, "hfnoo", string(payload))

	Decrypt(payload, kw("abcd"))
	assert.Equal(t, "hello", string(payload))
}

func TestEncryptWrapsAroundZ(t *testing.T) {
	payload := []byte("xyz")
	Encrypt(payload, kw("dddd"))
	assert.Equal(t, "abc", string(payload))

	Decrypt(payload, kw("dddd"))
	assert.Equal(t, "xyz", string(payload))
}

func TestNonLettersDoNotAdvanceKeyword(t *testing.T) {
	payload := []byte("a b-c\nd!a")
	Encrypt(payload, kw("abcd"))

	// letters a,b,c,d,a take shifts 0,1,2,3,0
	assert.Equal(t, "a c-e\ng!a", string(payload))
}

func TestUppercaseKeywordIsFolded(t *testing.T) {
	lower := []byte("some text")
	upper := []byte("some text")

	Encrypt(lower, kw("key"+"s"))
	Encrypt(upper, kw("KEYS"))
	assert.Equal(t, lower, upper)
}

func TestRoundTripLowercases(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		payload := make([]byte, r.IntN(256))
		for j := range payload {
			payload[j] = byte(r.IntN(128))
		}

		var key [protocol.KeywordSize]byte
		for j := range key {
			key[j] = byte('a' + r.IntN(26))
			if r.IntN(2) == 0 {
				key[j] -= 'a' - 'A'
			}
		}

		want := bytes.ToLower(payload)

		got := bytes.Clone(payload)
		Encrypt(got, key)
		Decrypt(got, key)

		require.Equal(t, want, got, "keyword %q payload %q", key[:], payload)
	}
}

func TestApplyUnknownOperation(t *testing.T) {
	payload := []byte("Hello")
	err := Apply(protocol.Operation(2), payload, kw("abcd"))

	assert.ErrorIs(t, err, protocol.ErrUnknownOperation)
	assert.Equal(t, "Hello", string(payload), "payload must be untouched")
}

func TestApplyPacketReseals(t *testing.T) {
	p := protocol.NewPacket(protocol.OpEncrypt, "abcd", []byte("Hello"))
	p.Seal()
	before := p.Checksum

	require.NoError(t, ApplyPacket(p))

	assert.Equal(t, "hfnoo", string(p.Payload))
	assert.NotEqual(t, before, p.Checksum)
	assert.NoError(t, protocol.Verify(p))
}

func TestValidKeyword(t *testing.T) {
	assert.True(t, ValidKeyword("abcd"))
	assert.True(t, ValidKeyword("AbCd"))
	assert.False(t, ValidKeyword("abc"))
	assert.False(t, ValidKeyword("abcde"))
	assert.False(t, ValidKeyword("ab1d"))
	assert.False(t, ValidKeyword(""))
}

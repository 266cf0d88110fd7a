package ledger

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeAddress_RoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	addr := EncodeAddress(pub)
	assert.True(t, addr.IsValid())

	decoded, err := DecodeAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, pub, decoded)
}

func TestDecodeAddress_ChecksumMismatch(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	addr := []byte(EncodeAddress(pub))
	// Flip a character inside the encoded public key region.
	if addr[0] == 'A' {
		addr[0] = 'B'
	} else {
		addr[0] = 'A'
	}

	_, err = DecodeAddress(Address(addr))
	assert.Error(t, err)
}

func TestDecodeAddress_Malformed(t *testing.T) {
	_, err := DecodeAddress("not-base32!")
	assert.Error(t, err)

	_, err = DecodeAddress("MFRGG")
	assert.Error(t, err)
}

func TestAccountFromSeed_DerivesStableAddress(t *testing.T) {
	seed := "8f0e8a51c7e0d1b3a5c9427e6f1d2b38405162738495a6b7c8d9e0f1a2b3c4d5"

	a, err := AccountFromSeed(seed)
	require.NoError(t, err)
	b, err := AccountFromSeed(seed)
	require.NoError(t, err)

	assert.Equal(t, a.Address, b.Address)
	assert.True(t, a.Address.IsValid())
}

func TestAccountFromSeed_RejectsBadSeeds(t *testing.T) {
	_, err := AccountFromSeed("zz")
	assert.Error(t, err)

	_, err = AccountFromSeed("abcd")
	assert.Error(t, err)
}

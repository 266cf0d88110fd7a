package ledger

import (
	"crypto/ed25519"
	"crypto/sha512"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() SuggestedParams {
	return SuggestedParams{
		Fee:         1000,
		FirstValid:  5000,
		LastValid:   6000,
		GenesisID:   "testnet-v1.0",
		GenesisHash: []byte("genesis-hash-genesis-hash-32b!!!"),
	}
}

func testAccount(t *testing.T) *Account {
	t.Helper()
	account, err := AccountFromSeed("8f0e8a51c7e0d1b3a5c9427e6f1d2b38405162738495a6b7c8d9e0f1a2b3c4d5")
	require.NoError(t, err)
	return account
}

func TestNewAssetCreate_TruncatesAssetName(t *testing.T) {
	account := testAccount(t)
	digest := sha512.Sum512_256([]byte("metadata"))

	longName := strings.Repeat("Doctor of Philosophy ", 4)
	txn, err := NewAssetCreate(account.Address, testParams(), "DEGREE", longName, "ipfs://Qm123", digest[:])
	require.NoError(t, err)

	assert.Len(t, txn.AssetParams.AssetName, maxAssetNameLen)
	assert.Equal(t, uint64(1), txn.AssetParams.Total)
	assert.Equal(t, uint32(0), txn.AssetParams.Decimals)
}

func TestNewAssetCreate_RejectsShortCommitment(t *testing.T) {
	account := testAccount(t)

	_, err := NewAssetCreate(account.Address, testParams(), "DEGREE", "BSc", "ipfs://Qm123", []byte("short"))
	assert.Error(t, err)
}

func TestTransaction_EncodeIsDeterministic(t *testing.T) {
	account := testAccount(t)
	digest := sha512.Sum512_256([]byte("metadata"))

	build := func() *Transaction {
		txn, err := NewAssetCreate(account.Address, testParams(), "DEGREE", "BSc Computer Science", "ipfs://Qm123", digest[:])
		require.NoError(t, err)
		return txn
	}

	encA, err := build().Encode()
	require.NoError(t, err)
	encB, err := build().Encode()
	require.NoError(t, err)
	assert.Equal(t, encA, encB)

	idA, err := build().ID()
	require.NoError(t, err)
	idB, err := build().ID()
	require.NoError(t, err)
	assert.Equal(t, idA, idB)
}

func TestTransaction_SignVerifies(t *testing.T) {
	account := testAccount(t)

	txn := NewAssetTransfer(account.Address, testParams(), 501, account.Address)
	signed, err := txn.Sign(account)
	require.NoError(t, err)

	enc, err := txn.Encode()
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(account.PublicKey, append([]byte("TX"), enc...), signed.Sig))
}

func TestTransaction_SignRejectsWrongSender(t *testing.T) {
	account := testAccount(t)
	other, err := AccountFromSeed("00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	require.NoError(t, err)

	txn := NewAssetTransfer(other.Address, testParams(), 501, account.Address)
	_, err = txn.Sign(account)
	assert.Error(t, err)
}

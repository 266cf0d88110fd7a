package ledger

import (
	"crypto/ed25519"
	"encoding/hex"

	dErrors "credchain/pkg/domain-errors"
)

// Account is a signing identity on the ledger. The issuance engine holds one
// process-wide account for the issuing authority's operational wallet.
type Account struct {
	Address    Address
	PublicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// AccountFromSeed builds an account from a hex-encoded 32-byte ed25519 seed.
func AccountFromSeed(seedHex string) (*Account, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "issuer seed is not valid hex")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, dErrors.New(dErrors.CodeConfiguration, "issuer seed must be 32 bytes")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Account{
		Address:    EncodeAddress(pub),
		PublicKey:  pub,
		privateKey: priv,
	}, nil
}

// Sign produces an ed25519 signature over msg.
func (a *Account) Sign(msg []byte) []byte {
	return ed25519.Sign(a.privateKey, msg)
}

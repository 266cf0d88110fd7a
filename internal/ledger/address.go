// Package ledger provides the client, account, and transaction primitives for
// the distributed ledger the issuance engine mints credential tokens on.
package ledger

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/base32"

	dErrors "credchain/pkg/domain-errors"
)

// Address is the checksummed, base32-encoded form of an account's public key.
type Address string

const addressChecksumLen = 4

// base32 without padding; ledger addresses are fixed-length so padding adds nothing.
var addrEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeAddress derives the canonical address for an ed25519 public key:
// base32(pubkey || last 4 bytes of sha512/256(pubkey)).
func EncodeAddress(pub ed25519.PublicKey) Address {
	checksum := sha512.Sum512_256(pub)
	raw := make([]byte, 0, ed25519.PublicKeySize+addressChecksumLen)
	raw = append(raw, pub...)
	raw = append(raw, checksum[len(checksum)-addressChecksumLen:]...)
	return Address(addrEncoding.EncodeToString(raw))
}

// DecodeAddress recovers the public key from an address and verifies its checksum.
func DecodeAddress(addr Address) (ed25519.PublicKey, error) {
	raw, err := addrEncoding.DecodeString(string(addr))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "malformed ledger address")
	}
	if len(raw) != ed25519.PublicKeySize+addressChecksumLen {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ledger address has wrong length")
	}
	pub := raw[:ed25519.PublicKeySize]
	checksum := sha512.Sum512_256(pub)
	if !bytes.Equal(raw[ed25519.PublicKeySize:], checksum[len(checksum)-addressChecksumLen:]) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ledger address checksum mismatch")
	}
	return ed25519.PublicKey(pub), nil
}

// IsValid reports whether the address decodes with a valid checksum.
func (a Address) IsValid() bool {
	_, err := DecodeAddress(a)
	return err == nil
}

func (a Address) String() string { return string(a) }

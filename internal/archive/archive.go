// Package archive uploads evidence and metadata to content-addressed storage
// and computes integrity digests independently of the provider.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	dErrors "credchain/pkg/domain-errors"
)

// Storage is the content-addressed storage provider. It accepts bytes and
// returns a provider-assigned locator.
type Storage interface {
	Put(ctx context.Context, data []byte, name string) (string, error)
}

// Archive wraps a storage provider with local digest computation. The digest
// is a pure function of the byte content: anyone who later fetches the bytes
// from the locator can recompute and compare it, so the on-chain commitment
// does not depend on trusting the provider.
type Archive struct {
	storage Storage
}

// New creates an archive over the given storage provider.
func New(storage Storage) *Archive {
	return &Archive{storage: storage}
}

// Store uploads raw bytes and returns the provider locator alongside the
// locally computed sha256 hex digest. The adapter never retries; retry policy
// belongs to the orchestrator.
func (a *Archive) Store(ctx context.Context, data []byte, name string) (locator, digest string, err error) {
	if len(data) == 0 {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "cannot archive empty content")
	}

	locator, err = a.storage.Put(ctx, data, name)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeArchiveUpload, "archive upload failed")
	}
	return locator, Digest(data), nil
}

// StoreMetadata serializes v deterministically, then uploads and digests the
// exact serialized bytes. Non-deterministic encoding would break the digest
// contract, so the canonical bytes are produced once and used for both.
func (a *Archive) StoreMetadata(ctx context.Context, v any, name string) (locator, digest string, err error) {
	data, err := CanonicalJSON(v)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "metadata is not serializable")
	}
	return a.Store(ctx, data, name)
}

// Digest computes the hex sha256 digest over exact byte content.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalJSON renders v in a deterministic byte form: struct fields in
// declaration order, map keys sorted, no insignificant whitespace. Identical
// input always yields identical bytes.
func CanonicalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

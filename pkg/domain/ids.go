// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "credchain/pkg/domain-errors"
)

// Distinct ID types - the compiler prevents passing a RequestID where a
// CredentialID is expected.
type (
	RequestID    uuid.UUID
	CredentialID uuid.UUID
)

// ClaimID is the caller-supplied identifier of an academic claim
// (e.g. "CRED-2024-001"). Globally unique across all requests.
type ClaimID string

// TokenID is a ledger-assigned asset identifier.
type TokenID uint64

// TxRef references a submitted ledger transaction.
type TxRef string

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseRequestID(s string) (RequestID, error) {
	id, err := parseUUID(s, "request ID")
	return RequestID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

func ParseClaimID(s string) (ClaimID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "claim ID cannot be empty")
	}
	return ClaimID(s), nil
}

// String methods - for logging and debugging.

func (id RequestID) String() string    { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id ClaimID) String() string      { return string(id) }
func (id TokenID) String() string      { return strconv.FormatUint(uint64(id), 10) }
func (r TxRef) String() string         { return string(r) }

// IsNil checks - used for service-layer validation.

func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool      { return id == "" }
func (id TokenID) IsNil() bool      { return id == 0 }

// NewRequestID returns a fresh store-assigned request identifier.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewCredentialID returns a fresh issued-credential identifier.
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }

// parseUUID is the shared validation logic. Nil UUIDs are allowed here;
// use IsNil() at the service layer so store lookups can still return
// proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is not a valid UUID")
	}
	return id, nil
}

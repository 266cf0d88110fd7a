// Package request owns the credential request lifecycle: the state machine,
// its persistence contract, and the orchestration around minting.
package request

import (
	"time"

	"credchain/internal/ledger"
	id "credchain/pkg/domain"
)

// Status is the lifecycle state of a credential request.
type Status string

const (
	// StatusPending is the initial state of every submitted request.
	StatusPending Status = "PENDING"
	// StatusApproved is terminal; exactly one issued credential references the request.
	StatusApproved Status = "APPROVED"
	// StatusRejected is terminal; a rejection reason is always present.
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo enforces the only two legal transitions:
// PENDING -> APPROVED and PENDING -> REJECTED.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.Terminal()
}

// Recovery is the persisted checkpoint of a Phase A success followed by a
// Phase B failure. A non-zero TokenID means a minted token is waiting for
// delivery; retrying the approval resumes Phase B with exactly this token.
type Recovery struct {
	TokenID         id.TokenID
	MetadataLocator string
	MetadataDigest  string
	IssuanceTxRef   id.TxRef
}

// Orphaned reports whether a minted-but-undelivered token is recorded.
func (r Recovery) Orphaned() bool {
	return !r.TokenID.IsNil()
}

// CredentialRequest identifies a single claim under review.
type CredentialRequest struct {
	ID              id.RequestID
	ClaimID         id.ClaimID
	Requester       ledger.Address
	ClaimLabel      string
	ClaimYear       int
	EvidenceLocator string
	EvidenceDigest  string
	Status          Status
	RejectionReason string
	Recovery        Recovery
	CreatedAt       time.Time
}

// IssuedCredential is the result of a successful mint, one-to-one with an
// approved request.
type IssuedCredential struct {
	ID              id.CredentialID
	RequestID       id.RequestID
	TokenID         id.TokenID
	MetadataLocator string
	MetadataDigest  string
	IssuanceTxRef   id.TxRef
	CreatedAt       time.Time
}

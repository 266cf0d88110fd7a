package request

import (
	"context"

	"credchain/internal/ledger"
	id "credchain/pkg/domain"
)

// StatusUpdate carries the extra fields applied together with a status flip.
type StatusUpdate struct {
	RejectionReason string
}

// Store is the persistence contract for requests and issued credentials.
// Implementations must enforce claim-ID uniqueness and the from-status guard
// atomically; the orchestrator relies on both to close race windows.
type Store interface {
	// CreateIfAbsent persists a new request unless its claim ID is already
	// taken in any status, in which case it returns sentinel.ErrConflict.
	// The check and the insert are one atomic operation.
	CreateIfAbsent(ctx context.Context, req *CredentialRequest) error

	// ClaimExists reports whether any request holds the claim ID. Advisory
	// only: CreateIfAbsent remains the authoritative uniqueness guard.
	ClaimExists(ctx context.Context, claimID id.ClaimID) (bool, error)

	// GetByID returns the request or sentinel.ErrNotFound.
	GetByID(ctx context.Context, requestID id.RequestID) (*CredentialRequest, error)

	// ListByStatus returns all requests in the given status.
	ListByStatus(ctx context.Context, status Status) ([]*CredentialRequest, error)

	// ListByRequester returns all requests submitted by the given address.
	ListByRequester(ctx context.Context, requester ledger.Address) ([]*CredentialRequest, error)

	// UpdateStatus transitions the request from one status to another with
	// compare-and-swap semantics: if the current status differs from `from`,
	// it returns sentinel.ErrInvalidState and changes nothing.
	UpdateStatus(ctx context.Context, requestID id.RequestID, from, to Status, extra StatusUpdate) error

	// SetRecovery persists the orphan-token checkpoint against the request.
	SetRecovery(ctx context.Context, requestID id.RequestID, rec Recovery) error

	// SaveCredential persists an issued credential. At most one credential
	// may reference a request; a second save returns sentinel.ErrConflict.
	SaveCredential(ctx context.Context, cred *IssuedCredential) error

	// CredentialByRequest returns the credential referencing the request,
	// or sentinel.ErrNotFound.
	CredentialByRequest(ctx context.Context, requestID id.RequestID) (*IssuedCredential, error)
}

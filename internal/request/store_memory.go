package request

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"credchain/internal/ledger"
	"credchain/internal/sentinel"
	id "credchain/pkg/domain"
)

// InMemoryStore keeps requests and credentials in guarded maps. It is safe
// for concurrent access but does not persist across process restarts.
type InMemoryStore struct {
	mu          sync.RWMutex
	requests    map[id.RequestID]*CredentialRequest
	claimIdx    map[id.ClaimID]id.RequestID
	credentials map[id.RequestID]*IssuedCredential
}

// NewInMemoryStore constructs an empty in-memory request store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests:    make(map[id.RequestID]*CredentialRequest),
		claimIdx:    make(map[id.ClaimID]id.RequestID),
		credentials: make(map[id.RequestID]*IssuedCredential),
	}
}

// CreateIfAbsent atomically persists the request unless the claim ID is taken.
func (s *InMemoryStore) CreateIfAbsent(_ context.Context, req *CredentialRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claimIdx[req.ClaimID]; exists {
		return fmt.Errorf("claim ID %s already exists: %w", req.ClaimID, sentinel.ErrConflict)
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	stored := *req
	s.requests[req.ID] = &stored
	s.claimIdx[req.ClaimID] = req.ID
	return nil
}

// ClaimExists reports whether the claim ID is taken in any status.
func (s *InMemoryStore) ClaimExists(_ context.Context, claimID id.ClaimID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.claimIdx[claimID]
	return exists, nil
}

// GetByID retrieves a copy of the request or returns sentinel.ErrNotFound.
func (s *InMemoryStore) GetByID(_ context.Context, requestID id.RequestID) (*CredentialRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(requestID)
}

func (s *InMemoryStore) getLocked(requestID id.RequestID) (*CredentialRequest, error) {
	req, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	cp := *req
	return &cp, nil
}

// ListByStatus returns all requests in the given status, oldest first.
func (s *InMemoryStore) ListByStatus(_ context.Context, status Status) ([]*CredentialRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CredentialRequest
	for _, req := range s.requests {
		if req.Status == status {
			cp := *req
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

// ListByRequester returns all requests submitted by the given address, oldest first.
func (s *InMemoryStore) ListByRequester(_ context.Context, requester ledger.Address) ([]*CredentialRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CredentialRequest
	for _, req := range s.requests {
		if req.Requester == requester {
			cp := *req
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

// UpdateStatus transitions the request with a compare-and-swap on the
// current status.
func (s *InMemoryStore) UpdateStatus(_ context.Context, requestID id.RequestID, from, to Status, extra StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if req.Status != from {
		return fmt.Errorf("request %s is %s, expected %s: %w", requestID, req.Status, from, sentinel.ErrInvalidState)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("transition %s -> %s is not allowed: %w", from, to, sentinel.ErrInvalidState)
	}
	req.Status = to
	if extra.RejectionReason != "" {
		req.RejectionReason = extra.RejectionReason
	}
	return nil
}

// SetRecovery persists the orphan checkpoint against the request.
func (s *InMemoryStore) SetRecovery(_ context.Context, requestID id.RequestID, rec Recovery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	req.Recovery = rec
	return nil
}

// SaveCredential persists an issued credential, at most one per request.
func (s *InMemoryStore) SaveCredential(_ context.Context, cred *IssuedCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[cred.RequestID]; exists {
		return fmt.Errorf("request %s already has a credential: %w", cred.RequestID, sentinel.ErrConflict)
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	stored := *cred
	s.credentials[cred.RequestID] = &stored
	return nil
}

// CredentialByRequest returns the credential referencing the request.
func (s *InMemoryStore) CredentialByRequest(_ context.Context, requestID id.RequestID) (*IssuedCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[requestID]
	if !ok {
		return nil, fmt.Errorf("no credential for request %s: %w", requestID, sentinel.ErrNotFound)
	}
	cp := *cred
	return &cp, nil
}

func sortByCreation(reqs []*CredentialRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}

// Package audit captures structured audit events for credential lifecycle
// decisions. Events are append-only and transport-agnostic.
package audit

import (
	"context"
	"sync"
	"time"
)

// Lifecycle actions recorded by the orchestrator.
const (
	ActionRequestSubmitted   = "request_submitted"
	ActionRequestApproved    = "request_approved"
	ActionRequestRejected    = "request_rejected"
	ActionTokenOrphaned      = "token_orphaned"
	ActionOrphanRecovered    = "orphan_recovered"
	ActionAuthorityForbidden = "authority_forbidden"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Timestamp time.Time
	Action    string
	Actor     string
	Subject   string
	Decision  string
	Reason    string
}

// Publisher accepts audit events from domain logic.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}

// InMemoryStore keeps events in memory; append-only, safe for concurrent use.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryStore creates an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append records an event, stamping the time if unset.
func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns a copy of all recorded events in append order.
func (s *InMemoryStore) List(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...), nil
}

// Emit makes the store usable directly as a Publisher.
func (s *InMemoryStore) Emit(ctx context.Context, event Event) error {
	return s.Append(ctx, event)
}

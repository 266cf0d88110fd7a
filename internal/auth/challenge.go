// Package auth establishes caller identity for ledger account holders.
//
// Identity is proven, never asserted: a caller requests a single-use
// challenge for an address and signs it with the address's key. Roles are
// resolved server-side from the registry, so a session token carries only
// what the server itself derived.
package auth

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/google/uuid"

	"credchain/internal/ledger"
	dErrors "credchain/pkg/domain-errors"
)

const challengeTTL = 2 * time.Minute

// Challenge is a single-use nonce bound to one address.
type Challenge struct {
	Nonce     string
	Address   ledger.Address
	Message   []byte
	ExpiresAt time.Time
}

// ChallengeService issues and verifies login challenges. Challenges are
// held in memory; an unverified challenge simply expires.
type ChallengeService struct {
	mu      sync.Mutex
	pending map[string]Challenge
	now     func() time.Time
}

// NewChallengeService constructs an empty challenge service.
func NewChallengeService() *ChallengeService {
	return &ChallengeService{
		pending: make(map[string]Challenge),
		now:     time.Now,
	}
}

// Issue creates a challenge for the given address. The returned message is
// what the caller must sign with the address's ed25519 key.
func (s *ChallengeService) Issue(_ context.Context, addr ledger.Address) (Challenge, error) {
	if !addr.IsValid() {
		return Challenge{}, dErrors.New(dErrors.CodeInvalidInput, "address is malformed")
	}

	s.purgeExpired()

	nonce := uuid.NewString()
	ch := Challenge{
		Nonce:     nonce,
		Address:   addr,
		Message:   []byte("credchain login " + nonce + " " + addr.String()),
		ExpiresAt: s.now().Add(challengeTTL),
	}

	s.mu.Lock()
	s.pending[nonce] = ch
	s.mu.Unlock()
	return ch, nil
}

// Verify checks the signature over a previously issued challenge. The
// challenge is consumed on every attempt, successful or not, so a
// signature can never be replayed against the same nonce.
func (s *ChallengeService) Verify(_ context.Context, addr ledger.Address, nonce string, sig []byte) error {
	s.mu.Lock()
	ch, ok := s.pending[nonce]
	delete(s.pending, nonce)
	s.mu.Unlock()

	if !ok {
		return dErrors.New(dErrors.CodeForbidden, "unknown or already used challenge")
	}
	if ch.Address != addr {
		return dErrors.New(dErrors.CodeForbidden, "challenge was issued for a different address")
	}
	if s.now().After(ch.ExpiresAt) {
		return dErrors.New(dErrors.CodeForbidden, "challenge expired")
	}

	pub, err := ledger.DecodeAddress(addr)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "address is malformed")
	}
	if !ed25519.Verify(pub, ch.Message, sig) {
		return dErrors.New(dErrors.CodeForbidden, "signature does not match address")
	}
	return nil
}

// purgeExpired drops stale challenges so the map stays bounded.
// Correctness never depends on it because Verify checks expiry itself.
func (s *ChallengeService) purgeExpired() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for nonce, ch := range s.pending {
		if now.After(ch.ExpiresAt) {
			delete(s.pending, nonce)
		}
	}
}

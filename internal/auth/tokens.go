package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"credchain/internal/ledger"
	"credchain/internal/registry"
	dErrors "credchain/pkg/domain-errors"
)

const tokenIssuer = "credchain"

// Role is what a session is allowed to do. Resolved by the server at
// login time, never supplied by the caller.
type Role string

const (
	RoleRequester        Role = "requester"
	RoleIssuingAuthority Role = "issuing_authority"
	RoleRegistryAdmin    Role = "registry_admin"
)

// SessionClaims are the JWT claims carried by a session token.
type SessionClaims struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService mints and validates HS256 session tokens.
type TokenService struct {
	signingKey []byte
	tokenTTL   time.Duration
	now        func() time.Time
}

// NewTokenService constructs a token service from a shared signing key.
func NewTokenService(signingKey string, tokenTTL time.Duration) (*TokenService, error) {
	if signingKey == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "JWT signing key is required")
	}
	return &TokenService{
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}, nil
}

// IssueSession signs a session token for a verified address. Callers must
// have passed challenge verification first; this method does not re-check.
func (s *TokenService) IssueSession(addr ledger.Address, role Role) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Address: addr.String(),
		Role:    string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   addr.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        hex.EncodeToString(b),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateSession parses and verifies a session token.
func (s *TokenService) ValidateSession(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "empty token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeForbidden, "session expired")
		}
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token")
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token claims")
	}
	if claims.Issuer != tokenIssuer {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid token issuer")
	}
	return claims, nil
}

// AuthorityResolver reads the current on-chain authority set.
type AuthorityResolver interface {
	ResolveAuthorities(ctx context.Context) (registry.Authorities, error)
}

// ResolveRole derives a role for the address from the current registry
// state. The check is fresh per login; an address promoted or demoted on
// chain gets the new role on its next session, not this one.
func ResolveRole(ctx context.Context, oracle AuthorityResolver, addr ledger.Address) (Role, error) {
	authorities, err := oracle.ResolveAuthorities(ctx)
	if err != nil {
		return "", err
	}
	switch addr {
	case authorities.RegistryAdmin:
		return RoleRegistryAdmin, nil
	case authorities.IssuingAuthority:
		return RoleIssuingAuthority, nil
	default:
		return RoleRequester, nil
	}
}

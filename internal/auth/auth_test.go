package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credchain/internal/ledger"
	"credchain/internal/registry"
	dErrors "credchain/pkg/domain-errors"
)

const (
	aliceSeed = "1111111111111111111111111111111111111111111111111111111111111111"
	bobSeed   = "2222222222222222222222222222222222222222222222222222222222222222"
)

func TestChallenge_SignedProofAccepted(t *testing.T) {
	svc := NewChallengeService()
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)

	ch, err := svc.Issue(context.Background(), alice.Address)
	require.NoError(t, err)
	require.NotEmpty(t, ch.Nonce)

	sig := alice.Sign(ch.Message)
	assert.NoError(t, svc.Verify(context.Background(), alice.Address, ch.Nonce, sig))
}

func TestChallenge_WrongKeyRejected(t *testing.T) {
	svc := NewChallengeService()
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)
	bob, err := ledger.AccountFromSeed(bobSeed)
	require.NoError(t, err)

	ch, err := svc.Issue(context.Background(), alice.Address)
	require.NoError(t, err)

	// Bob signs Alice's challenge; the signature cannot match her address.
	err = svc.Verify(context.Background(), alice.Address, ch.Nonce, bob.Sign(ch.Message))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestChallenge_SingleUse(t *testing.T) {
	svc := NewChallengeService()
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)

	ch, err := svc.Issue(context.Background(), alice.Address)
	require.NoError(t, err)
	sig := alice.Sign(ch.Message)

	require.NoError(t, svc.Verify(context.Background(), alice.Address, ch.Nonce, sig))

	// The same nonce and signature must not work twice.
	err = svc.Verify(context.Background(), alice.Address, ch.Nonce, sig)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestChallenge_ConsumedByFailedAttempt(t *testing.T) {
	svc := NewChallengeService()
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)

	ch, err := svc.Issue(context.Background(), alice.Address)
	require.NoError(t, err)

	require.Error(t, svc.Verify(context.Background(), alice.Address, ch.Nonce, []byte("garbage")))

	// A later attempt with the real signature finds the nonce gone.
	err = svc.Verify(context.Background(), alice.Address, ch.Nonce, alice.Sign(ch.Message))
	require.Error(t, err)
}

func TestChallenge_BoundToAddress(t *testing.T) {
	svc := NewChallengeService()
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)
	bob, err := ledger.AccountFromSeed(bobSeed)
	require.NoError(t, err)

	ch, err := svc.Issue(context.Background(), alice.Address)
	require.NoError(t, err)

	err = svc.Verify(context.Background(), bob.Address, ch.Nonce, bob.Sign(ch.Message))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestChallenge_Expires(t *testing.T) {
	svc := NewChallengeService()
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)

	now := time.Now()
	svc.now = func() time.Time { return now }

	ch, err := svc.Issue(context.Background(), alice.Address)
	require.NoError(t, err)

	svc.now = func() time.Time { return now.Add(challengeTTL + time.Second) }

	err = svc.Verify(context.Background(), alice.Address, ch.Nonce, alice.Sign(ch.Message))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestTokens_IssueAndValidate(t *testing.T) {
	svc, err := NewTokenService("test-signing-key", time.Hour)
	require.NoError(t, err)
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)

	token, err := svc.IssueSession(alice.Address, RoleIssuingAuthority)
	require.NoError(t, err)

	claims, err := svc.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, alice.Address.String(), claims.Address)
	assert.Equal(t, string(RoleIssuingAuthority), claims.Role)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

func TestTokens_ExpiredRejected(t *testing.T) {
	svc, err := NewTokenService("test-signing-key", time.Hour)
	require.NoError(t, err)
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)

	now := time.Now()
	svc.now = func() time.Time { return now }
	token, err := svc.IssueSession(alice.Address, RoleRequester)
	require.NoError(t, err)

	svc.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = svc.ValidateSession(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestTokens_WrongKeyRejected(t *testing.T) {
	issuer, err := NewTokenService("key-one", time.Hour)
	require.NoError(t, err)
	validator, err := NewTokenService("key-two", time.Hour)
	require.NoError(t, err)
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)

	token, err := issuer.IssueSession(alice.Address, RoleRequester)
	require.NoError(t, err)

	_, err = validator.ValidateSession(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestTokens_MissingSigningKey(t *testing.T) {
	_, err := NewTokenService("", time.Hour)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

type staticResolver struct {
	authorities registry.Authorities
	err         error
}

func (r staticResolver) ResolveAuthorities(context.Context) (registry.Authorities, error) {
	return r.authorities, r.err
}

func TestResolveRole(t *testing.T) {
	alice, err := ledger.AccountFromSeed(aliceSeed)
	require.NoError(t, err)
	bob, err := ledger.AccountFromSeed(bobSeed)
	require.NoError(t, err)

	resolver := staticResolver{authorities: registry.Authorities{
		RegistryAdmin:    bob.Address,
		IssuingAuthority: alice.Address,
	}}

	role, err := ResolveRole(context.Background(), resolver, alice.Address)
	require.NoError(t, err)
	assert.Equal(t, RoleIssuingAuthority, role)

	role, err = ResolveRole(context.Background(), resolver, bob.Address)
	require.NoError(t, err)
	assert.Equal(t, RoleRegistryAdmin, role)

	stranger, err := ledger.AccountFromSeed("3333333333333333333333333333333333333333333333333333333333333333")
	require.NoError(t, err)
	role, err = ResolveRole(context.Background(), resolver, stranger.Address)
	require.NoError(t, err)
	assert.Equal(t, RoleRequester, role)
}

func TestResolveRole_OracleErrorPropagates(t *testing.T) {
	resolver := staticResolver{err: errors.New("node down")}
	_, err := ResolveRole(context.Background(), resolver, "SOMEADDR")
	require.Error(t, err)
}

// Package registry resolves the recognized authority addresses from the
// on-chain registry application.
package registry

import (
	"context"
	"crypto/ed25519"
	"log/slog"

	"credchain/internal/ledger"
	dErrors "credchain/pkg/domain-errors"
)

// Global state keys written by the registry application.
const (
	keyRegistryAdmin    = "registry_admin"
	keyIssuingAuthority = "issuing_authority"
)

// Authorities are the current recognized authority addresses.
type Authorities struct {
	RegistryAdmin    ledger.Address
	IssuingAuthority ledger.Address
}

// Decision is the three-valued outcome of an authority check. A transient
// chain failure must stay distinguishable from "not authorized": collapsing
// both into a denial would falsely reject approvals whenever the network
// degrades.
type Decision int

const (
	// Indeterminate means the check could not be completed. Retryable.
	Indeterminate Decision = iota
	// NotAuthorized means the candidate does not match the current authority.
	NotAuthorized
	// Authorized means the candidate exactly matches the current authority.
	Authorized
)

func (d Decision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case NotAuthorized:
		return "not_authorized"
	default:
		return "indeterminate"
	}
}

// Oracle reads authority addresses from ledger application state. It holds no
// cache: authority addresses can change on-chain, and staleness would let a
// demoted authority keep approving.
type Oracle struct {
	client ledger.Client
	appID  uint64
	logger *slog.Logger
}

// Option configures the Oracle.
type Option func(*Oracle)

// WithLogger configures a logger for the oracle.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		o.logger = logger
	}
}

// NewOracle creates an oracle over the given registry application.
func NewOracle(client ledger.Client, appID uint64, opts ...Option) *Oracle {
	o := &Oracle{client: client, appID: appID}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ResolveAuthorities reads the registry application's global state and decodes
// the two authority addresses. Chain read failures propagate as retryable;
// they are never silently defaulted.
func (o *Oracle) ResolveAuthorities(ctx context.Context) (Authorities, error) {
	if o.appID == 0 {
		return Authorities{}, dErrors.New(dErrors.CodeConfiguration, "registry application ID not configured")
	}

	state, err := o.client.ApplicationState(ctx, o.appID)
	if err != nil {
		return Authorities{}, dErrors.Wrap(err, dErrors.CodeRetryable, "failed to read registry application state")
	}

	var authorities Authorities
	if authorities.RegistryAdmin, err = addressValue(state, keyRegistryAdmin); err != nil {
		return Authorities{}, err
	}
	if authorities.IssuingAuthority, err = addressValue(state, keyIssuingAuthority); err != nil {
		return Authorities{}, err
	}
	return authorities, nil
}

// VerifyIssuingAuthority checks a candidate against the current on-chain
// issuing authority by exact string equality. Every call is a fresh read.
func (o *Oracle) VerifyIssuingAuthority(ctx context.Context, candidate ledger.Address) (Decision, error) {
	authorities, err := o.ResolveAuthorities(ctx)
	if err != nil {
		if o.logger != nil {
			o.logger.WarnContext(ctx, "authority check indeterminate",
				"candidate", candidate,
				"error", err,
			)
		}
		return Indeterminate, err
	}

	if candidate == authorities.IssuingAuthority {
		return Authorized, nil
	}
	return NotAuthorized, nil
}

// addressValue decodes one byte-typed state value and re-encodes it as a
// checksummed ledger address.
func addressValue(state *ledger.ApplicationState, key string) (ledger.Address, error) {
	value, ok := state.GlobalState[key]
	if !ok {
		return "", dErrors.New(dErrors.CodeConfiguration, "registry state missing key "+key)
	}
	if value.Type != ledger.ValueBytes || len(value.Bytes) != ed25519.PublicKeySize {
		return "", dErrors.New(dErrors.CodeConfiguration, "registry state key "+key+" is not an address")
	}
	return ledger.EncodeAddress(ed25519.PublicKey(value.Bytes)), nil
}

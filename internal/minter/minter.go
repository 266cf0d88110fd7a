// Package minter implements the two-phase credential issuance protocol:
// create a single-supply token committed to the credential metadata, then
// transfer it to the claimant.
package minter

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"credchain/internal/archive"
	"credchain/internal/ledger"
	id "credchain/pkg/domain"
	dErrors "credchain/pkg/domain-errors"
)

// unitName is the on-chain unit name shared by all credential tokens.
const unitName = "DEGREE"

// Claim carries everything the minter needs to issue one credential token.
type Claim struct {
	ClaimID         id.ClaimID
	Requester       ledger.Address
	Label           string
	Year            int
	EvidenceLocator string
	EvidenceDigest  string
}

// Receipt is the aggregate result of a fully confirmed two-phase mint.
type Receipt struct {
	TokenID         id.TokenID
	IssuanceTxRef   id.TxRef
	MetadataLocator string
	MetadataDigest  string
}

// metadataRecord is the canonical on-chain metadata document. Field order is
// part of the digest contract; do not reorder.
type metadataRecord struct {
	ClaimID          string `json:"claim_id"`
	RequesterAddress string `json:"requester_address"`
	ClaimLabel       string `json:"claim_label"`
	ClaimYear        int    `json:"claim_year"`
	EvidenceLocator  string `json:"evidence_locator"`
	EvidenceDigest   string `json:"evidence_digest"`
	IssuedBy         string `json:"issued_by"`
	IssuedAt         string `json:"issued_at"`
}

// Minter mints and delivers credential tokens with one process-wide issuer
// identity. All chain submissions for that identity are serialized.
type Minter struct {
	client  ledger.Client
	archive *archive.Archive
	issuer  *ledger.Account

	maxRounds     uint64
	roundInterval time.Duration
	locks         *accountLock
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures the Minter.
type Option func(*Minter)

// WithMaxRounds bounds how many rounds each confirmation wait may take.
func WithMaxRounds(rounds uint64) Option {
	return func(m *Minter) {
		if rounds > 0 {
			m.maxRounds = rounds
		}
	}
}

// WithRoundInterval sets the confirmation poll interval.
func WithRoundInterval(interval time.Duration) Option {
	return func(m *Minter) {
		m.roundInterval = interval
	}
}

// WithClock overrides the issuance timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Minter) {
		m.now = now
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Minter) {
		m.logger = logger
	}
}

// New creates a Minter signing with the given issuer account.
func New(client ledger.Client, arc *archive.Archive, issuer *ledger.Account, opts ...Option) *Minter {
	m := &Minter{
		client:        client,
		archive:       arc,
		issuer:        issuer,
		maxRounds:     4,
		roundInterval: ledger.DefaultRoundInterval,
		locks:         newAccountLock(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IssuerAddress returns the operational signing account's address.
func (m *Minter) IssuerAddress() ledger.Address {
	return m.issuer.Address
}

// Mint runs the two-phase issuance protocol and returns only after both
// phases confirm.
//
// Phase A failures are atomic: no token exists and the whole call is safe to
// retry (mint_failed). If Phase A confirms but Phase B does not, the issuer
// is left holding an orphan token; the error is a *TransferFailedError
// carrying the token id so the caller can resume Phase B alone.
func (m *Minter) Mint(ctx context.Context, claim Claim) (*Receipt, error) {
	record := metadataRecord{
		ClaimID:          claim.ClaimID.String(),
		RequesterAddress: claim.Requester.String(),
		ClaimLabel:       claim.Label,
		ClaimYear:        claim.Year,
		EvidenceLocator:  claim.EvidenceLocator,
		EvidenceDigest:   claim.EvidenceDigest,
		IssuedBy:         m.issuer.Address.String(),
		IssuedAt:         m.now().UTC().Format(time.RFC3339),
	}

	metadataLocator, metadataDigest, err := m.archive.StoreMetadata(ctx, record, claim.ClaimID.String()+".json")
	if err != nil {
		return nil, err
	}

	commitment, err := hex.DecodeString(metadataDigest)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "metadata digest is not hex")
	}
	if len(commitment) > 32 {
		commitment = commitment[:32]
	}

	// Hold the issuer lock across both submit-and-confirm sequences so at
	// most one outstanding mint per issuer is in flight.
	m.locks.Lock(m.issuer.Address.String())
	defer m.locks.Unlock(m.issuer.Address.String())

	tokenID, createRef, err := m.createToken(ctx, claim, metadataLocator, commitment)
	if err != nil {
		return nil, err
	}

	if m.logger != nil {
		m.logger.InfoContext(ctx, "credential token created",
			"claim_id", claim.ClaimID,
			"token_id", tokenID,
			"tx_ref", createRef,
		)
	}

	if _, err := m.transferToken(ctx, tokenID, claim.Requester); err != nil {
		return nil, &TransferFailedError{
			TokenID:         tokenID,
			IssuanceTxRef:   createRef,
			MetadataLocator: metadataLocator,
			MetadataDigest:  metadataDigest,
			Err:             err,
		}
	}

	return &Receipt{
		TokenID:         tokenID,
		IssuanceTxRef:   createRef,
		MetadataLocator: metadataLocator,
		MetadataDigest:  metadataDigest,
	}, nil
}

// ResumeTransfer retries Phase B alone for a previously minted orphan token.
func (m *Minter) ResumeTransfer(ctx context.Context, tokenID id.TokenID, recipient ledger.Address) (id.TxRef, error) {
	m.locks.Lock(m.issuer.Address.String())
	defer m.locks.Unlock(m.issuer.Address.String())

	txRef, err := m.transferToken(ctx, tokenID, recipient)
	if err != nil {
		return "", &TransferFailedError{TokenID: tokenID, Err: err}
	}
	return txRef, nil
}

// createToken is Phase A: build, sign, submit, and confirm the token creation.
func (m *Minter) createToken(ctx context.Context, claim Claim, metadataLocator string, commitment []byte) (id.TokenID, id.TxRef, error) {
	// Params are time-sensitive; fetch immediately before building the txn.
	params, err := m.client.SuggestedParams(ctx)
	if err != nil {
		return 0, "", dErrors.Wrap(err, dErrors.CodeMintFailed, "failed to fetch transaction params")
	}

	txn, err := ledger.NewAssetCreate(m.issuer.Address, params, unitName, claim.Label, "ipfs://"+metadataLocator, commitment)
	if err != nil {
		return 0, "", dErrors.Wrap(err, dErrors.CodeMintFailed, "failed to build creation transaction")
	}

	pending, txRef, err := m.submitAndConfirm(ctx, txn)
	if err != nil {
		return 0, "", dErrors.Wrap(err, dErrors.CodeMintFailed, "token creation did not confirm")
	}
	if pending.AssetIndex == 0 {
		return 0, "", dErrors.New(dErrors.CodeMintFailed, "confirmed creation carries no token id")
	}
	return id.TokenID(pending.AssetIndex), txRef, nil
}

// transferToken is Phase B: deliver one unit of the token to the recipient.
func (m *Minter) transferToken(ctx context.Context, tokenID id.TokenID, recipient ledger.Address) (id.TxRef, error) {
	params, err := m.client.SuggestedParams(ctx)
	if err != nil {
		return "", err
	}

	txn := ledger.NewAssetTransfer(m.issuer.Address, params, tokenID, recipient)
	_, txRef, err := m.submitAndConfirm(ctx, txn)
	if err != nil {
		return "", err
	}
	return txRef, nil
}

func (m *Minter) submitAndConfirm(ctx context.Context, txn *ledger.Transaction) (*ledger.PendingTxn, id.TxRef, error) {
	signed, err := txn.Sign(m.issuer)
	if err != nil {
		return nil, "", err
	}
	raw, err := signed.Encode()
	if err != nil {
		return nil, "", err
	}

	txRef, err := m.client.SubmitRawTransaction(ctx, raw)
	if err != nil {
		return nil, "", err
	}

	pending, err := ledger.WaitForConfirmation(ctx, m.client, txRef, m.maxRounds, m.roundInterval)
	if err != nil {
		return nil, txRef, err
	}
	return pending, txRef, nil
}

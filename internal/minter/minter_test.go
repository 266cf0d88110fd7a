package minter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credchain/internal/archive"
	"credchain/internal/ledger"
	"credchain/internal/sentinel"
	id "credchain/pkg/domain"
	dErrors "credchain/pkg/domain-errors"
)

// fakeStorage satisfies archive.Storage.
type fakeStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
	counter int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: make(map[string][]byte)}
}

func (f *fakeStorage) Put(_ context.Context, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	locator := fmt.Sprintf("QmMeta%d", f.counter)
	f.uploads[locator] = append([]byte(nil), data...)
	return locator, nil
}

// fakeChain scripts ledger behavior per transaction type.
type fakeChain struct {
	mu        sync.Mutex
	submits   []ledger.TxnType
	pending   map[id.TxRef]*ledger.PendingTxn
	nextAsset uint64

	failCreateSubmit   bool
	failTransferSubmit bool
	createTimesOut     bool
	transferTimesOut   bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{pending: make(map[id.TxRef]*ledger.PendingTxn), nextAsset: 500}
}

func (f *fakeChain) ApplicationState(context.Context, uint64) (*ledger.ApplicationState, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChain) SuggestedParams(context.Context) (ledger.SuggestedParams, error) {
	return ledger.SuggestedParams{Fee: 1000, FirstValid: 1, LastValid: 1001}, nil
}

func (f *fakeChain) SubmitRawTransaction(_ context.Context, raw []byte) (id.TxRef, error) {
	var signed struct {
		Txn struct {
			Type ledger.TxnType `json:"type"`
		} `json:"txn"`
	}
	if err := json.Unmarshal(raw, &signed); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, signed.Txn.Type)
	txRef := id.TxRef(fmt.Sprintf("TX%d", len(f.submits)))

	switch signed.Txn.Type {
	case ledger.TxnAssetConfig:
		if f.failCreateSubmit {
			return "", errors.New("creation rejected")
		}
		if f.createTimesOut {
			f.pending[txRef] = &ledger.PendingTxn{}
		} else {
			f.nextAsset++
			f.pending[txRef] = &ledger.PendingTxn{ConfirmedRound: 100, AssetIndex: f.nextAsset}
		}
	case ledger.TxnAssetTransfer:
		if f.failTransferSubmit {
			return "", errors.New("transfer rejected")
		}
		if f.transferTimesOut {
			f.pending[txRef] = &ledger.PendingTxn{}
		} else {
			f.pending[txRef] = &ledger.PendingTxn{ConfirmedRound: 101}
		}
	}
	return txRef, nil
}

func (f *fakeChain) PendingTransaction(_ context.Context, txRef id.TxRef) (*ledger.PendingTxn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pending[txRef]; ok {
		return p, nil
	}
	return nil, sentinel.ErrNotFound
}

func (f *fakeChain) submitted() []ledger.TxnType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.TxnType(nil), f.submits...)
}

func testClaim(t *testing.T) (Claim, *ledger.Account) {
	t.Helper()
	requester, err := ledger.AccountFromSeed("00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	require.NoError(t, err)
	return Claim{
		ClaimID:         "CRED-2024-001",
		Requester:       requester.Address,
		Label:           "BSc Computer Science",
		Year:            2024,
		EvidenceLocator: "QmEvidence",
		EvidenceDigest:  "ab12",
	}, requester
}

func newTestMinter(t *testing.T, chain *fakeChain, storage *fakeStorage) *Minter {
	t.Helper()
	issuer, err := ledger.AccountFromSeed("8f0e8a51c7e0d1b3a5c9427e6f1d2b38405162738495a6b7c8d9e0f1a2b3c4d5")
	require.NoError(t, err)
	return New(chain, archive.New(storage), issuer,
		WithMaxRounds(2),
		WithRoundInterval(time.Millisecond),
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }),
	)
}

func TestMint_TwoPhaseSuccess(t *testing.T) {
	chain := newFakeChain()
	storage := newFakeStorage()
	m := newTestMinter(t, chain, storage)
	claim, _ := testClaim(t)

	receipt, err := m.Mint(context.Background(), claim)
	require.NoError(t, err)

	assert.Equal(t, id.TokenID(501), receipt.TokenID)
	assert.NotEmpty(t, receipt.IssuanceTxRef)
	assert.Equal(t, []ledger.TxnType{ledger.TxnAssetConfig, ledger.TxnAssetTransfer}, chain.submitted())

	// The metadata digest is recomputable from the uploaded bytes.
	uploaded := storage.uploads[receipt.MetadataLocator]
	require.NotNil(t, uploaded)
	assert.Equal(t, archive.Digest(uploaded), receipt.MetadataDigest)

	var record map[string]any
	require.NoError(t, json.Unmarshal(uploaded, &record))
	assert.Equal(t, "CRED-2024-001", record["claim_id"])
	assert.Equal(t, "QmEvidence", record["evidence_locator"])
	assert.Equal(t, m.IssuerAddress().String(), record["issued_by"])
	assert.Equal(t, "2024-06-01T12:00:00Z", record["issued_at"])
}

func TestMint_PhaseASubmitFailureIsAtomic(t *testing.T) {
	chain := newFakeChain()
	chain.failCreateSubmit = true
	m := newTestMinter(t, chain, newFakeStorage())
	claim, _ := testClaim(t)

	_, err := m.Mint(context.Background(), claim)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMintFailed))

	var transferErr *TransferFailedError
	assert.False(t, errors.As(err, &transferErr), "phase A failure must not report an orphan")
	assert.Equal(t, []ledger.TxnType{ledger.TxnAssetConfig}, chain.submitted())
}

func TestMint_PhaseAConfirmationTimeout(t *testing.T) {
	chain := newFakeChain()
	chain.createTimesOut = true
	m := newTestMinter(t, chain, newFakeStorage())
	claim, _ := testClaim(t)

	_, err := m.Mint(context.Background(), claim)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMintFailed))
	assert.ErrorIs(t, err, sentinel.ErrTimeout)
}

func TestMint_PhaseBFailureCarriesOrphanTokenID(t *testing.T) {
	chain := newFakeChain()
	chain.transferTimesOut = true
	m := newTestMinter(t, chain, newFakeStorage())
	claim, _ := testClaim(t)

	_, err := m.Mint(context.Background(), claim)
	require.Error(t, err)

	var transferErr *TransferFailedError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, id.TokenID(501), transferErr.TokenID)
}

func TestResumeTransfer_RunsPhaseBOnly(t *testing.T) {
	chain := newFakeChain()
	chain.transferTimesOut = true
	m := newTestMinter(t, chain, newFakeStorage())
	claim, _ := testClaim(t)

	_, err := m.Mint(context.Background(), claim)
	var transferErr *TransferFailedError
	require.ErrorAs(t, err, &transferErr)

	// The network recovers; retry delivery of the same token.
	chain.mu.Lock()
	chain.transferTimesOut = false
	chain.mu.Unlock()

	txRef, err := m.ResumeTransfer(context.Background(), transferErr.TokenID, claim.Requester)
	require.NoError(t, err)
	assert.NotEmpty(t, txRef)

	creates := 0
	for _, typ := range chain.submitted() {
		if typ == ledger.TxnAssetConfig {
			creates++
		}
	}
	assert.Equal(t, 1, creates, "resume must never re-run phase A")
}

func TestMint_ConcurrentMintsAreSerializedPerIssuer(t *testing.T) {
	chain := newFakeChain()
	m := newTestMinter(t, chain, newFakeStorage())
	claim, _ := testClaim(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := claim
			c.ClaimID = id.ClaimID(fmt.Sprintf("CRED-2024-%03d", n))
			_, err := m.Mint(context.Background(), c)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// With the issuer lock held across both phases, create/transfer pairs
	// never interleave.
	submits := chain.submitted()
	require.Len(t, submits, 8)
	for i := 0; i < len(submits); i += 2 {
		assert.Equal(t, ledger.TxnAssetConfig, submits[i])
		assert.Equal(t, ledger.TxnAssetTransfer, submits[i+1])
	}
}

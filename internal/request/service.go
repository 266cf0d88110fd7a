package request

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"credchain/internal/audit"
	"credchain/internal/ledger"
	"credchain/internal/minter"
	"credchain/internal/platform/metrics"
	"credchain/internal/registry"
	"credchain/internal/sentinel"
	id "credchain/pkg/domain"
	dErrors "credchain/pkg/domain-errors"
)

// AuthorityOracle resolves and verifies the on-chain authorities.
type AuthorityOracle interface {
	ResolveAuthorities(ctx context.Context) (registry.Authorities, error)
	VerifyIssuingAuthority(ctx context.Context, candidate ledger.Address) (registry.Decision, error)
}

// CredentialMinter runs the two-phase issuance protocol.
type CredentialMinter interface {
	Mint(ctx context.Context, claim minter.Claim) (*minter.Receipt, error)
	ResumeTransfer(ctx context.Context, tokenID id.TokenID, recipient ledger.Address) (id.TxRef, error)
	IssuerAddress() ledger.Address
}

// EvidenceArchiver stores evidence bytes and returns locator plus digest.
type EvidenceArchiver interface {
	Store(ctx context.Context, data []byte, name string) (locator, digest string, err error)
}

// SubmitClaim is the input for a new credential request.
type SubmitClaim struct {
	ClaimID      id.ClaimID
	Requester    ledger.Address
	ClaimLabel   string
	ClaimYear    int
	Evidence     []byte
	EvidenceName string
}

// Approval is the result of a fully confirmed approval.
type Approval struct {
	TokenID       id.TokenID
	IssuanceTxRef id.TxRef
}

// Service is the request orchestrator. It exclusively owns status
// transitions; the minter only returns results or errors.
type Service struct {
	store   Store
	oracle  AuthorityOracle
	minter  CredentialMinter
	archive EvidenceArchiver

	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Publisher

	inflight *inflightGuard
}

// Option configures the Service.
type Option func(*Service)

// WithLogger configures a logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics configures lifecycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditor configures an audit publisher.
func WithAuditor(auditor audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// NewService creates the orchestrator with its required collaborators.
func NewService(store Store, oracle AuthorityOracle, mint CredentialMinter, arc EvidenceArchiver, opts ...Option) *Service {
	s := &Service{
		store:    store,
		oracle:   oracle,
		minter:   mint,
		archive:  arc,
		inflight: newInflightGuard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit archives the evidence and persists a PENDING request. Duplicate
// claim IDs fail whether the existing request is pending, approved, or
// rejected; the store's atomic create is the authoritative guard against
// two concurrent submissions racing the same claim ID.
func (s *Service) Submit(ctx context.Context, claim SubmitClaim) (*CredentialRequest, error) {
	if claim.ClaimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "claim ID is required")
	}
	if claim.ClaimLabel == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "claim label is required")
	}
	if claim.ClaimYear <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "claim year is required")
	}
	if len(claim.Evidence) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "evidence document is required")
	}
	if !claim.Requester.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "requester address is malformed")
	}

	// Advisory fast-fail; saves an upload on obvious duplicates.
	if exists, err := s.store.ClaimExists(ctx, claim.ClaimID); err == nil && exists {
		return nil, s.duplicateClaim(claim.ClaimID)
	}

	locator, digest, err := s.archive.Store(ctx, claim.Evidence, claim.EvidenceName)
	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.ArchiveUploads.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		return nil, err
	}

	req := &CredentialRequest{
		ID:              id.NewRequestID(),
		ClaimID:         claim.ClaimID,
		Requester:       claim.Requester,
		ClaimLabel:      claim.ClaimLabel,
		ClaimYear:       claim.ClaimYear,
		EvidenceLocator: locator,
		EvidenceDigest:  digest,
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.store.CreateIfAbsent(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, s.duplicateClaim(claim.ClaimID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist request")
	}

	if s.metrics != nil {
		s.metrics.RequestsSubmitted.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionRequestSubmitted,
		Actor:    claim.Requester.String(),
		Subject:  req.ID.String(),
		Decision: string(StatusPending),
	})

	return req, nil
}

// Approve verifies the caller against the on-chain issuing authority, mints
// the credential token, and flips the request to APPROVED.
//
// The credential record is persisted before the status flip so no reader
// ever observes APPROVED without a credential. Failure modes: mint_failed
// leaves the request PENDING and is safe to retry in full; transfer_failed
// checkpoints the orphan token against the request, and the next Approve on
// the same request resumes Phase B only.
func (s *Service) Approve(ctx context.Context, requestID id.RequestID, caller ledger.Address) (*Approval, error) {
	if !s.inflight.acquire(requestID) {
		return nil, dErrors.New(dErrors.CodeRetryable, "approval already in progress for this request")
	}
	defer s.inflight.release(requestID)

	req, err := s.loadPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// Re-verified on every call, immediately before any mutation. A cached
	// result would leave a window where a demoted authority keeps approving.
	if err := s.authorizeIssuer(ctx, caller, requestID); err != nil {
		return nil, err
	}

	if req.Recovery.Orphaned() {
		return s.resumeDelivery(ctx, req, caller)
	}

	mintStart := time.Now()
	receipt, err := s.minter.Mint(ctx, minter.Claim{
		ClaimID:         req.ClaimID,
		Requester:       req.Requester,
		Label:           req.ClaimLabel,
		Year:            req.ClaimYear,
		EvidenceLocator: req.EvidenceLocator,
		EvidenceDigest:  req.EvidenceDigest,
	})
	if err != nil {
		return nil, s.handleMintFailure(ctx, req, err)
	}
	if s.metrics != nil {
		s.metrics.MintLatency.Observe(time.Since(mintStart).Seconds())
	}

	return s.finalizeApproval(ctx, req, Recovery{
		TokenID:         receipt.TokenID,
		MetadataLocator: receipt.MetadataLocator,
		MetadataDigest:  receipt.MetadataDigest,
		IssuanceTxRef:   receipt.IssuanceTxRef,
	}, caller)
}

// Reject transitions a PENDING request to REJECTED with the given reason.
// No token is minted and no transaction is submitted.
func (s *Service) Reject(ctx context.Context, requestID id.RequestID, caller ledger.Address, reason string) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "rejection reason is required")
	}

	if _, err := s.loadPending(ctx, requestID); err != nil {
		return err
	}
	if err := s.authorizeIssuer(ctx, caller, requestID); err != nil {
		return err
	}

	if err := s.store.UpdateStatus(ctx, requestID, StatusPending, StatusRejected, StatusUpdate{RejectionReason: reason}); err != nil {
		return s.translateStoreErr(err, "failed to reject request")
	}

	if s.metrics != nil {
		s.metrics.RequestsRejected.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionRequestRejected,
		Actor:    caller.String(),
		Subject:  requestID.String(),
		Decision: string(StatusRejected),
		Reason:   reason,
	})
	return nil
}

// ListPending returns pending requests for a verified issuing authority.
func (s *Service) ListPending(ctx context.Context, caller ledger.Address) ([]*CredentialRequest, error) {
	if err := s.authorizeIssuer(ctx, caller, id.RequestID{}); err != nil {
		return nil, err
	}
	reqs, err := s.store.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending requests")
	}
	return reqs, nil
}

// ListByRequester returns a requester's own submissions.
func (s *Service) ListByRequester(ctx context.Context, requester ledger.Address) ([]*CredentialRequest, error) {
	reqs, err := s.store.ListByRequester(ctx, requester)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return reqs, nil
}

// CredentialFor returns the issued credential for an approved request.
func (s *Service) CredentialFor(ctx context.Context, requestID id.RequestID) (*IssuedCredential, error) {
	cred, err := s.store.CredentialByRequest(ctx, requestID)
	if err != nil {
		return nil, s.translateStoreErr(err, "failed to load credential")
	}
	return cred, nil
}

// ResolveAuthorities exposes the current on-chain authority set.
func (s *Service) ResolveAuthorities(ctx context.Context) (registry.Authorities, error) {
	return s.oracle.ResolveAuthorities(ctx)
}

// VerifyIssuerBinding checks that the on-chain issuing authority matches the
// operational signing account. A divergence would produce tokens signed by
// an account the registry does not recognize.
func (s *Service) VerifyIssuerBinding(ctx context.Context) error {
	authorities, err := s.oracle.ResolveAuthorities(ctx)
	if err != nil {
		return err
	}
	if authorities.IssuingAuthority != s.minter.IssuerAddress() {
		return dErrors.New(dErrors.CodeConfiguration,
			"on-chain issuing authority "+authorities.IssuingAuthority.String()+
				" does not match signing account "+s.minter.IssuerAddress().String())
	}
	return nil
}

// loadPending fetches the request and enforces the PENDING precondition.
func (s *Service) loadPending(ctx context.Context, requestID id.RequestID) (*CredentialRequest, error) {
	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.translateStoreErr(err, "failed to load request")
	}
	if req.Status != StatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, "request is already "+string(req.Status))
	}
	return req, nil
}

// authorizeIssuer maps the three-valued oracle decision onto the error
// taxonomy. Indeterminate is retryable, never a denial.
func (s *Service) authorizeIssuer(ctx context.Context, caller ledger.Address, subject id.RequestID) error {
	decision, err := s.oracle.VerifyIssuingAuthority(ctx, caller)
	if s.metrics != nil {
		s.metrics.AuthorityChecks.WithLabelValues(decision.String()).Inc()
	}
	switch decision {
	case registry.Authorized:
		return nil
	case registry.NotAuthorized:
		s.emitAudit(ctx, audit.Event{
			Action:   audit.ActionAuthorityForbidden,
			Actor:    caller.String(),
			Subject:  subject.String(),
			Decision: "forbidden",
		})
		return dErrors.New(dErrors.CodeForbidden, "caller is not the current issuing authority")
	default:
		return dErrors.Wrap(err, dErrors.CodeRetryable, "authority check indeterminate, retry")
	}
}

// resumeDelivery retries Phase B for a checkpointed orphan token.
func (s *Service) resumeDelivery(ctx context.Context, req *CredentialRequest, caller ledger.Address) (*Approval, error) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "resuming delivery of orphan token",
			"request_id", req.ID,
			"token_id", req.Recovery.TokenID,
		)
	}

	if _, err := s.minter.ResumeTransfer(ctx, req.Recovery.TokenID, req.Requester); err != nil {
		if s.metrics != nil {
			s.metrics.TransferFailures.Inc()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTransferFailed,
			"token "+req.Recovery.TokenID.String()+" still undelivered")
	}

	if s.metrics != nil {
		s.metrics.OrphanRecoveries.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Action:  audit.ActionOrphanRecovered,
		Subject: req.ID.String(),
		Reason:  "token " + req.Recovery.TokenID.String(),
	})

	return s.finalizeApproval(ctx, req, req.Recovery, caller)
}

// handleMintFailure maps minter errors, checkpointing orphans durably.
func (s *Service) handleMintFailure(ctx context.Context, req *CredentialRequest, err error) error {
	var transferErr *minter.TransferFailedError
	if errors.As(err, &transferErr) {
		rec := Recovery{
			TokenID:         transferErr.TokenID,
			MetadataLocator: transferErr.MetadataLocator,
			MetadataDigest:  transferErr.MetadataDigest,
			IssuanceTxRef:   transferErr.IssuanceTxRef,
		}
		if storeErr := s.store.SetRecovery(ctx, req.ID, rec); storeErr != nil {
			// The token exists on-chain either way; losing the checkpoint
			// is worse than double-reporting, so log loudly.
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "failed to persist orphan checkpoint",
					"request_id", req.ID,
					"token_id", transferErr.TokenID,
					"error", storeErr,
				)
			}
		}
		if s.metrics != nil {
			s.metrics.TransferFailures.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			Action:  audit.ActionTokenOrphaned,
			Subject: req.ID.String(),
			Reason:  "token " + transferErr.TokenID.String(),
		})
		return dErrors.Wrap(err, dErrors.CodeTransferFailed,
			"token "+transferErr.TokenID.String()+" minted but undelivered; retry resumes delivery only")
	}

	if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeMintFailed) {
		s.metrics.MintFailures.Inc()
	}
	return err
}

// finalizeApproval persists the credential, then flips the status. Order
// matters: a reader must never observe APPROVED without a credential.
func (s *Service) finalizeApproval(ctx context.Context, req *CredentialRequest, rec Recovery, caller ledger.Address) (*Approval, error) {
	cred := &IssuedCredential{
		ID:              id.NewCredentialID(),
		RequestID:       req.ID,
		TokenID:         rec.TokenID,
		MetadataLocator: rec.MetadataLocator,
		MetadataDigest:  rec.MetadataDigest,
		IssuanceTxRef:   rec.IssuanceTxRef,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.SaveCredential(ctx, cred); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist issued credential")
	}

	if err := s.store.UpdateStatus(ctx, req.ID, StatusPending, StatusApproved, StatusUpdate{}); err != nil {
		return nil, s.translateStoreErr(err, "failed to mark request approved")
	}

	if s.metrics != nil {
		s.metrics.RequestsApproved.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionRequestApproved,
		Actor:    caller.String(),
		Subject:  req.ID.String(),
		Decision: string(StatusApproved),
		Reason:   "token " + rec.TokenID.String(),
	})

	if s.logger != nil {
		s.logger.InfoContext(ctx, "credential issued",
			"request_id", req.ID,
			"claim_id", req.ClaimID,
			"token_id", rec.TokenID,
		)
	}

	return &Approval{TokenID: rec.TokenID, IssuanceTxRef: rec.IssuanceTxRef}, nil
}

func (s *Service) duplicateClaim(claimID id.ClaimID) error {
	if s.metrics != nil {
		s.metrics.DuplicateClaims.Inc()
	}
	return dErrors.New(dErrors.CodeDuplicateClaim, "claim ID "+claimID.String()+" already exists")
}

// translateStoreErr converts sentinel store errors into domain errors once.
func (s *Service) translateStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "request not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "request is not in the expected state")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

// inflightGuard prevents two concurrent approvals of one request inside this
// process. The store's CAS guard is the cross-process backstop; this guard
// exists so a double-submitted approval cannot reach the minter twice.
type inflightGuard struct {
	mu     sync.Mutex
	active map[id.RequestID]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{active: make(map[id.RequestID]struct{})}
}

func (g *inflightGuard) acquire(requestID id.RequestID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[requestID]; busy {
		return false
	}
	g.active[requestID] = struct{}{}
	return true
}

func (g *inflightGuard) release(requestID id.RequestID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, requestID)
}

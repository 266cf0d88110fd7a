package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the issuance engine.
type Metrics struct {
	RequestsSubmitted prometheus.Counter
	RequestsApproved  prometheus.Counter
	RequestsRejected  prometheus.Counter
	DuplicateClaims   prometheus.Counter

	MintFailures     prometheus.Counter
	TransferFailures prometheus.Counter
	OrphanRecoveries prometheus.Counter
	AuthorityChecks  *prometheus.CounterVec
	MintLatency      prometheus.Histogram
	ArchiveUploads   *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credchain_requests_submitted_total",
			Help: "Total number of credential requests submitted",
		}),
		RequestsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credchain_requests_approved_total",
			Help: "Total number of credential requests approved",
		}),
		RequestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credchain_requests_rejected_total",
			Help: "Total number of credential requests rejected",
		}),
		DuplicateClaims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credchain_duplicate_claims_total",
			Help: "Total number of submissions rejected for a duplicate claim ID",
		}),
		MintFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credchain_mint_failures_total",
			Help: "Total number of Phase A (token creation) failures",
		}),
		TransferFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credchain_transfer_failures_total",
			Help: "Total number of Phase B failures leaving an orphan token",
		}),
		OrphanRecoveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credchain_orphan_recoveries_total",
			Help: "Total number of orphan tokens delivered by a Phase B retry",
		}),
		AuthorityChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credchain_authority_checks_total",
			Help: "Authority verification outcomes, labeled by decision",
		}, []string{"decision"}),
		MintLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credchain_mint_latency_seconds",
			Help:    "End-to-end latency of the two-phase mint protocol in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ArchiveUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credchain_archive_uploads_total",
			Help: "Content-addressed storage uploads, labeled by outcome",
		}, []string{"outcome"}),
	}
}

package ledger

import (
	"context"

	id "credchain/pkg/domain"
)

// Client is the read/submit surface of a ledger node. Implementations must be
// safe for concurrent use; the minter serializes per-account on top of this.
type Client interface {
	// ApplicationState reads the current global key-value state of an application.
	ApplicationState(ctx context.Context, appID uint64) (*ApplicationState, error)
	// SuggestedParams fetches the current fee and validity window.
	SuggestedParams(ctx context.Context) (SuggestedParams, error)
	// SubmitRawTransaction broadcasts a signed transaction and returns its reference.
	SubmitRawTransaction(ctx context.Context, raw []byte) (id.TxRef, error)
	// PendingTransaction reports the confirmation status of a submitted transaction.
	PendingTransaction(ctx context.Context, txRef id.TxRef) (*PendingTxn, error)
}

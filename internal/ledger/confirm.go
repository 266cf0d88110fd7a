package ledger

import (
	"context"
	"fmt"
	"time"

	"credchain/internal/sentinel"
	id "credchain/pkg/domain"
)

// DefaultRoundInterval approximates ledger block time for confirmation polling.
const DefaultRoundInterval = time.Second

// WaitForConfirmation polls a submitted transaction until it is confirmed or
// maxRounds polls have elapsed.
//
// Exceeding the bound returns sentinel.ErrTimeout: the transaction may still
// confirm later, so callers must treat it as indeterminate and reconcile by
// reading the ledger, never by blind resubmission. Context cancellation stops
// polling without claiming success or failure. Transient poll errors are
// tolerated until the bound; a node-side pool rejection is definitive.
func WaitForConfirmation(ctx context.Context, client Client, txRef id.TxRef, maxRounds uint64, interval time.Duration) (*PendingTxn, error) {
	if interval <= 0 {
		interval = DefaultRoundInterval
	}

	var lastErr error
	for round := uint64(0); round < maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pending, err := client.PendingTransaction(ctx, txRef)
		switch {
		case err != nil:
			lastErr = err
		case pending.PoolError != "":
			return nil, fmt.Errorf("transaction %s rejected by node: %s", txRef, pending.PoolError)
		case pending.ConfirmedRound > 0:
			return pending, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("confirmation of %s unresolved after %d rounds (last poll error: %v): %w", txRef, maxRounds, lastErr, sentinel.ErrTimeout)
	}
	return nil, fmt.Errorf("transaction %s not confirmed within %d rounds: %w", txRef, maxRounds, sentinel.ErrTimeout)
}

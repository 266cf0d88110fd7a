package minter

import (
	"fmt"

	id "credchain/pkg/domain"
)

// TransferFailedError reports a Phase A success followed by a Phase B failure:
// the token exists but was never delivered. It carries the orphaned token id
// and the Phase A receipt so the caller can checkpoint them and retry Phase B
// alone; re-running Phase A would mint a duplicate token for the same claim.
type TransferFailedError struct {
	TokenID         id.TokenID
	IssuanceTxRef   id.TxRef
	MetadataLocator string
	MetadataDigest  string
	Err             error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("token %s minted but not delivered: %v", e.TokenID, e.Err)
}

func (e *TransferFailedError) Unwrap() error {
	return e.Err
}

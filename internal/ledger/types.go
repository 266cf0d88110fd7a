package ledger

// ValueType discriminates application state values.
type ValueType uint64

const (
	// ValueBytes marks a byte-string state value.
	ValueBytes ValueType = 1
	// ValueUint marks an unsigned integer state value.
	ValueUint ValueType = 2
)

// StateValue is one typed value from an application's key-value state.
type StateValue struct {
	Type  ValueType
	Bytes []byte
	Uint  uint64
}

// ApplicationState is the decoded global state of an on-chain application.
// Keys are plain strings; the wire-level base64 wrapping is the client's concern.
type ApplicationState struct {
	AppID       uint64
	GlobalState map[string]StateValue
}

// SuggestedParams are time-sensitive network parameters required to build a
// valid transaction. Fetch immediately before use; never cache across calls.
type SuggestedParams struct {
	Fee         uint64 `json:"fee"`
	FirstValid  uint64 `json:"first-valid"`
	LastValid   uint64 `json:"last-valid"`
	GenesisID   string `json:"genesis-id"`
	GenesisHash []byte `json:"genesis-hash"`
}

// PendingTxn reports the ledger's view of a submitted transaction.
type PendingTxn struct {
	// ConfirmedRound is zero until the transaction is included in a block.
	ConfirmedRound uint64 `json:"confirmed-round"`
	// AssetIndex carries the ledger-assigned token id for asset creations.
	AssetIndex uint64 `json:"asset-index"`
	// PoolError is non-empty when the node rejected the transaction outright.
	PoolError string `json:"pool-error"`
}

package ledger

import (
	"crypto/sha512"
	"encoding/base32"
	"encoding/json"

	id "credchain/pkg/domain"
	dErrors "credchain/pkg/domain-errors"
)

// TxnType discriminates the transaction kinds the engine submits.
type TxnType string

const (
	// TxnAssetConfig creates (or reconfigures) an asset.
	TxnAssetConfig TxnType = "acfg"
	// TxnAssetTransfer moves asset units between accounts.
	TxnAssetTransfer TxnType = "axfer"
)

const maxAssetNameLen = 32

// AssetParams describe a token at creation time. A credential token always
// has total supply 1 and zero decimals.
type AssetParams struct {
	Total     uint64 `json:"t"`
	Decimals  uint32 `json:"dc"`
	UnitName  string `json:"un"`
	AssetName string `json:"an"`
	URL       string `json:"au"`
	// MetadataHash is the 32-byte integrity commitment embedded on-chain.
	MetadataHash []byte  `json:"am,omitempty"`
	Manager      Address `json:"m,omitempty"`
	Reserve      Address `json:"r,omitempty"`
}

// Transaction is the canonical wire form of a ledger transaction. Field order
// is fixed by the struct; encoding/json emits struct fields in declaration
// order and sorts map keys, so Encode is deterministic for identical input.
type Transaction struct {
	Type        TxnType `json:"type"`
	Sender      Address `json:"snd"`
	Fee         uint64  `json:"fee"`
	FirstValid  uint64  `json:"fv"`
	LastValid   uint64  `json:"lv"`
	GenesisID   string  `json:"gen,omitempty"`
	GenesisHash []byte  `json:"gh,omitempty"`

	// Asset creation fields (acfg).
	AssetParams *AssetParams `json:"apar,omitempty"`

	// Asset transfer fields (axfer).
	XferAsset     id.TokenID `json:"xaid,omitempty"`
	AssetAmount   uint64     `json:"aamt,omitempty"`
	AssetReceiver Address    `json:"arcv,omitempty"`
}

// NewAssetCreate builds a single-supply token creation transaction. The asset
// name is truncated to the on-chain limit; the commitment must be 32 bytes.
func NewAssetCreate(sender Address, params SuggestedParams, unitName, assetName, url string, metadataHash []byte) (*Transaction, error) {
	if len(metadataHash) != sha512.Size256 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "metadata hash commitment must be 32 bytes")
	}
	if len(assetName) > maxAssetNameLen {
		assetName = assetName[:maxAssetNameLen]
	}
	return &Transaction{
		Type:        TxnAssetConfig,
		Sender:      sender,
		Fee:         params.Fee,
		FirstValid:  params.FirstValid,
		LastValid:   params.LastValid,
		GenesisID:   params.GenesisID,
		GenesisHash: params.GenesisHash,
		AssetParams: &AssetParams{
			Total:        1,
			Decimals:     0,
			UnitName:     unitName,
			AssetName:    assetName,
			URL:          url,
			MetadataHash: metadataHash,
			Manager:      sender,
			Reserve:      sender,
		},
	}, nil
}

// NewAssetTransfer builds a single-unit transfer of an existing token.
func NewAssetTransfer(sender Address, params SuggestedParams, tokenID id.TokenID, receiver Address) *Transaction {
	return &Transaction{
		Type:          TxnAssetTransfer,
		Sender:        sender,
		Fee:           params.Fee,
		FirstValid:    params.FirstValid,
		LastValid:     params.LastValid,
		GenesisID:     params.GenesisID,
		GenesisHash:   params.GenesisHash,
		XferAsset:     tokenID,
		AssetAmount:   1,
		AssetReceiver: receiver,
	}
}

// txnSignPrefix domain-separates transaction signatures from any other
// message the account key might sign.
var txnSignPrefix = []byte("TX")

// Encode renders the transaction in its canonical byte form.
func (t *Transaction) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// ID returns the transaction reference: base32 of sha512/256 over the
// prefixed canonical encoding.
func (t *Transaction) ID() (id.TxRef, error) {
	enc, err := t.Encode()
	if err != nil {
		return "", err
	}
	digest := sha512.Sum512_256(append(txnSignPrefix, enc...))
	return id.TxRef(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(digest[:])), nil
}

// SignedTxn pairs a transaction with its sender's signature.
type SignedTxn struct {
	Sig []byte       `json:"sig"`
	Txn *Transaction `json:"txn"`
}

// Sign signs the canonical encoding with the account key and returns the
// broadcastable signed form.
func (t *Transaction) Sign(account *Account) (*SignedTxn, error) {
	if account == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "signing account not configured")
	}
	if t.Sender != account.Address {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "transaction sender does not match signing account")
	}
	enc, err := t.Encode()
	if err != nil {
		return nil, err
	}
	sig := account.Sign(append(txnSignPrefix, enc...))
	return &SignedTxn{Sig: sig, Txn: t}, nil
}

// Encode renders the signed transaction for submission.
func (s *SignedTxn) Encode() ([]byte, error) {
	return json.Marshal(s)
}

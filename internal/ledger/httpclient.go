package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"credchain/internal/sentinel"
	id "credchain/pkg/domain"
)

const apiTokenHeader = "X-Algo-API-Token"

// HTTPClient talks to a ledger node's REST API. It is constructed explicitly
// and injected; nothing in the engine reaches for an ambient client.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// HTTPOption configures the HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client, mainly for tests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		h.http = c
	}
}

// NewHTTPClient creates a ledger client for the node at baseURL.
func NewHTTPClient(baseURL, token string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// appResponse mirrors the node's application endpoint payload.
type appResponse struct {
	Params struct {
		GlobalState []struct {
			Key   string `json:"key"`
			Value struct {
				Type  uint64 `json:"type"`
				Bytes string `json:"bytes"`
				Uint  uint64 `json:"uint"`
			} `json:"value"`
		} `json:"global-state"`
	} `json:"params"`
}

// ApplicationState reads and decodes an application's global key-value state.
// Keys and byte values arrive base64-wrapped on the wire.
func (c *HTTPClient) ApplicationState(ctx context.Context, appID uint64) (*ApplicationState, error) {
	var resp appResponse
	if err := c.get(ctx, "/v2/applications/"+strconv.FormatUint(appID, 10), &resp); err != nil {
		return nil, err
	}

	state := &ApplicationState{
		AppID:       appID,
		GlobalState: make(map[string]StateValue, len(resp.Params.GlobalState)),
	}
	for _, entry := range resp.Params.GlobalState {
		key, err := base64.StdEncoding.DecodeString(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("malformed state key %q: %w", entry.Key, err)
		}
		value := StateValue{Type: ValueType(entry.Value.Type), Uint: entry.Value.Uint}
		if entry.Value.Bytes != "" {
			raw, err := base64.StdEncoding.DecodeString(entry.Value.Bytes)
			if err != nil {
				return nil, fmt.Errorf("malformed state value for key %q: %w", key, err)
			}
			value.Bytes = raw
		}
		state.GlobalState[string(key)] = value
	}
	return state, nil
}

// paramsResponse mirrors the node's transaction params payload.
type paramsResponse struct {
	Fee         uint64 `json:"fee"`
	MinFee      uint64 `json:"min-fee"`
	LastRound   uint64 `json:"last-round"`
	GenesisID   string `json:"genesis-id"`
	GenesisHash string `json:"genesis-hash"`
}

// validityWindow is how many rounds a transaction built from fresh params stays valid.
const validityWindow = 1000

// SuggestedParams fetches current network parameters for transaction construction.
func (c *HTTPClient) SuggestedParams(ctx context.Context) (SuggestedParams, error) {
	var resp paramsResponse
	if err := c.get(ctx, "/v2/transactions/params", &resp); err != nil {
		return SuggestedParams{}, err
	}

	fee := resp.Fee
	if fee < resp.MinFee {
		fee = resp.MinFee
	}
	genesisHash, err := base64.StdEncoding.DecodeString(resp.GenesisHash)
	if err != nil {
		return SuggestedParams{}, fmt.Errorf("malformed genesis hash: %w", err)
	}
	return SuggestedParams{
		Fee:         fee,
		FirstValid:  resp.LastRound,
		LastValid:   resp.LastRound + validityWindow,
		GenesisID:   resp.GenesisID,
		GenesisHash: genesisHash,
	}, nil
}

// SubmitRawTransaction broadcasts signed transaction bytes.
func (c *HTTPClient) SubmitRawTransaction(ctx context.Context, raw []byte) (id.TxRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transactions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set(apiTokenHeader, c.token)
	req.Header.Set("Content-Type", "application/x-binary")

	var resp struct {
		TxID string `json:"txId"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return id.TxRef(resp.TxID), nil
}

// PendingTransaction reports the confirmation status of a transaction.
func (c *HTTPClient) PendingTransaction(ctx context.Context, txRef id.TxRef) (*PendingTxn, error) {
	var pending PendingTxn
	if err := c.get(ctx, "/v2/transactions/pending/"+string(txRef), &pending); err != nil {
		return nil, err
	}
	return &pending, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set(apiTokenHeader, c.token)
	return c.do(req, out)
}

// do executes the request and decodes the response. Transport-level failures
// wrap sentinel.ErrUnavailable so callers can classify them as indeterminate
// rather than definitive.
func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger node unreachable: %v: %w", err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading ledger response: %v: %w", err, sentinel.ErrUnavailable)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", req.URL.Path, sentinel.ErrNotFound)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("ledger node error %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), sentinel.ErrUnavailable)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ledger request failed %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

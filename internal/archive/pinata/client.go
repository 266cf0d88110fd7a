// Package pinata implements the archive storage interface against the Pinata
// IPFS pinning API.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"credchain/internal/sentinel"
)

const defaultBaseURL = "https://api.pinata.cloud"

// Client uploads content to Pinata and returns the assigned IPFS CID.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a Pinata client with explicit credentials.
func New(apiKey, apiSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pinResponse is the relevant slice of Pinata's pin response.
type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Put uploads raw bytes as a pinned file and returns its CID.
func (c *Client) Put(ctx context.Context, data []byte, name string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	return c.send(req)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)
}

func (c *Client) send(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage provider unreachable: %v: %w", err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading storage response: %v: %w", err, sentinel.ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("storage provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pin pinResponse
	if err := json.Unmarshal(body, &pin); err != nil {
		return "", fmt.Errorf("malformed storage response: %w", err)
	}
	if pin.IpfsHash == "" {
		return "", fmt.Errorf("storage provider returned no locator")
	}
	return pin.IpfsHash, nil
}

// Package upstream is a client for the external challenge checking service.
// Job endpoints authenticate with the caller's API key in X-API-Key.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	apiKeyHeader = "X-API-Key"

	// DefaultMaxResponseBytes bounds how much of a response body is read.
	DefaultMaxResponseBytes = 4 << 20
)

var (
	// ErrUpstreamUnavailable is returned when the service cannot be reached.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("upstream resource not found")
)

// StatusError is a non-2xx response other than 404.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("upstream returned %d", e.StatusCode)
}

// Client talks to the challenge checking service.
type Client struct {
	BaseURL          string
	HTTPClient       *http.Client
	MaxResponseBytes int64
}

// NewClient creates a client with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:          strings.TrimSuffix(baseURL, "/"),
		HTTPClient:       &http.Client{Timeout: timeout},
		MaxResponseBytes: DefaultMaxResponseBytes,
	}
}

// ListKeys returns the keys the service has on record for ownerEmail.
func (c *Client) ListKeys(ctx context.Context, ownerEmail string) ([]Key, error) {
	var out struct {
		Keys []Key `json:"keys"`
	}
	path := "/api/v1/dashboard/keys/" + url.PathEscape(ownerEmail)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

// CreateKey asks the service to mint a key for the account.
func (c *Client) CreateKey(ctx context.Context, req CreateKeyRequest) (*CreatedKey, error) {
	var out CreatedKey
	if err := c.do(ctx, http.MethodPost, "/api/v1/dashboard/create-key", req, "", &out); err != nil {
		return nil, err
	}
	if out.APIKey == "" {
		return nil, &StatusError{StatusCode: http.StatusBadGateway, Detail: "empty api key in response"}
	}
	return &out, nil
}

// DeleteKey revokes keyID on the service.
func (c *Client) DeleteKey(ctx context.Context, keyID, ownerEmail string) error {
	body := deleteKeyRequest{APIKey: keyID, OwnerEmail: ownerEmail}
	return c.do(ctx, http.MethodDelete, "/api/v1/dashboard/delete-key", body, "", nil)
}

// ListJobs returns up to limit jobs visible to apiKey.
func (c *Client) ListJobs(ctx context.Context, apiKey string, limit int) ([]Job, error) {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	path := "/api/v1/jobs?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, apiKey, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob fetches a single job; ErrNotFound when apiKey cannot see it.
func (c *Client) GetJob(ctx context.Context, apiKey, jobID string) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodGet, "/api/v1/job/"+url.PathEscape(jobID), nil, apiKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the service's health document verbatim.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, apiKey string, target any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	limit := c.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}
	if int64(len(raw)) > limit {
		return &StatusError{StatusCode: http.StatusBadGateway, Detail: "response body too large"}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway:
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{StatusCode: resp.StatusCode, Detail: parseDetail(raw)}
	}

	if target == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseDetail extracts FastAPI's {"detail": "..."} message when present.
func parseDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return text
	}
	return string(body.Detail)
}

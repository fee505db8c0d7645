// Package sync implements the HTTP client that pushes screening
// results to the results service.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minleaf/sieve/internal/core"
)

const (
	defaultTimeout = 30 * time.Second
	healthTimeout  = 5 * time.Second
)

// Response is the ingest acknowledgement returned by the service.
type Response struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Inserted int    `json:"inserted"`
}

// Client talks to the results service over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a client for the service at baseURL. The token may be
// empty, in which case requests carry no Authorization header.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Ingest POSTs a screening report payload to /api/ingest and decodes
// the acknowledgement. A 403 maps to core.ErrSyncUnauthorized, every
// other failure to core.ErrSyncFailed.
func (c *Client) Ingest(ctx context.Context, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, core.WrapError(core.ErrSyncFailed, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ingest", bytes.NewReader(body))
	if err != nil {
		return nil, core.WrapError(core.ErrSyncFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrSyncFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, core.WrapError(core.ErrSyncFailed, fmt.Errorf("decode response: %w", err))
		}
		return &out, nil
	case http.StatusForbidden:
		return nil, core.WrapError(core.ErrSyncUnauthorized, fmt.Errorf("ingest rejected with 403"))
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, core.WrapError(core.ErrSyncFailed,
			fmt.Errorf("ingest returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
}

// Health reports whether the service answers its latest-screening
// endpoint. Any transport or status failure reads as unavailable.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/screening/latest", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

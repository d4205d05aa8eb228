// Package trigger wraps the external delivery trigger service: an
// idempotent-per-call RPC that fans a notification out to its channels and
// returns a transaction id.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Request struct {
	WorkflowKey  string          `json:"workflow_key"`
	EnterpriseID string          `json:"enterprise_id"`
	Recipients   []string        `json:"recipients"`
	Channels     []string        `json:"channels,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Overrides    json.RawMessage `json:"overrides,omitempty"`
}

type Response struct {
	TransactionID string `json:"transaction_id"`
}

type Client interface {
	Trigger(ctx context.Context, req Request) (Response, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPClient builds a trigger client with a bounded per-call timeout.
// A timed-out call is a delivery failure, never an indefinite wait.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (c *HTTPClient) Trigger(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal trigger request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/trigger", bytes.NewReader(b))
	if err != nil {
		return Response{}, fmt.Errorf("build trigger request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("trigger delivery: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, fmt.Errorf("trigger delivery: %s: %s", resp.Status, body)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode trigger response: %w", err)
	}
	return out, nil
}

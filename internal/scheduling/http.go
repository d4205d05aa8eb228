package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient talks to the scheduling backend's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Create(ctx context.Context, s Schedule) error {
	resp, err := c.do(ctx, http.MethodPost, "/schedules", s)
	if err != nil {
		return fmt.Errorf("create schedule %s: %w", s.ID, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create schedule %s: %s", s.ID, readError(resp))
	}
	return nil
}

func (c *HTTPClient) Update(ctx context.Context, s Schedule) error {
	resp, err := c.do(ctx, http.MethodPut, "/schedules/"+url.PathEscape(s.ID), s)
	if err != nil {
		return fmt.Errorf("update schedule %s: %w", s.ID, err)
	}
	defer drain(resp)

	// Update is create-if-absent: a schedule deleted out from under us
	// (manual backend edit, prior partial failure) is recreated, not an error.
	if resp.StatusCode == http.StatusNotFound {
		return c.Create(ctx, s)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update schedule %s: %s", s.ID, readError(resp))
	}
	return nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/schedules/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}
	return fmt.Errorf("delete schedule %s: %s", id, readError(resp))
}

func (c *HTTPClient) Get(ctx context.Context, id string) (*Schedule, error) {
	resp, err := c.do(ctx, http.MethodGet, "/schedules/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get schedule %s: %s", id, readError(resp))
	}

	var s Schedule
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode schedule %s: %w", id, err)
	}
	return &s, nil
}

func (c *HTTPClient) List(ctx context.Context, enterpriseID *string) ([]*Schedule, error) {
	path := "/schedules"
	if enterpriseID != nil {
		path += "?enterprise_id=" + url.QueryEscape(*enterpriseID)
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list schedules: %s", readError(resp))
	}

	var out struct {
		Schedules []*Schedule `json:"schedules"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode schedule list: %w", err)
	}
	return out.Schedules, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

func readError(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(b) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, b)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused by the pool
	_ = resp.Body.Close()
}

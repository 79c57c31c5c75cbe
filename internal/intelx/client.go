// Package intelx wraps the two-phase Intelligence X live search: an initiate
// call that returns a job id, then a single fetch of that job's records.
package intelx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/foreseon/IntelXScan/internal/model"
)

// JobID correlates an initiate call with its fetch.
type JobID string

// StatusError reports a non-2xx answer from the search API.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("intelx %s: status %d", e.Op, e.Code)
}

func (e *StatusError) Unwrap() error { return model.ErrUpstreamRequestFailed }

// Doer is satisfied by *fetcher.Client.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (int, []byte, error)
}

type Client struct {
	baseURL string
	apiKey  string
	limit   int64
	http    Doer
}

func New(baseURL, apiKey string, limit int64, doer Doer) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, limit: limit, http: doer}
}

type initiateResponse struct {
	ID json.RawMessage `json:"id"`
}

// Initiate submits selector and returns the job id.
func (c *Client) Initiate(ctx context.Context, selector string) (JobID, error) {
	q := url.Values{}
	q.Set("selector", selector)
	q.Set("limit", strconv.FormatInt(c.limit, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"live/search/internal?"+q.Encode(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build initiate request: %w", err)
	}
	req.Header.Set("x-key", c.apiKey)

	body, err := c.do(ctx, "initiate", req)
	if err != nil {
		return "", err
	}
	var r initiateResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("%w: decode initiate response: %v", model.ErrUpstreamRequestFailed, err)
	}
	id := jobIDString(r.ID)
	if id == "" {
		return "", fmt.Errorf("%w: initiate response has no id", model.ErrUpstreamRequestFailed)
	}
	return JobID(id), nil
}

// FetchResults retrieves the records of job in one call.
func (c *Client) FetchResults(ctx context.Context, job JobID) ([]model.RawRecord, error) {
	q := url.Values{}
	q.Set("id", string(job))
	q.Set("format", "1")
	q.Set("k", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"live/search/result?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build result request: %w", err)
	}

	body, err := c.do(ctx, "result", req)
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

func (c *Client) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	status, body, err := c.http.Do(ctx, req)
	if err != nil {
		if status != 0 && (status < 200 || status >= 300) {
			return nil, &StatusError{Op: op, Code: status}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: intelx %s: %v", model.ErrUpstreamRequestFailed, op, err)
	}
	return body, nil
}

func decodeRecords(body []byte) ([]model.RawRecord, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: decode result response: %v", model.ErrUpstreamRequestFailed, err)
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: result response is not an object", model.ErrUpstreamRequestFailed)
	}
	list, ok := obj["records"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: no valid records in result response", model.ErrUpstreamRequestFailed)
	}
	records := make([]model.RawRecord, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, model.RawRecord(rec))
		}
	}
	return records, nil
}

// The id is normally a UUID string; numeric ids are accepted as-is.
func jobIDString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

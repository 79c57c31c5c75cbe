package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBody bounds a single response; search results for one selector stay well below it.
const maxBody = 64 << 20

// ErrBodyTooLarge is returned when a response exceeds the body limit.
var ErrBodyTooLarge = errors.New("response body too large")

type Client struct {
	httpClient *http.Client
}

func New(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Do performs one attempt. A non-2xx status is returned together with the
// body and a non-nil error; a transport failure returns status 0.
func (c *Client) Do(ctx context.Context, req *http.Request) (int, []byte, error) {
	return c.do(ctx, req, maxBody)
}

func (c *Client) do(ctx context.Context, req *http.Request, limit int64) (int, []byte, error) {
	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return resp.StatusCode, nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, limit)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, errors.New(resp.Status)
	}
	return resp.StatusCode, body, nil
}

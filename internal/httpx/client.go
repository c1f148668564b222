// Package httpx is the JSON-over-HTTP helper shared by the upstream clients:
// transient failures (network errors, 5xx) are retried with exponential
// backoff, everything else is returned to the caller.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// StatusError is returned when an upstream service answers with a
// non-success status.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http error %d: %s", e.Service, e.Code, e.Body)
}

// Client wraps an http.Client with retry settings.
type Client struct {
	Service         string
	HTTP            *http.Client
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
}

func New(service string, timeout time.Duration) *Client {
	return &Client{
		Service:         service,
		HTTP:            &http.Client{Timeout: timeout},
		MaxElapsedTime:  20 * time.Second,
		InitialInterval: 500 * time.Millisecond,
	}
}

// Do sends the request built by newReq (called once per attempt so bodies
// can be replayed) and returns the body of the first 2xx response.
func (c *Client) Do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.MaxElapsedTime
	if c.InitialInterval > 0 {
		bo.InitialInterval = c.InitialInterval
	}

	var body []byte
	op := func() error {
		req, err := newReq(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%s: %w", c.Service, err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: read body: %w", c.Service, err)
		}
		if resp.StatusCode >= 500 {
			return &StatusError{Service: c.Service, Code: resp.StatusCode, Body: string(b)}
		}
		if resp.StatusCode >= 300 {
			// Permanent: don't retry on client errors
			return backoff.Permanent(&StatusError{Service: c.Service, Code: resp.StatusCode, Body: string(b)})
		}
		body = b
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// DoJSON is Do followed by decoding the body into target.
func (c *Client) DoJSON(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error), target any) error {
	body, err := c.Do(ctx, newReq)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%s: json decode error: %v body=%s", c.Service, err, truncate(string(body), 512))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

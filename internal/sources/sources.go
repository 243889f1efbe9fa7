// Package sources holds the HTTP plumbing shared by the provider clients.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deusflow/macrotracker/internal/ratelimit"
)

// DefaultTimeout bounds a single provider request.
const DefaultTimeout = 15 * time.Second

// ErrNoAPIKey is returned by clients that need a key but were built without one.
var ErrNoAPIKey = errors.New("api key is not configured")

// StatusError is a non-2xx provider answer.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, e.Body)
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is embedded by the provider clients.
type Client struct {
	Provider string
	BaseURL  string
	HTTP     Doer
	Limiter  *ratelimit.Limiter
}

// NewHTTPClient returns an *http.Client with the given timeout, or
// DefaultTimeout when zero.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// DoJSON sends req, waiting on the limiter first, and decodes a 2xx JSON
// body into out. Non-2xx answers come back as *StatusError unless
// allowStatus accepts them, in which case the body is still decoded.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any, allowStatus func(int) bool) error {
	if err := c.Limiter.Wait(ctx, c.Provider); err != nil {
		return err
	}

	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.Provider, err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok && (allowStatus == nil || !allowStatus(resp.StatusCode)) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Provider: c.Provider, Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", c.Provider, err)
	}
	return nil
}

// GetJSON is DoJSON for a GET of url.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s build request: %w", c.Provider, err)
	}
	return c.DoJSON(ctx, req, out, nil)
}

// Package apiclient is the JSON-over-HTTP client shared by the provider
// adapters. It waits on the provider's rate limiter, backs off after a 429
// and turns non-2xx replies into *StatusError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/ratelimit"
)

// maxResponseBytes caps how much of a reply is read.
const maxResponseBytes = 32 << 20

// Options configure a Client.
type Options struct {
	// Provider prefixes error messages, e.g. "openai".
	Provider string

	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests. Zero means unlimited.
	RequestsPerSecond float64

	// Header is sent with every request (API keys, version pins).
	Header map[string]string

	// DecodeError replaces *StatusError for providers with their own
	// error envelope. It sees only non-2xx replies.
	DecodeError func(resp *http.Response, body []byte) error
}

// Client sends JSON requests to one provider.
type Client struct {
	provider string
	baseURL  string
	header   map[string]string
	http     *http.Client
	limiter  *ratelimit.Limiter
	decode   func(*http.Response, []byte) error
}

// New creates a client. A trailing slash on BaseURL is ignored.
func New(opts Options) *Client {
	return &Client{
		provider: opts.Provider,
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		header:   opts.Header,
		http:     &http.Client{Timeout: opts.Timeout},
		limiter:  ratelimit.New(opts.RequestsPerSecond, 1),
		decode:   opts.DecodeError,
	}
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends in as JSON to path and decodes the reply into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

// Get fetches path and decodes the reply into out. A nil out only checks
// the status, which is how adapters ping.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, http.NoBody, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.provider, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.Backoff(ratelimit.RetryAfter(resp.Header))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.decode != nil {
			return c.decode(resp, data)
		}
		return &StatusError{Provider: c.provider, Code: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	return nil
}

// Package gateway is the thin typed request layer between the sync core and
// the remote entity API. It normalizes every transport failure and non-2xx
// response into a single error shape and carries no retry logic; retries are
// the sync engine's responsibility.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Gateway issues JSON requests against the remote REST API.
type Gateway struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.http = c }
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.http.Timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// New constructs a Gateway for baseURL. When apiKey is non-empty every
// request carries it as a bearer token.
func New(baseURL, apiKey string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if apiKey != "" {
		base := g.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		g.http.Transport = &apiKeyTransport{base: base, apiKey: apiKey}
	}
	return g
}

// apiKeyTransport adds the Authorization header to every outgoing request.
type apiKeyTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(cloned)
}

// Request issues one HTTP call. body, when non-nil, is marshaled as JSON.
// The response body is returned raw for 2xx responses (empty for 204);
// anything else becomes an *APIError.
func (g *Gateway) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		// Transport failure: same error shape, status code zero.
		return nil, &APIError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Message: "read response: " + err.Error(), StatusCode: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Message:    fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
		if len(payload) > 0 {
			apiErr.Body = json.RawMessage(payload)
		}
		g.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("request failed")
		return nil, apiErr
	}

	return payload, nil
}

// Get issues a GET request.
func (g *Gateway) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return g.Request(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request.
func (g *Gateway) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return g.Request(ctx, http.MethodPost, path, body)
}

// Patch issues a PATCH request.
func (g *Gateway) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return g.Request(ctx, http.MethodPatch, path, body)
}

// Delete issues a DELETE request.
func (g *Gateway) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return g.Request(ctx, http.MethodDelete, path, nil)
}

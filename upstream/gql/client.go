// Package gql is the primary data path: an authenticated client for the
// GitHub Discussions GraphQL API. Responses decode straight into the
// canonical shapes; rate-limit failures are classified here, once, at the
// response boundary.
package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	discussioncache "github.com/wolfeidau/discussion-cache"
)

const (
	// DefaultEndpoint is the GitHub GraphQL API endpoint.
	DefaultEndpoint = "https://api.github.com/graphql"

	// DefaultTimeout is the default timeout for upstream requests.
	DefaultTimeout = 30 * time.Second
)

// Client issues GraphQL queries with bearer-token auth.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the GraphQL endpoint, for tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a GraphQL client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// gqlError is one entry of a GraphQL errors array.
type gqlError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Do executes a single query or mutation and decodes the data payload into
// out. Error classification happens here: HTTP 403/429 or a GraphQL error
// carrying a rate-limit marker maps to ErrRateLimited, NOT_FOUND maps to
// ErrNotFound, everything else propagates as a generic failure.
func (c *Client) Do(ctx context.Context, token, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": vars,
	})
	if err != nil {
		return fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "discussion-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isRateLimitStatus(resp.StatusCode, string(respBody)) {
			c.logger.Warn("graphql request rate limited", "status", resp.StatusCode)
			return discussioncache.ErrRateLimited
		}
		return fmt.Errorf("upstream returned %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		return c.classifyErrors(envelope.Errors)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decoding data payload: %w", err)
		}
	}
	return nil
}

// classifyErrors folds a GraphQL errors array into the closed error set.
func (c *Client) classifyErrors(errs []gqlError) error {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Type == "RATE_LIMITED" || containsRateLimit(e.Message) {
			c.logger.Warn("graphql query rate limited", "message", e.Message)
			return discussioncache.ErrRateLimited
		}
		if e.Type == "NOT_FOUND" {
			return discussioncache.ErrNotFound
		}
		messages = append(messages, e.Message)
	}
	return fmt.Errorf("graphql errors: %s", strings.Join(messages, "; "))
}

// isRateLimitStatus reports whether an HTTP-level failure is a rate-limit
// rejection. GitHub uses 403 with a body marker for primary limits and 429
// for secondary limits.
func isRateLimitStatus(status int, body string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status == http.StatusForbidden && containsRateLimit(body)
}

// containsRateLimit is the pragmatic text marker the upstream uses; it is
// applied only here at the boundary.
func containsRateLimit(s string) bool {
	return strings.Contains(strings.ToLower(s), "rate limit")
}

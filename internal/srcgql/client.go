// Package srcgql is the client for the code host's GraphQL API. It issues
// parameterized queries and validates that responses carry the fields the
// inbox needs, failing fast with an AggregateError otherwise.
package srcgql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spiffcs/inbox/internal/constants"
	"github.com/spiffcs/inbox/internal/log"
	"github.com/spiffcs/inbox/internal/ratelimit"
)

// defaultHTTPClient is a pooled HTTP client shared by all Clients that
// don't supply their own.
var defaultHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     30 * time.Second,
	},
	Timeout: constants.RequestTimeout,
}

// request is a GraphQL request payload.
type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Response is a decoded GraphQL response.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// Client issues GraphQL requests against a single endpoint.
type Client struct {
	endpoint string
	// token is intentionally unexported. NEVER add String(), MarshalJSON(),
	// or any method that could expose this value in logs or serialized output.
	token      string
	httpClient *http.Client
	limits     *ratelimit.State
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the access token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the pooled default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for endpoint. An empty endpoint selects
// constants.DefaultEndpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = constants.DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: defaultHTTPClient,
		limits:     ratelimit.NewState(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.httpClient.Transport
	c.httpClient = &http.Client{
		Transport:     &ratelimit.Transport{Base: base, State: c.limits},
		Timeout:       c.httpClient.Timeout,
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
	}
	return c
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RateLimit returns the last observed rate limit status.
func (c *Client) RateLimit() ratelimit.Status {
	return c.limits.Status()
}

// Do executes a query. Transport failures, non-2xx statuses and
// undecodable bodies are returned as errors; GraphQL errors are returned
// in the Response for the caller to judge.
func (c *Client) Do(ctx context.Context, query string, vars map[string]any) (*Response, error) {
	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GraphQL request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read GraphQL response: %w", err)
	}

	log.Debug("graphql request", "request_id", requestID, "status", resp.StatusCode, "elapsed", time.Since(start).Round(time.Millisecond))
	log.Trace("graphql response", "request_id", requestID, "body", string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GraphQL request failed with status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL response: %w", err)
	}
	for _, e := range out.Errors {
		log.Debug("graphql error", "request_id", requestID, "message", e.Message)
	}
	return &out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

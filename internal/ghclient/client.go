// Package ghclient reads repository files through the GitHub REST API.
// It is an alternative candidate file source for repos hosted on GitHub.
package ghclient

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"github.com/spiffcs/inbox/internal/ratelimit"
	"golang.org/x/oauth2"
)

// Client wraps the GitHub API client.
type Client struct {
	client *gh.Client
	limits *ratelimit.State
}

// Option configures a Client.
type Option func(*gh.Client) error

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(base string) Option {
	return func(c *gh.Client) error {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		c.BaseURL = u
		return nil
	}
}

// NewClient creates a new GitHub client using a personal access token.
// An empty token falls back to GITHUB_TOKEN.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("GitHub token not provided. Set the GITHUB_TOKEN environment variable")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	limits := ratelimit.NewState()
	tc.Transport = &ratelimit.Transport{
		Base:  tc.Transport,
		State: limits,
	}

	client := gh.NewClient(tc)
	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	return &Client{client: client, limits: limits}, nil
}

// AuthenticatedUser returns the authenticated user's login.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to get authenticated user: %w", err)
	}
	return user.GetLogin(), nil
}

// RateLimits fetches the current GitHub API rate limit status.
func (c *Client) RateLimits(ctx context.Context) (*gh.RateLimits, error) {
	limits, _, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limits: %w", err)
	}
	return limits, nil
}

// RateLimit returns the limits observed on the last response.
func (c *Client) RateLimit() ratelimit.Status {
	return c.limits.Status()
}

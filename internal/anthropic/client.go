// Package anthropic calls the OAuth-authenticated usage and profile
// endpoints of the Anthropic API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the production Anthropic API host.
	DefaultBaseURL = "https://api.anthropic.com"

	usagePath   = "/api/oauth/usage"
	profilePath = "/api/oauth/profile"

	// betaHeader opts the bearer token into the OAuth-scoped endpoints.
	betaHeader = "oauth-2025-04-20"
)

// APIError is a non-2xx response from the usage or profile endpoint.
type APIError struct {
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status: %d", e.Status)
}

// AuthError reports whether the failure indicates an expired or invalid
// access token, making it worth a single refresh-and-retry.
func (e *APIError) AuthError() bool {
	return e.Status == http.StatusUnauthorized
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API host, used by tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// Client is a bearer-authenticated Anthropic API client.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for the Anthropic API.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchUsage returns the current usage snapshot for the given access token.
func (c *Client) FetchUsage(ctx context.Context, accessToken string) (*UsageSnapshot, error) {
	var snapshot UsageSnapshot
	if err := c.get(ctx, usagePath, accessToken, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// FetchProfile returns the signed-in account's profile. The Subscription
// field is left empty for the caller to derive from stored credentials.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*AccountProfile, error) {
	var response profileResponse
	if err := c.get(ctx, profilePath, accessToken, &response); err != nil {
		return nil, err
	}

	return &AccountProfile{
		Email:       response.Account.Email,
		DisplayName: response.Account.DisplayName,
		FullName:    response.Account.FullName,
	}, nil
}

func (c *Client) get(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("anthropic-beta", betaHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

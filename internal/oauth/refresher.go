package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/Arielbs/claude-usage-monitor/internal/credstore"
)

// ErrNoRefreshToken means the stored credentials carry no refresh token, so
// an expired access token cannot be renewed without re-login.
var ErrNoRefreshToken = errors.New("no refresh token available")

// RefreshError reports a token-endpoint rejection.
type RefreshError struct {
	Status int
	Body   string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed (%d): %s", e.Status, e.Body)
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithEndpoint overrides the token endpoint, used by tests to point at a
// local server.
func WithEndpoint(endpoint oauth2.Endpoint) RefresherOption {
	return func(r *Refresher) {
		r.endpoint = endpoint
	}
}

// WithHTTPClient sets a custom HTTP client for token refresh requests.
func WithHTTPClient(client *http.Client) RefresherOption {
	return func(r *Refresher) {
		r.client = client
	}
}

// Refresher exchanges a refresh token for a new access/refresh token pair
// and persists the result through the credential store.
type Refresher struct {
	store    credstore.Store
	endpoint oauth2.Endpoint
	client   *http.Client
}

// NewRefresher creates a Refresher persisting through the given store.
func NewRefresher(store credstore.Store, opts ...RefresherOption) (*Refresher, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}

	r := &Refresher{
		store:    store,
		endpoint: Endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second, // Bounds the token exchange even without caller deadlines
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Refresh exchanges refreshToken at the token endpoint, merges the response
// into the stored credential record and persists it.
//
// The stored record is re-read after a successful exchange so that fields
// the token endpoint does not return are carried forward from the pre-refresh
// token. A record with no OAuth section does not fail the refresh; the
// persisted record then simply lacks the carried-forward fields. On endpoint
// failure the stored record is left untouched.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*credstore.OAuthToken, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	fresh, err := r.exchange(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	merged := &credstore.OAuthToken{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
	}
	if !fresh.Expiry.IsZero() {
		merged.ExpiresAt = fresh.Expiry.UnixMilli()
	}

	record, err := r.store.ReadRecord(ctx)
	switch {
	case errors.Is(err, credstore.ErrNoCredentials):
		slog.WarnContext(ctx, "no stored credentials to merge into, persisting bare token pair")
		record = credstore.NewRecord()
	case err != nil:
		return nil, fmt.Errorf("reading stored credentials: %w", err)
	default:
		if previous, tokenErr := record.OAuthToken(); tokenErr == nil {
			merged.Scopes = previous.Scopes
			merged.SubscriptionType = previous.SubscriptionType
			merged.RateLimitTier = previous.RateLimitTier
		}
	}

	if err := record.SetOAuthToken(merged); err != nil {
		return nil, err
	}
	if err := r.store.WriteRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting refreshed token: %w", err)
	}

	return merged, nil
}

// exchange performs the refresh_token grant: a url-form-encoded POST of
// {grant_type, refresh_token, client_id} expecting a JSON
// {access_token, refresh_token, expires_in} reply.
func (r *Refresher) exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	cfg := &oauth2.Config{
		ClientID: ClientID,
		Endpoint: r.endpoint,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)

	// A token carrying only a refresh token forces a refresh_token grant.
	fresh, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &RefreshError{
				Status: retrieveErr.Response.StatusCode,
				Body:   string(retrieveErr.Body),
			}
		}
		return nil, fmt.Errorf("token refresh request failed: %w", err)
	}

	return fresh, nil
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Arielbs/claude-usage-monitor/internal/anthropic"
	"github.com/Arielbs/claude-usage-monitor/internal/credstore"
)

// TokenRefresher exchanges a refresh token for a fresh, persisted token
// pair. Implemented by oauth.Refresher.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*credstore.OAuthToken, error)
}

// isAuthError reports whether err is worth a single refresh-and-retry.
func isAuthError(err error) bool {
	var apiErr *anthropic.APIError
	return errors.As(err, &apiErr) && apiErr.AuthError()
}

// fetchWithAuth runs op with the stored access token, refreshing the token
// pair at most once on an auth failure.
//
// When no refresh token is stored, or the refresh itself fails, the original
// auth error is returned so the root cause is never masked. The retried
// call's outcome is final either way; a second auth failure is surfaced
// as-is.
func fetchWithAuth[T any](
	ctx context.Context,
	store credstore.Store,
	refresher TokenRefresher,
	op func(ctx context.Context, accessToken string) (T, error),
) (T, error) {
	var zero T

	record, err := store.ReadRecord(ctx)
	if err != nil {
		return zero, err
	}
	token, err := record.OAuthToken()
	if err != nil {
		return zero, err
	}

	result, opErr := op(ctx, token.AccessToken)
	if opErr == nil || !isAuthError(opErr) {
		return result, opErr
	}

	// The refresh token comes from the record as stored now, not from the
	// token read before the failed call.
	record, err = store.ReadRecord(ctx)
	if err != nil {
		return zero, opErr
	}
	token, err = record.OAuthToken()
	if err != nil || token.RefreshToken == "" {
		return zero, opErr
	}

	fresh, err := refresher.Refresh(ctx, token.RefreshToken)
	if err != nil {
		slog.WarnContext(ctx, "token refresh failed, surfacing original error",
			"refresh_error", err)
		return zero, opErr
	}

	return op(ctx, fresh.AccessToken)
}

// Fetcher runs authenticated usage and profile calls against the API.
type Fetcher struct {
	store     credstore.Store
	refresher TokenRefresher
	client    *anthropic.Client
}

// NewFetcher creates a Fetcher.
func NewFetcher(store credstore.Store, refresher TokenRefresher, client *anthropic.Client) (*Fetcher, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if refresher == nil {
		return nil, fmt.Errorf("missing token refresher")
	}
	if client == nil {
		return nil, fmt.Errorf("missing API client")
	}

	return &Fetcher{
		store:     store,
		refresher: refresher,
		client:    client,
	}, nil
}

// FetchUsage returns a fresh usage snapshot.
func (f *Fetcher) FetchUsage(ctx context.Context) (*anthropic.UsageSnapshot, error) {
	return fetchWithAuth(ctx, f.store, f.refresher, f.client.FetchUsage)
}

// FetchProfile returns the account profile, enriched with the subscription
// label derived from the stored credentials. The enrichment happens here
// rather than in the retry protocol because the label comes from the
// credential record, not the profile endpoint.
func (f *Fetcher) FetchProfile(ctx context.Context) (*anthropic.AccountProfile, error) {
	profile, err := fetchWithAuth(ctx, f.store, f.refresher, f.client.FetchProfile)
	if err != nil {
		return nil, err
	}

	if record, err := f.store.ReadRecord(ctx); err == nil {
		if token, err := record.OAuthToken(); err == nil {
			profile.Subscription = token.SubscriptionLabel()
		}
	}

	return profile, nil
}

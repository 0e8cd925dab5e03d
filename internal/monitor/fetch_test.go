package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Arielbs/claude-usage-monitor/internal/anthropic"
	"github.com/Arielbs/claude-usage-monitor/internal/credstore"
)

// fakeStore is an in-memory credstore.Store round-tripping through the
// serialized form.
type fakeStore struct {
	payload []byte
}

func (f *fakeStore) ReadRecord(ctx context.Context) (*credstore.Record, error) {
	if f.payload == nil {
		return nil, credstore.ErrNoCredentials
	}
	return credstore.ParseRecord(f.payload)
}

func (f *fakeStore) WriteRecord(ctx context.Context, record *credstore.Record) error {
	data, err := record.Marshal()
	if err != nil {
		return err
	}
	f.payload = data
	return nil
}

func storeWith(t *testing.T, payload string) *fakeStore {
	t.Helper()
	return &fakeStore{payload: []byte(payload)}
}

// fakeRefresher records refresh calls and optionally writes the new token
// pair into the store, like the real refresher does.
type fakeRefresher struct {
	store           *fakeStore
	token           *credstore.OAuthToken
	err             error
	calls           int
	gotRefreshToken string
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*credstore.OAuthToken, error) {
	f.calls++
	f.gotRefreshToken = refreshToken
	if f.err != nil {
		return nil, f.err
	}
	if f.store != nil {
		record, err := f.store.ReadRecord(ctx)
		if errors.Is(err, credstore.ErrNoCredentials) {
			record = credstore.NewRecord()
		} else if err != nil {
			return nil, err
		}
		if err := record.SetOAuthToken(f.token); err != nil {
			return nil, err
		}
		if err := f.store.WriteRecord(ctx, record); err != nil {
			return nil, err
		}
	}
	return f.token, nil
}

func TestFetchWithAuthRefreshesOnceOn401(t *testing.T) {
	store := storeWith(t, `{"claudeAiOauth": {"accessToken": "A1", "refreshToken": "R1"}}`)
	refresher := &fakeRefresher{
		store: store,
		token: &credstore.OAuthToken{AccessToken: "A2", RefreshToken: "R2"},
	}

	var calls []string
	op := func(ctx context.Context, accessToken string) (string, error) {
		calls = append(calls, accessToken)
		if accessToken == "A1" {
			return "", &anthropic.APIError{Status: http.StatusUnauthorized}
		}
		return "ok", nil
	}

	result, err := fetchWithAuth(context.Background(), store, refresher, op)
	if err != nil {
		t.Fatalf("fetchWithAuth() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
	if refresher.calls != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", refresher.calls)
	}
	if refresher.gotRefreshToken != "R1" {
		t.Errorf("refresh token = %q, want R1", refresher.gotRefreshToken)
	}
	if len(calls) != 2 || calls[0] != "A1" || calls[1] != "A2" {
		t.Errorf("op tokens = %v, want [A1 A2]", calls)
	}
}

func TestFetchWithAuthNoRefreshTokenReturnsOriginalError(t *testing.T) {
	store := storeWith(t, `{"claudeAiOauth": {"accessToken": "A1"}}`)
	refresher := &fakeRefresher{}

	op := func(ctx context.Context, accessToken string) (string, error) {
		return "", &anthropic.APIError{Status: http.StatusUnauthorized}
	}

	_, err := fetchWithAuth(context.Background(), store, refresher, op)
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("error = %v, want the original 401", err)
	}
	if refresher.calls != 0 {
		t.Errorf("refresh calls = %d, want 0", refresher.calls)
	}
}

func TestFetchWithAuthRefreshFailureReturnsOriginalError(t *testing.T) {
	store := storeWith(t, `{"claudeAiOauth": {"accessToken": "A1", "refreshToken": "R1"}}`)
	refresher := &fakeRefresher{err: fmt.Errorf("token endpoint unreachable")}

	op := func(ctx context.Context, accessToken string) (string, error) {
		return "", &anthropic.APIError{Status: http.StatusUnauthorized}
	}

	_, err := fetchWithAuth(context.Background(), store, refresher, op)
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("error = %v, want the original 401, not the refresh failure", err)
	}
	if refresher.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.calls)
	}
}

func TestFetchWithAuthSecondAuthFailureIsFinal(t *testing.T) {
	store := storeWith(t, `{"claudeAiOauth": {"accessToken": "A1", "refreshToken": "R1"}}`)
	refresher := &fakeRefresher{
		store: store,
		token: &credstore.OAuthToken{AccessToken: "A2", RefreshToken: "R2"},
	}

	opCalls := 0
	op := func(ctx context.Context, accessToken string) (string, error) {
		opCalls++
		return "", &anthropic.APIError{Status: http.StatusUnauthorized}
	}

	_, err := fetchWithAuth(context.Background(), store, refresher, op)
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if opCalls != 2 {
		t.Errorf("op calls = %d, want 2 (no unbounded retry loop)", opCalls)
	}
	if refresher.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.calls)
	}
}

func TestFetchWithAuthNonAuthErrorIsNotRetried(t *testing.T) {
	store := storeWith(t, `{"claudeAiOauth": {"accessToken": "A1", "refreshToken": "R1"}}`)
	refresher := &fakeRefresher{}

	opCalls := 0
	op := func(ctx context.Context, accessToken string) (string, error) {
		opCalls++
		return "", &anthropic.APIError{Status: http.StatusInternalServerError}
	}

	_, err := fetchWithAuth(context.Background(), store, refresher, op)
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("error = %v, want 500 APIError", err)
	}
	if opCalls != 1 || refresher.calls != 0 {
		t.Errorf("op calls = %d, refresh calls = %d; want 1 and 0", opCalls, refresher.calls)
	}
}

func TestFetchWithAuthFailsFastWithoutCredentials(t *testing.T) {
	store := &fakeStore{}
	refresher := &fakeRefresher{}

	op := func(ctx context.Context, accessToken string) (string, error) {
		t.Fatal("op must not run without credentials")
		return "", nil
	}

	_, err := fetchWithAuth(context.Background(), store, refresher, op)
	if !errors.Is(err, credstore.ErrNoCredentials) {
		t.Fatalf("error = %v, want ErrNoCredentials", err)
	}
}

func TestFetchWithAuthReadsRefreshTokenFromCurrentRecord(t *testing.T) {
	store := storeWith(t, `{"claudeAiOauth": {"accessToken": "A1", "refreshToken": "R1"}}`)
	refresher := &fakeRefresher{
		store: store,
		token: &credstore.OAuthToken{AccessToken: "A2", RefreshToken: "R2"},
	}

	op := func(ctx context.Context, accessToken string) (string, error) {
		if accessToken == "A1" {
			// Another process rotated the pair while our call was in flight.
			store.payload = []byte(`{"claudeAiOauth": {"accessToken": "A1b", "refreshToken": "R1b"}}`)
			return "", &anthropic.APIError{Status: http.StatusUnauthorized}
		}
		return "ok", nil
	}

	if _, err := fetchWithAuth(context.Background(), store, refresher, op); err != nil {
		t.Fatalf("fetchWithAuth() error = %v", err)
	}
	if refresher.gotRefreshToken != "R1b" {
		t.Errorf("refresh token = %q, want the currently stored R1b", refresher.gotRefreshToken)
	}
}

func TestFetcherFetchProfileEnrichesSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"account": {"email": "dev@example.com", "display_name": "Dev"}}`)
	}))
	defer server.Close()

	store := storeWith(t, `{"claudeAiOauth": {
		"accessToken": "A1",
		"subscriptionType": "max",
		"rateLimitTier": "default_claude_max_20x"
	}}`)

	fetcher, err := NewFetcher(store, &fakeRefresher{}, anthropic.NewClient(anthropic.WithBaseURL(server.URL)))
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}

	profile, err := fetcher.FetchProfile(context.Background())
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}
	if profile.Email != "dev@example.com" {
		t.Errorf("email = %q", profile.Email)
	}
	if profile.Subscription != "Max 20x" {
		t.Errorf("subscription = %q, want Max 20x", profile.Subscription)
	}
}

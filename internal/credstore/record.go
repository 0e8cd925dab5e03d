package credstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// oauthField is the one field of the credential record this agent understands.
const oauthField = "claudeAiOauth"

// OAuthToken is the token pair stored under the claudeAiOauth field.
// It is replaced wholesale on refresh, never partially updated.
type OAuthToken struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken,omitempty"`
	ExpiresAt        int64    `json:"expiresAt,omitempty"` // epoch milliseconds
	Scopes           []string `json:"scopes,omitempty"`
	SubscriptionType string   `json:"subscriptionType,omitempty"`
	RateLimitTier    string   `json:"rateLimitTier,omitempty"`
}

// SubscriptionLabel derives a human-readable plan name from the token's
// subscription metadata.
func (t *OAuthToken) SubscriptionLabel() string {
	switch t.SubscriptionType {
	case "max":
		switch {
		case strings.Contains(t.RateLimitTier, "20x"):
			return "Max 20x"
		case strings.Contains(t.RateLimitTier, "5x"):
			return "Max 5x"
		default:
			return "Max"
		}
	case "pro":
		return "Pro"
	case "free", "":
		return "Free"
	default:
		return t.SubscriptionType
	}
}

// Record is the full secret-store payload. Fields other than claudeAiOauth
// are opaque to this agent and round-trip unmodified through read→modify→write.
type Record struct {
	fields map[string]json.RawMessage
}

// NewRecord returns an empty credential record.
func NewRecord() *Record {
	return &Record{fields: make(map[string]json.RawMessage)}
}

// ParseRecord decodes a stored credential record. Returns ErrParseFailure if
// the payload is not valid UTF-8 or not a JSON object.
func ParseRecord(data []byte) (*Record, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrParseFailure)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	return &Record{fields: fields}, nil
}

// Marshal serializes the record, including all fields it does not understand.
func (r *Record) Marshal() ([]byte, error) {
	data, err := json.Marshal(r.fields)
	if err != nil {
		return nil, fmt.Errorf("serializing credential record: %w", err)
	}
	return data, nil
}

// OAuthToken returns the token stored under the claudeAiOauth field.
// Returns ErrNoCredentials if the field is absent or carries no access token,
// ErrParseFailure if it is present but malformed.
func (r *Record) OAuthToken() (*OAuthToken, error) {
	raw, ok := r.fields[oauthField]
	if !ok {
		return nil, ErrNoCredentials
	}

	var token OAuthToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if token.AccessToken == "" {
		return nil, ErrNoCredentials
	}

	return &token, nil
}

// SetOAuthToken replaces the claudeAiOauth field wholesale, leaving every
// other field untouched.
func (r *Record) SetOAuthToken(token *OAuthToken) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("serializing OAuth token: %w", err)
	}

	if r.fields == nil {
		r.fields = make(map[string]json.RawMessage)
	}
	r.fields[oauthField] = raw
	return nil
}

// Field returns the raw value of an arbitrary record field.
func (r *Record) Field(name string) (json.RawMessage, bool) {
	raw, ok := r.fields[name]
	return raw, ok
}

package credstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keychain entry Claude Code maintains its OAuth
// credentials under. The agent shares this record rather than owning it.
const DefaultService = "Claude Code-credentials"

// KeyringStore reads and writes the credential record in the OS-native
// credential store (macOS Keychain, Windows Credential Manager, Linux
// Secret Service).
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the given service and user
// identifiers. The user may be empty; Claude Code writes its entry with an
// empty account name.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// ReadRecord looks up the credential record in the keyring.
func (k *KeyringStore) ReadRecord(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := keyring.Get(k.service, k.user)
	if err != nil {
		return nil, classifyKeyringError(err)
	}

	return ParseRecord([]byte(strings.TrimSpace(payload)))
}

// WriteRecord replaces the stored record. The write is delete-then-insert and
// is not transactional: a crash between the two steps loses the record. That
// is accepted since everything in it can be re-derived by logging in again.
func (k *KeyringStore) WriteRecord(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := record.Marshal()
	if err != nil {
		return err
	}

	// Delete failure is treated as "entry was absent".
	_ = keyring.Delete(k.service, k.user)

	if err := keyring.Set(k.service, k.user, string(payload)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailure, err)
	}

	return nil
}

// classifyKeyringError maps keyring backend failures onto the store error
// taxonomy.
func classifyKeyringError(err error) error {
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("%w: keyring entry not found", ErrNoCredentials)
	case errors.Is(err, keyring.ErrUnsupportedPlatform):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case isAccessDenied(err):
		return fmt.Errorf("%w: %v", ErrStoreAccessDenied, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// isAccessDenied sniffs backend-specific denial messages. The keyring
// backends surface OS errors as opaque strings, so matching on the message
// is the only signal available.
func isAccessDenied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "denied") ||
		strings.Contains(msg, "not authorized") ||
		strings.Contains(msg, "permission")
}

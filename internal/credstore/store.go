package credstore

import (
	"context"
	"errors"
)

// Error taxonomy for credential storage. Callers match with errors.Is.
var (
	// ErrStoreUnavailable means the secret store backend could not be reached.
	ErrStoreUnavailable = errors.New("secret store unavailable")

	// ErrStoreAccessDenied means the OS refused access to the stored record.
	ErrStoreAccessDenied = errors.New("secret store access denied")

	// ErrStoreWriteFailure means the record could not be persisted.
	ErrStoreWriteFailure = errors.New("secret store write failed")

	// ErrParseFailure means the stored payload is not a well-formed record.
	ErrParseFailure = errors.New("malformed credential record")

	// ErrNoCredentials means no OAuth token is present in storage.
	ErrNoCredentials = errors.New("no OAuth credentials found")
)

// Store reads and writes the named credential record.
//
// Writes replace the record as a whole. The stored record is shared with
// Claude Code and is not locked against concurrent external writers; the
// last writer wins.
type Store interface {
	// ReadRecord returns the stored credential record. Returns
	// ErrNoCredentials if no record exists.
	ReadRecord(ctx context.Context) (*Record, error)

	// WriteRecord persists the record, replacing any existing one.
	WriteRecord(ctx context.Context, record *Record) error
}

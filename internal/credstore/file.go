package credstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore reads and writes the credential record as a JSON file, matching
// the ~/.claude/.credentials.json layout Claude Code uses on platforms
// without a usable keyring.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// DefaultCredentialsFile returns the path Claude Code writes its credential
// file to.
func DefaultCredentialsFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".claude", ".credentials.json"), nil
}

// NewFileStore creates a FileStore for the given path, creating parent
// directories with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// ReadRecord reads and parses the credential file.
func (f *FileStore) ReadRecord(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoCredentials, f.filePath)
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: %v", ErrStoreAccessDenied, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return ParseRecord(data)
}

// WriteRecord atomically replaces the credential file using temp file +
// rename, with 0600 permissions. Unlike the keyring backend there is no
// window where the record is absent.
func (f *FileStore) WriteRecord(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := record.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailure, err)
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()

	if _, err := tempFile.Write(payload); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("%w: %v", ErrStoreWriteFailure, err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailure, err)
	}

	if err := os.Chmod(tempName, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailure, err)
	}

	if err := os.Rename(tempName, f.filePath); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailure, err)
	}

	return nil
}

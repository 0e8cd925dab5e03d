package credstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreMissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), ".credentials.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	_, err = store.ReadRecord(context.Background())
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("ReadRecord() error = %v, want ErrNoCredentials", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".credentials.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	record, err := ParseRecord([]byte(`{
		"claudeAiOauth": {"accessToken": "A1", "refreshToken": "R1"},
		"extra": "field"
	}`))
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}

	if err := store.WriteRecord(ctx, record); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %04o, want 0600", perm)
	}

	read, err := store.ReadRecord(ctx)
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	token, err := read.OAuthToken()
	if err != nil {
		t.Fatalf("OAuthToken() error = %v", err)
	}
	if token.AccessToken != "A1" {
		t.Errorf("accessToken = %q, want A1", token.AccessToken)
	}
	if _, ok := read.Field("extra"); !ok {
		t.Error("extra field lost in round trip")
	}
}

func TestFileStoreMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".credentials.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	_, err = store.ReadRecord(context.Background())
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("ReadRecord() error = %v, want ErrParseFailure", err)
	}
}

package browser

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, dataDir, id, name, email string) {
	t.Helper()

	dir := filepath.Join(dataDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	prefs := `{"profile": {"name": "` + name + `"}`
	if email != "" {
		prefs += `, "account_info": [{"email": "` + email + `"}]`
	}
	prefs += `}`

	if err := os.WriteFile(filepath.Join(dir, "Preferences"), []byte(prefs), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func newTestChrome(t *testing.T) (*Chrome, string) {
	t.Helper()

	dataDir := t.TempDir()
	selection := filepath.Join(t.TempDir(), "profile-selection")

	chrome, err := NewChrome(
		WithDataDir(dataDir),
		WithSelectionFile(selection),
	)
	if err != nil {
		t.Fatalf("NewChrome() error = %v", err)
	}
	return chrome, dataDir
}

func TestProfilesDiscovery(t *testing.T) {
	chrome, dataDir := newTestChrome(t)

	writeProfile(t, dataDir, "Default", "Personal", "me@example.com")
	writeProfile(t, dataDir, "Profile 1", "Work", "dev@example.com")
	if err := os.MkdirAll(filepath.Join(dataDir, "Crash Reports"), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	profiles := chrome.Profiles()
	if len(profiles) != 2 {
		t.Fatalf("Profiles() returned %d profiles, want 2: %+v", len(profiles), profiles)
	}

	byID := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	if p := byID["Default"]; p.Name != "Personal" || p.Email != "me@example.com" {
		t.Errorf("Default = %+v", p)
	}
	if p := byID["Profile 1"]; p.Name != "Work" || p.Email != "dev@example.com" {
		t.Errorf("Profile 1 = %+v", p)
	}
}

func TestProfilesMissingInstallation(t *testing.T) {
	chrome, err := NewChrome(
		WithDataDir(filepath.Join(t.TempDir(), "does-not-exist")),
		WithSelectionFile(filepath.Join(t.TempDir(), "profile-selection")),
	)
	if err != nil {
		t.Fatalf("NewChrome() error = %v", err)
	}

	if profiles := chrome.Profiles(); profiles != nil {
		t.Errorf("Profiles() = %+v, want nil", profiles)
	}
}

func TestMatchAccountPersistsSelection(t *testing.T) {
	chrome, dataDir := newTestChrome(t)

	writeProfile(t, dataDir, "Default", "Personal", "me@example.com")
	writeProfile(t, dataDir, "Profile 2", "Work", "dev@example.com")

	chrome.MatchAccount("DEV@example.com") // case-insensitive

	id, ok := chrome.SelectedProfile()
	if !ok || id != "Profile 2" {
		t.Errorf("SelectedProfile() = %q, %v; want Profile 2", id, ok)
	}
}

func TestMatchAccountWithoutMatchLeavesSelectionEmpty(t *testing.T) {
	chrome, dataDir := newTestChrome(t)
	writeProfile(t, dataDir, "Default", "Personal", "me@example.com")

	chrome.MatchAccount("stranger@example.com")

	if id, ok := chrome.SelectedProfile(); ok {
		t.Errorf("SelectedProfile() = %q, want no selection", id)
	}
}

func TestSelectProfileRoundTrip(t *testing.T) {
	chrome, _ := newTestChrome(t)

	if err := chrome.SelectProfile("Profile 7"); err != nil {
		t.Fatalf("SelectProfile() error = %v", err)
	}

	id, ok := chrome.SelectedProfile()
	if !ok || id != "Profile 7" {
		t.Errorf("SelectedProfile() = %q, %v", id, ok)
	}
}

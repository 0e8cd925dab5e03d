// Package browser discovers Chrome browser profiles and opens URLs with a
// remembered profile, so links land in the window signed in to the same
// account the agent monitors. Simple glue around Chrome's on-disk layout.
package browser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	darwinDataDir = "Library/Application Support/Google/Chrome"
	darwinBinary  = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"

	// selectionFileName remembers the chosen profile across restarts.
	selectionFileName = ".claude-usage-monitor-profile"
)

// Profile is one Chrome browser profile.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// chromePrefs is the subset of Chrome's Preferences file we read.
type chromePrefs struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	AccountInfo []struct {
		Email string `json:"email"`
	} `json:"account_info"`
}

// ChromeOption configures a Chrome helper.
type ChromeOption func(*Chrome)

// WithDataDir overrides Chrome's user data directory, used by tests.
func WithDataDir(dir string) ChromeOption {
	return func(c *Chrome) {
		c.dataDir = dir
	}
}

// WithSelectionFile overrides where the chosen profile id is persisted.
func WithSelectionFile(path string) ChromeOption {
	return func(c *Chrome) {
		c.selectionFile = path
	}
}

// WithBinary overrides the Chrome executable path.
func WithBinary(path string) ChromeOption {
	return func(c *Chrome) {
		c.binary = path
	}
}

// Chrome inspects and drives a local Chrome installation.
type Chrome struct {
	dataDir       string
	selectionFile string
	binary        string
}

// NewChrome creates a Chrome helper with platform defaults.
func NewChrome(opts ...ChromeOption) (*Chrome, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}

	c := &Chrome{
		dataDir:       filepath.Join(home, darwinDataDir),
		selectionFile: filepath.Join(home, selectionFileName),
		binary:        darwinBinary,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Profiles lists the installed Chrome profiles. A missing or unreadable
// installation yields an empty list, not an error.
func (c *Chrome) Profiles() []Profile {
	entries, err := os.ReadDir(c.dataDir)
	if err != nil {
		return nil
	}

	var profiles []Profile
	for _, entry := range entries {
		name := entry.Name()
		if name != "Default" && !strings.HasPrefix(name, "Profile ") {
			continue
		}

		profile := Profile{ID: name, Name: name}
		if prefs, err := c.readPrefs(name); err == nil {
			if prefs.Profile.Name != "" {
				profile.Name = prefs.Profile.Name
			}
			if len(prefs.AccountInfo) > 0 {
				profile.Email = prefs.AccountInfo[0].Email
			}
		}
		profiles = append(profiles, profile)
	}

	return profiles
}

func (c *Chrome) readPrefs(profileID string) (*chromePrefs, error) {
	data, err := os.ReadFile(filepath.Join(c.dataDir, profileID, "Preferences"))
	if err != nil {
		return nil, err
	}

	var prefs chromePrefs
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("parsing %s preferences: %w", profileID, err)
	}
	return &prefs, nil
}

// SelectedProfile returns the persisted profile choice.
func (c *Chrome) SelectedProfile() (string, bool) {
	data, err := os.ReadFile(c.selectionFile)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}

// SelectProfile persists a profile choice.
func (c *Chrome) SelectProfile(id string) error {
	if err := os.WriteFile(c.selectionFile, []byte(id), 0644); err != nil {
		return fmt.Errorf("persisting profile selection: %w", err)
	}
	return nil
}

// MatchAccount selects the profile whose signed-in email matches, persisting
// the choice. No-op when nothing matches.
func (c *Chrome) MatchAccount(email string) {
	for _, profile := range c.Profiles() {
		if profile.Email != "" && strings.EqualFold(profile.Email, email) {
			if err := c.SelectProfile(profile.ID); err != nil {
				slog.Warn("failed to persist matched browser profile",
					"profile", profile.ID, "error", err)
			}
			return
		}
	}
}

// OpenURL opens the URL with the selected profile. Chrome is invoked
// directly so the profile is respected even while Chrome is running.
func (c *Chrome) OpenURL(url string) error {
	profile, ok := c.SelectedProfile()
	if !ok {
		profile = "Default"
	}

	cmd := exec.Command(c.binary, "--profile-directory="+profile, url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	// Detach; the browser outlives the agent's interest in it.
	go func() { _ = cmd.Wait() }()

	return nil
}

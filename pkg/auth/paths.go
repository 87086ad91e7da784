// ABOUTME: XDG-compliant path resolution for credentials and per-provider tokens
// ABOUTME: Explicit overrides win, then XDG dirs, then home-relative defaults

package auth

import (
	"os"
	"path/filepath"
)

const (
	appName            = "calendar-mcp"
	defaultCredentials = "credentials.json"
	configSubdir       = ".config"
	dataSubdir         = ".local/share"
)

// CredentialsPath returns where the Google OAuth client file lives.
// Priority: override (GOOGLE_CREDENTIALS_PATH) > XDG_CONFIG_HOME > ~/.config.
// Relative XDG values are ignored, and the result is always cleaned.
func CredentialsPath(override string) string {
	if override != "" {
		return filepath.Clean(override)
	}

	base, ok := xdgBase("XDG_CONFIG_HOME", configSubdir)
	if !ok {
		return defaultCredentials
	}
	return filepath.Clean(filepath.Join(base, appName, defaultCredentials))
}

// TokenDir returns the directory holding cached provider tokens.
// Priority: override (CALENDAR_MCP_TOKEN_DIR) > XDG_DATA_HOME > ~/.local/share.
func TokenDir(override string) string {
	if override != "" {
		return filepath.Clean(override)
	}

	base, ok := xdgBase("XDG_DATA_HOME", dataSubdir)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(base, appName))
}

// TokenPath returns the token file for provider inside dir
func TokenPath(dir string, provider Provider) string {
	return filepath.Join(dir, string(provider)+"_token.json")
}

// xdgBase resolves an absolute XDG directory or the home fallback.
// ok is false when neither is available.
func xdgBase(envVar, homeSubdir string) (string, bool) {
	if dir := os.Getenv(envVar); dir != "" && filepath.IsAbs(dir) {
		return dir, true
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", false
	}
	return filepath.Join(home, homeSubdir), true
}

// EnsureDir creates the parent directory of filePath with 0700 permissions
func EnsureDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0700)
}

// Package xdgpath resolves revgate's per-user configuration directory
// following the XDG Base Directory specification on Unix and the
// equivalent Windows conventions.
package xdgpath

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "revgate"

// ConfigDir returns the platform-standard per-user configuration
// directory for revgate.
//
// Priority order:
//  1. REVGATE_CONFIG_DIR environment variable, if set.
//  2. XDG_CONFIG_HOME/revgate (Unix) or %APPDATA%\revgate (Windows).
//  3. ~/.config/revgate (Unix) or %USERPROFILE%\AppData\Roaming\revgate (Windows).
func ConfigDir() (string, error) {
	if dir := os.Getenv("REVGATE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
			return filepath.Join(xdgHome, appName), nil
		}
		return filepath.Join(home, ".config", appName), nil
	}
}

// CacheDir returns the cache/ subdirectory of the config directory,
// creating it if necessary.
func CacheDir() (string, error) {
	base, err := ConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

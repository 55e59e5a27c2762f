package config

import (
	"os"
	"path/filepath"
)

const appName = "fomopomo"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigPath returns the client TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}

// DefaultSettingsPath returns the cached timer settings path.
func DefaultSettingsPath() string {
	return filepath.Join(XDGConfigHome(), appName, "settings.yaml")
}

// DefaultOutboxPath returns the path of the local session queue.
func DefaultOutboxPath() string {
	return filepath.Join(XDGDataHome(), appName, "outbox.db")
}

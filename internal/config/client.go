package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultServerURL = "http://localhost:8080"
	defaultTickMS    = 200
	minTickMS        = 50
)

// FileConfig represents the client TOML configuration file.
type FileConfig struct {
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
}

type ServerConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token,omitempty"`
}

// ClientConfig holds local paths and the tick interval. Empty values use
// the XDG defaults.
type ClientConfig struct {
	Outbox   string `toml:"outbox,omitempty"`
	Settings string `toml:"settings,omitempty"`
	TickMS   int    `toml:"tick_ms,omitempty"`
}

// LoadClient reads a TOML config from the given path. Missing file is not an error.
func LoadClient(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// SaveClient writes cfg to path. The file holds the auth token, so it is
// readable by the owner only.
func SaveClient(path string, cfg FileConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c FileConfig) ServerURL() string {
	if c.Server.URL == "" {
		return DefaultServerURL
	}
	return c.Server.URL
}

func (c FileConfig) OutboxPath() string {
	if c.Client.Outbox == "" {
		return DefaultOutboxPath()
	}
	return c.Client.Outbox
}

func (c FileConfig) SettingsPath() string {
	if c.Client.Settings == "" {
		return DefaultSettingsPath()
	}
	return c.Client.Settings
}

// TickInterval returns the engine tick interval, never below 50ms.
func (c FileConfig) TickInterval() time.Duration {
	ms := c.Client.TickMS
	if ms <= 0 {
		ms = defaultTickMS
	}
	if ms < minTickMS {
		ms = minTickMS
	}
	return time.Duration(ms) * time.Millisecond
}

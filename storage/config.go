package storage

import (
	"encoding/json"
	"fmt"
	"os"
)

// Defaults for a fresh installation.
const (
	DefaultServerURL           = "https://courier-mailbox.deno.dev"
	DefaultPollingIntervalSecs = 10
)

// Config is the persisted agent configuration.
type Config struct {
	ServerURL           string `json:"server_url"`
	PollingIntervalSecs uint64 `json:"polling_interval_secs"`
}

// DefaultConfig returns the configuration used when none is on disk.
func DefaultConfig() Config {
	return Config{
		ServerURL:           DefaultServerURL,
		PollingIntervalSecs: DefaultPollingIntervalSecs,
	}
}

// SaveConfig writes the configuration document to config.json.
func SaveConfig(dir string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(configPath(dir), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LoadConfig reads config.json, falling back to defaults when the file does
// not exist yet.
func LoadConfig(dir string) (Config, error) {
	data, err := os.ReadFile(configPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.PollingIntervalSecs == 0 {
		cfg.PollingIntervalSecs = DefaultPollingIntervalSecs
	}
	return cfg, nil
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// ConfigPath returns the path to the config file, honoring BRON_CONFIG.
func ConfigPath() (string, error) {
	if p := os.Getenv("BRON_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bron", "config.json"), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults.

	// Override with environment variables for each group.
	envconfig.Process("BRON_PATHS", &cfg.Paths)
	envconfig.Process("BRON_MODEL", &cfg.Model)
	envconfig.Process("BRON_EVENTS", &cfg.Events)
	envconfig.Process("BRON_NOTIFY", &cfg.Notify)
	envconfig.Process("BRON_GATEWAY", &cfg.Gateway)

	return cfg, nil
}

// Save writes the configuration to the config file, creating parent
// directories as needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("BRON_CONFIG", filepath.Join(t.TempDir(), "nope.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Model.Name)
	}
	if cfg.Model.SessionTimeoutSeconds != 45 || cfg.Model.MaxRetries != 3 {
		t.Errorf("session defaults = %d/%d", cfg.Model.SessionTimeoutSeconds, cfg.Model.MaxRetries)
	}
	if cfg.Model.HistoryLimit != 10 {
		t.Errorf("history limit = %d, want 10", cfg.Model.HistoryLimit)
	}
	if cfg.Gateway.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.Gateway.ListenAddr)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := map[string]any{
		"model":   map[string]any{"name": "gpt-4o", "maxRetries": 5},
		"gateway": map[string]any{"listenAddr": ":9090"},
	}
	data, _ := json.Marshal(body)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BRON_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "gpt-4o" || cfg.Model.MaxRetries != 5 {
		t.Errorf("model = %q retries = %d", cfg.Model.Name, cfg.Model.MaxRetries)
	}
	if cfg.Gateway.ListenAddr != ":9090" {
		t.Errorf("listen addr = %q", cfg.Gateway.ListenAddr)
	}
	// Untouched fields keep their defaults.
	if cfg.Model.MaxTokens != 1024 {
		t.Errorf("max tokens = %d", cfg.Model.MaxTokens)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"model":{"name":"gpt-4o"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BRON_CONFIG", path)
	t.Setenv("BRON_MODEL_NAME", "gpt-4.1")
	t.Setenv("BRON_GATEWAY_LISTEN_ADDR", "127.0.0.1:8443")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "gpt-4.1" {
		t.Errorf("model = %q, env should win", cfg.Model.Name)
	}
	if cfg.Gateway.ListenAddr != "127.0.0.1:8443" {
		t.Errorf("listen addr = %q", cfg.Gateway.ListenAddr)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	t.Setenv("BRON_CONFIG", path)

	cfg := DefaultConfig()
	cfg.Model.Name = "gpt-4o"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Model.Name != "gpt-4o" {
		t.Errorf("round trip lost model name: %q", loaded.Model.Name)
	}
}

// Package config provides configuration types and loading for bron.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Events, Notify, Gateway.
type Config struct {
	Paths   PathsConfig   `json:"paths"`
	Model   ModelConfig   `json:"model"`
	Events  EventsConfig  `json:"events"`
	Notify  NotifyConfig  `json:"notify"`
	Gateway GatewayConfig `json:"gateway"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	DBPath  string `json:"dbPath" envconfig:"DB_PATH"`
}

// ModelConfig groups LLM provider and session settings.
type ModelConfig struct {
	APIKey                string  `json:"apiKey" envconfig:"API_KEY"`
	APIBase               string  `json:"apiBase" envconfig:"API_BASE"`
	Name                  string  `json:"name" envconfig:"NAME"`
	MaxTokens             int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature           float64 `json:"temperature" envconfig:"TEMPERATURE"`
	SessionTimeoutSeconds int     `json:"sessionTimeoutSeconds" envconfig:"SESSION_TIMEOUT_SECONDS"`
	MaxRetries            int     `json:"maxRetries" envconfig:"MAX_RETRIES"`
	HistoryLimit          int     `json:"historyLimit" envconfig:"HISTORY_LIMIT"`
}

// SessionTimeout returns the configured session timeout as a duration.
func (m ModelConfig) SessionTimeout() time.Duration {
	return time.Duration(m.SessionTimeoutSeconds) * time.Second
}

// EventsConfig configures the Kafka task event stream.
type EventsConfig struct {
	Enabled bool     `json:"enabled" envconfig:"ENABLED"`
	Brokers []string `json:"brokers" envconfig:"BROKERS"`
	Topic   string   `json:"topic" envconfig:"TOPIC"`
}

// NotifyConfig configures Slack operator notifications.
type NotifyConfig struct {
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// GatewayConfig configures the HTTP API server.
type GatewayConfig struct {
	ListenAddr string `json:"listenAddr" envconfig:"LISTEN_ADDR"`
}

// DefaultConfig returns a configuration with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DBPath: "bron.db",
		},
		Model: ModelConfig{
			APIBase:               "https://api.openai.com/v1",
			Name:                  "gpt-4o-mini",
			MaxTokens:             1024,
			Temperature:           0.7,
			SessionTimeoutSeconds: 45,
			MaxRetries:            3,
			HistoryLimit:          10,
		},
		Events: EventsConfig{
			Topic: "bron.task-events",
		},
		Gateway: GatewayConfig{
			ListenAddr: ":8080",
		},
	}
}

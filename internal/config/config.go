// Package config loads and persists moodscope configuration.
// Configuration lives in .moodscope/config.yaml under the workspace; a missing
// file yields defaults so the tool runs unconfigured against a local Ollama.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all moodscope configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configures the local model server transport.
	LLM LLMConfig `yaml:"llm"`

	// Fallback configures the advisory circuit breaker policy.
	Fallback FallbackConfig `yaml:"fallback"`

	// History configures the score history store.
	History HistoryConfig `yaml:"history"`

	// Logging configures categorized file logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the local model server client.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// FallbackConfig points the policy store at its files. The policy config file
// itself (failure threshold etc.) is JSON and owned by the fallback package;
// its absence disables the policy entirely.
type FallbackConfig struct {
	ConfigPath        string `yaml:"config_path"`
	TrackerPath       string `yaml:"tracker_path"`
	EscalationLogPath string `yaml:"escalation_log_path"`
}

// HistoryConfig configures the score history store.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`  // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "moodscope",
		Version: "0.3.0",

		LLM: LLMConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
			Timeout: "120s",
		},

		Fallback: FallbackConfig{
			ConfigPath:        ".moodscope/fallback_config.json",
			TrackerPath:       ".moodscope/quota_tracker.json",
			EscalationLogPath: ".moodscope/escalation.log",
		},

		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: ".moodscope/history.db",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
// Returns defaults when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("MOODSCOPE_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("MOODSCOPE_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if timeout := os.Getenv("MOODSCOPE_TIMEOUT"); timeout != "" {
		c.LLM.Timeout = timeout
	}
	if path := os.Getenv("MOODSCOPE_TRACKER_PATH"); path != "" {
		c.Fallback.TrackerPath = path
	}
	if path := os.Getenv("MOODSCOPE_HISTORY_DB"); path != "" {
		c.History.DatabasePath = path
	}
}

// LLMTimeout parses the configured LLM timeout, falling back to 120s.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

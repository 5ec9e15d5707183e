// Package config provides configuration loading and structs for the redline server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported language model providers.
const (
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Revision RevisionConfig `yaml:"revision"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	MaxUploadBytes        int64  `yaml:"max_upload_bytes"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	MetricsEnabled        *bool  `yaml:"metrics_enabled"`
}

// MetricsEnabledOrDefault returns whether /metrics is served; defaults to true when unset.
func (s *ServerConfig) MetricsEnabledOrDefault() bool {
	if s.MetricsEnabled != nil {
		return *s.MetricsEnabled
	}
	return true
}

// RequestTimeout returns the per-request timeout.
func (s *ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// StorageConfig holds paths for uploads, generated documents, and the revision catalog.
type StorageConfig struct {
	UploadDir    string `yaml:"upload_dir"`
	OutputDir    string `yaml:"output_dir"`
	DatabasePath string `yaml:"database_path"`
}

// LLMConfig holds settings for the change proposal service.
// The openai provider speaks the OpenAI chat-completions protocol, which Groq also serves.
type LLMConfig struct {
	Provider           string  `yaml:"provider"`
	BaseURL            string  `yaml:"base_url"`
	Model              string  `yaml:"model"`
	APIKey             string  `yaml:"api_key"`
	APIKeyEnv          string  `yaml:"api_key_env"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
	Temperature        float64 `yaml:"temperature"`
	JSONMode           *bool   `yaml:"json_mode"`
	StaticResponsePath string  `yaml:"static_response_path"`
}

// JSONModeOrDefault returns whether to request a JSON object response; defaults to true when unset.
func (l *LLMConfig) JSONModeOrDefault() bool {
	if l.JSONMode != nil {
		return *l.JSONMode
	}
	return true
}

// ResolveAPIKey returns the configured key, falling back to the APIKeyEnv environment variable.
func (l *LLMConfig) ResolveAPIKey() string {
	if l.APIKey != "" {
		return l.APIKey
	}
	if l.APIKeyEnv != "" {
		return os.Getenv(l.APIKeyEnv)
	}
	return ""
}

// Timeout returns the client timeout for the proposal service.
func (l *LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// RevisionConfig holds settings for applying proposals.
type RevisionConfig struct {
	// ReportOutcomes exposes per-proposal outcomes (including skipped proposals)
	// in responses and writes an outcome workbook next to each artifact.
	ReportOutcomes bool `yaml:"report_outcomes"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Storage.OutputDir = expandPath(cfg.Storage.OutputDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.LLM.StaticResponsePath != "" {
		cfg.LLM.StaticResponsePath = expandPath(cfg.LLM.StaticResponsePath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
	case ProviderStatic:
		if c.LLM.StaticResponsePath == "" {
			return fmt.Errorf("llm.static_response_path is required for the %q provider", ProviderStatic)
		}
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

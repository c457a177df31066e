package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Tably configuration.
type Config struct {
	CacheDBPath string         `yaml:"cache_db_path"`
	DataDBPath  string         `yaml:"data_db_path"`
	SchemaPath  string         `yaml:"schema_path"`
	Provider    ProviderConfig `yaml:"provider"`
	Cache       CacheConfig    `yaml:"cache"`
	Audit       AuditConfig    `yaml:"audit"`
}

// ProviderConfig defines the completion provider. An empty APIKey means
// not configured: every stage falls back to its deterministic default.
type ProviderConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	MaxEntries    int `yaml:"max_entries"`
	DiversitySize int `yaml:"diversity_size"`
}

// AuditConfig controls the interaction log.
type AuditConfig struct {
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Default returns a Config with sensible defaults. The provider API key
// is taken from OPENAI_API_KEY when present.
func Default() *Config {
	return &Config{
		CacheDBPath: "tably-cache.db",
		DataDBPath:  "tably-data.db",
		SchemaPath:  "schema.sql",
		Provider: ProviderConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries:    10000,
			DiversitySize: 5,
		},
		Audit: AuditConfig{
			DBPath:        "tably-audit.db",
			RetentionDays: 30,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads the config file if it exists, otherwise returns
// defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

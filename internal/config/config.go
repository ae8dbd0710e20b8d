// Package config loads the gateway configuration from YAML with
// environment variable expansion.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for the gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Model     ModelConfig     `yaml:"model"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type ModelConfig struct {
	Name       string `yaml:"name"`
	TitleModel string `yaml:"title_model"`
}

type ArtifactsConfig struct {
	// Backend selects the artifact store: "memory" or "s3".
	Backend string   `yaml:"backend"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	Prefix       string `yaml:"prefix"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`

	// WatchFolders maps local source folders to team IDs for
	// change-triggered syncs.
	WatchFolders map[string]string `yaml:"watch_folders"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			MaxConnections:  15,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Model: ModelConfig{
			Name:       "gemini-2.0-flash",
			TitleModel: "gemini-2.0-flash-lite",
		},
		Artifacts: ArtifactsConfig{
			Backend: "memory",
		},
		Sync: SyncConfig{
			Interval: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file, expanding ${ENV} references, and
// fills unset fields from the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	switch c.Artifacts.Backend {
	case "memory":
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("s3 artifact backend requires a bucket")
		}
	default:
		return fmt.Errorf("invalid artifact backend: %s", c.Artifacts.Backend)
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync interval must not be negative")
	}
	return nil
}

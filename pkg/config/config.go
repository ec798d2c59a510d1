// Package config provides configuration handling for chatflow.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Proxy configuration for the /api reverse proxy
	Proxy ProxyConfig `json:"proxy" yaml:"proxy"`

	// Retention configuration for message logs
	Retention RetentionConfig `json:"retention" yaml:"retention"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// ClientOrigin is the origin allowed by CORS; empty allows all
	ClientOrigin string `json:"client_origin" yaml:"client_origin"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host" yaml:"host"`

	// Port to listen on
	Port int `json:"port" yaml:"port"`
}

// StorageConfig contains storage settings.
type StorageConfig struct {
	// Type of storage to use
	Type string `json:"type" yaml:"type"` // "memory", "redis", "postgres", "dynamodb"

	// Redis configuration
	Redis RedisConfig `json:"redis" yaml:"redis"`

	// Postgres configuration
	Postgres PostgresConfig `json:"postgres" yaml:"postgres"`

	// DynamoDB configuration
	DynamoDB DynamoDBConfig `json:"dynamodb" yaml:"dynamodb"`
}

// RedisConfig contains Redis settings.
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// PostgresConfig contains PostgreSQL settings.
type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database string `json:"database" yaml:"database"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
}

// DynamoDBConfig contains DynamoDB settings.
type DynamoDBConfig struct {
	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the DynamoDB endpoint (for local development)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// TablePrefix is the prefix for all tables
	TablePrefix string `json:"table_prefix" yaml:"table_prefix"`
}

// ProxyConfig contains settings for the /api reverse proxy used during
// front-end development.
type ProxyConfig struct {
	// Enabled turns the proxy endpoint on
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Prefix is the path prefix forwarded to the upstream
	Prefix string `json:"prefix" yaml:"prefix"`

	// Upstream is the base URL requests are forwarded to
	Upstream string `json:"upstream" yaml:"upstream"`
}

// RetentionConfig controls the message-log retention sweep.
type RetentionConfig struct {
	// Enabled turns the sweep on
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Schedule is a cron expression
	Schedule string `json:"schedule" yaml:"schedule"`

	// MaxAgeDays is how long message logs are kept
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the logging level
	Level string `json:"level" yaml:"level"` // "debug", "info", "warn", "error"

	// Format is the log format
	Format string `json:"format" yaml:"format"` // "json", "console"
}

// LoadConfig loads the configuration from a JSON or YAML file, chosen by
// extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Storage: StorageConfig{
			Type: "memory",
			Redis: RedisConfig{
				Address: "localhost:6379",
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "chatflow",
				User:     "chatflow",
				SSLMode:  "disable",
			},
			DynamoDB: DynamoDBConfig{
				Region:      "us-west-2",
				TablePrefix: "chatflow_",
			},
		},
		Proxy: ProxyConfig{
			Prefix:   "/api",
			Upstream: "http://localhost:8000",
		},
		Retention: RetentionConfig{
			Schedule:   "0 3 * * *",
			MaxAgeDays: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// SaveConfig saves the configuration to a JSON file.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

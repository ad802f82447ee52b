package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Acid-Arch/boutiqueclient-sub000/config"
)

// Config represents the server configuration
type Config struct {
	Server   ServerConfig          `toml:"server"`
	Database config.DatabaseConfig `toml:"database"`
	Logging  config.LoggingConfig  `toml:"logging"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	HTTPPort    int    `toml:"http_port"`
	BindAddress string `toml:"bind_address"` // Address to bind to (default: 0.0.0.0 for all interfaces)
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    9090,
			BindAddress: "0.0.0.0",
		},
		Database: config.DatabaseConfig{
			Path: "", // Empty = use platform default
		},
		Logging: config.LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from TOML file with environment variable overrides
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file if it exists
	if _, err := os.Stat(configPath); err == nil {
		if err := config.LoadTOML(configPath, cfg); err != nil {
			return nil, err
		}
	}

	if val := os.Getenv("SERVER_HTTP_PORT"); val != "" {
		var port int
		if _, err := fmt.Sscanf(val, "%d", &port); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if val := os.Getenv("BIND_ADDRESS"); val != "" {
		cfg.Server.BindAddress = val
	}

	// Logging env overrides (check prefixed first, then generic)
	if val := os.Getenv("SERVER_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	} else if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}

	config.ApplyDatabaseEnvOverrides(&cfg.Database, "SERVER")

	return cfg, nil
}

// WriteDefaultConfig writes a default configuration file
func WriteDefaultConfig(configPath string) error {
	cfg := DefaultConfig()
	return config.WriteDefaultTOML(configPath, cfg)
}

// Package config provides shared configuration utilities for BoutiqueClient components
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/BurntSushi/toml"
)

// FindConfigFile searches for a config file in multiple platform-appropriate locations
// Returns the path and data if found, or an error if not found in any location
func FindConfigFile(filename string, component string) (string, []byte, error) {
	searchPaths := GetConfigSearchPaths(filename, component)

	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("%s not found in any search path", filename)
}

// GetConfigSearchPaths returns an ordered list of paths to search for config files
func GetConfigSearchPaths(filename string, component string) []string {
	var searchPaths []string

	// 1. Component-specific system directory (highest priority for services)
	switch runtime.GOOS {
	case "windows":
		searchPaths = append(searchPaths, filepath.Join(os.Getenv("ProgramData"), "BoutiqueClient", component, filename))
	case "darwin":
		searchPaths = append(searchPaths, filepath.Join("/Library/Application Support", "BoutiqueClient", component, filename))
	default: // Linux and other Unix-like
		searchPaths = append(searchPaths, filepath.Join("/etc/boutiqueclient", component, filename))
	}

	// 2. User-specific config directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			searchPaths = append(searchPaths, filepath.Join(homeDir, "AppData", "Local", "BoutiqueClient", component, filename))
		case "darwin":
			searchPaths = append(searchPaths, filepath.Join(homeDir, "Library", "Application Support", "BoutiqueClient", component, filename))
		default:
			searchPaths = append(searchPaths, filepath.Join(homeDir, ".config", "boutiqueclient", component, filename))
		}
	}

	// 3. Executable directory
	if exePath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(exePath), filename))
	}

	// 4. Current working directory (lowest priority)
	searchPaths = append(searchPaths, filepath.Join(".", filename))

	return searchPaths
}

// GetDataDirectory returns the appropriate directory for storing application data
// When running as service, returns system-wide directory
// When running interactively, returns user-specific directory
func GetDataDirectory(component string, isService bool) (string, error) {
	var dataDir string

	if isService {
		switch runtime.GOOS {
		case "windows":
			dataDir = filepath.Join(os.Getenv("ProgramData"), "BoutiqueClient", component)
		default:
			dataDir = filepath.Join("/var/lib/boutiqueclient", component)
		}
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}

		switch runtime.GOOS {
		case "windows":
			dataDir = filepath.Join(homeDir, "AppData", "Local", "BoutiqueClient", component)
		case "darwin":
			dataDir = filepath.Join(homeDir, "Library", "Application Support", "BoutiqueClient", component)
		default:
			dataDir = filepath.Join(homeDir, ".local", "share", "boutiqueclient", component)
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}

// GetLogDirectory returns the appropriate directory for storing logs
func GetLogDirectory(component string, isService bool) (string, error) {
	var logDir string

	if isService {
		switch runtime.GOOS {
		case "windows":
			logDir = filepath.Join(os.Getenv("ProgramData"), "BoutiqueClient", component, "logs")
		default:
			logDir = filepath.Join("/var/log/boutiqueclient", component)
		}
	} else {
		logDir = "logs"
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	return logDir, nil
}

// WriteDefaultTOML writes a default TOML configuration file with the provided structure
func WriteDefaultTOML(configPath string, config interface{}) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadTOML loads a TOML configuration file into the provided structure
func LoadTOML(configPath string, config interface{}) error {
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("config file not found: %w", err)
	}

	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DatabaseConfig holds database settings. The pool and timeout knobs are read
// once at startup by the store factory; individual operations never consult them.
type DatabaseConfig struct {
	Driver   string `toml:"driver"` // "sqlite" (default) or "postgres"
	Path     string `toml:"path"`   // SQLite database path
	DSN      string `toml:"dsn"`    // Full DSN, overrides Host/Port/User/Password/Name
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"ssl_mode"`

	MaxOpenConns         int `toml:"max_open_conns"`
	MaxIdleConns         int `toml:"max_idle_conns"`
	ConnMaxLifetimeSecs  int `toml:"conn_max_lifetime_secs"`
	ConnectTimeoutSecs   int `toml:"connect_timeout_secs"`
	StatementTimeoutSecs int `toml:"statement_timeout_secs"`

	// CredentialsKey is a base64-encoded 32-byte key used to seal account
	// passwords at rest. Empty means plaintext (development mode).
	CredentialsKey string `toml:"credentials_key"`
}

// EffectiveDriver returns the configured driver, defaulting to sqlite.
func (c *DatabaseConfig) EffectiveDriver() string {
	if c.Driver == "" {
		return "sqlite"
	}
	return c.Driver
}

// BuildDSN builds a connection string for the configured driver.
// For SQLite this is the database path; for Postgres a URL-style DSN.
// An explicit DSN always wins.
func (c *DatabaseConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	switch c.EffectiveDriver() {
	case "postgres", "postgresql":
		if c.Host == "" || c.Name == "" {
			return ""
		}
		port := c.Port
		if port == 0 {
			port = 5432
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   fmt.Sprintf("%s:%d", c.Host, port),
			Path:   "/" + c.Name,
		}
		if c.User != "" {
			if c.Password != "" {
				u.User = url.UserPassword(c.User, c.Password)
			} else {
				u.User = url.User(c.User)
			}
		}
		q := u.Query()
		q.Set("sslmode", sslMode)
		if c.ConnectTimeoutSecs > 0 {
			q.Set("connect_timeout", strconv.Itoa(c.ConnectTimeoutSecs))
		}
		if c.StatementTimeoutSecs > 0 {
			q.Set("options", fmt.Sprintf("-c statement_timeout=%d", c.StatementTimeoutSecs*1000))
		}
		u.RawQuery = q.Encode()
		return u.String()
	default:
		return c.Path
	}
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `toml:"level"`
}

// ApplyDatabaseEnvOverrides applies environment variable overrides for database
// settings. A component prefix (e.g. "SERVER") is checked before the generic name.
func ApplyDatabaseEnvOverrides(cfg *DatabaseConfig, prefix string) {
	get := func(key string) string {
		if prefix != "" {
			if val := os.Getenv(prefix + "_" + key); val != "" {
				return val
			}
		}
		return os.Getenv(key)
	}

	if val := get("DB_DRIVER"); val != "" {
		cfg.Driver = val
	}
	if val := get("DB_PATH"); val != "" {
		cfg.Path = val
	}
	if val := get("DB_DSN"); val != "" {
		cfg.DSN = val
	}
	if val := get("DB_HOST"); val != "" {
		cfg.Host = val
	}
	if val := get("DB_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Port = port
		}
	}
	if val := get("DB_USER"); val != "" {
		cfg.User = val
	}
	if val := get("DB_PASSWORD"); val != "" {
		cfg.Password = val
	}
	if val := get("DB_NAME"); val != "" {
		cfg.Name = val
	}
	if val := get("DB_SSL_MODE"); val != "" {
		cfg.SSLMode = val
	}
	if val := get("DB_MAX_OPEN_CONNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxOpenConns = n
		}
	}
	if val := get("DB_MAX_IDLE_CONNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxIdleConns = n
		}
	}
	if val := get("DB_CONN_MAX_LIFETIME_SECS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.ConnMaxLifetimeSecs = n
		}
	}
	if val := get("DB_CONNECT_TIMEOUT_SECS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.ConnectTimeoutSecs = n
		}
	}
	if val := get("DB_STATEMENT_TIMEOUT_SECS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.StatementTimeoutSecs = n
		}
	}
	if val := get("DB_CREDENTIALS_KEY"); val != "" {
		cfg.CredentialsKey = val
	}
}

// ApplyLoggingEnvOverrides applies environment variable overrides for logging
func ApplyLoggingEnvOverrides(cfg *LoggingConfig) {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Level = val
	}
}

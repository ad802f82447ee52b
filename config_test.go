package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.Server.HTTPPort)
	}
	if cfg.Server.BindAddress != "0.0.0.0" {
		t.Errorf("BindAddress = %q", cfg.Server.BindAddress)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Database.EffectiveDriver() != "sqlite" {
		t.Errorf("EffectiveDriver() = %q", cfg.Database.EffectiveDriver())
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want default", cfg.Server.HTTPPort)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	content := `
[server]
http_port = 8000
bind_address = "127.0.0.1"

[database]
driver = "postgres"
host = "db.internal"
name = "boutique"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8000 || cfg.Server.BindAddress != "127.0.0.1" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Host != "db.internal" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_HTTP_PORT", "7070")
	t.Setenv("BIND_ADDRESS", "10.0.0.5")
	t.Setenv("SERVER_LOG_LEVEL", "TRACE")
	t.Setenv("SERVER_DB_DRIVER", "postgres")
	t.Setenv("SERVER_DB_HOST", "env-db")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.HTTPPort != 7070 {
		t.Errorf("HTTPPort = %d, want 7070", cfg.Server.HTTPPort)
	}
	if cfg.Server.BindAddress != "10.0.0.5" {
		t.Errorf("BindAddress = %q", cfg.Server.BindAddress)
	}
	if cfg.Logging.Level != "trace" {
		t.Errorf("Logging.Level = %q, want lowered trace", cfg.Logging.Level)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Host != "env-db" {
		t.Errorf("database = %+v", cfg.Database)
	}
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "server.toml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := DefaultConfig()
	if cfg.Server != want.Server || cfg.Logging != want.Logging {
		t.Errorf("round trip = %+v, want %+v", cfg, want)
	}
}

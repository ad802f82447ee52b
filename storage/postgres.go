package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Acid-Arch/boutiqueclient-sub000/config"

	// Import postgres driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	BaseStore
}

const pgSchemaVersion = 1

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(cfg *config.DatabaseConfig) (*PostgresStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config required")
	}

	dsn := cfg.BuildDSN()
	if dsn == "" {
		return nil, fmt.Errorf("invalid database configuration: could not build DSN")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeSecs > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSecs) * time.Second)
	}

	// Test connection
	pingTimeout := 10 * time.Second
	if cfg.ConnectTimeoutSecs > 0 {
		pingTimeout = time.Duration(cfg.ConnectTimeoutSecs) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{
		BaseStore: BaseStore{
			db:      db,
			dialect: &PostgresDialect{},
			dbPath:  dsn,
		},
	}

	if err := store.SetCredentialsKey(cfg.CredentialsKey); err != nil {
		db.Close()
		return nil, err
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize postgres schema: %w", err)
	}

	logInfo("Opened PostgreSQL database", "host", cfg.Host, "database", cfg.Name)

	return store, nil
}

// initSchema creates the database schema for PostgreSQL.
func (s *PostgresStore) initSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Automation accounts (tenants)
	CREATE TABLE IF NOT EXISTS ig_accounts (
		id BIGSERIAL PRIMARY KEY,
		record_id TEXT NOT NULL DEFAULT '',
		instagram_username TEXT NOT NULL UNIQUE,
		instagram_password TEXT NOT NULL DEFAULT '',
		email_address TEXT NOT NULL DEFAULT '',
		email_password TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'Unused',
		imap_status TEXT NOT NULL DEFAULT 'Off',
		assigned_device_id TEXT,
		assigned_clone_number INTEGER,
		assigned_package_name TEXT,
		assignment_timestamp TIMESTAMPTZ,
		login_timestamp TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_status ON ig_accounts(status);
	CREATE INDEX IF NOT EXISTS idx_accounts_assigned_device ON ig_accounts(assigned_device_id);
	CREATE INDEX IF NOT EXISTS idx_accounts_username ON ig_accounts(instagram_username);

	-- Device-hosted clone slots (execution capacity units).
	-- Rows are provisioned by inventory scans; this subsystem never deletes them.
	CREATE TABLE IF NOT EXISTS clone_inventory (
		device_id TEXT NOT NULL,
		clone_number INTEGER NOT NULL,
		clone_status TEXT NOT NULL DEFAULT 'Available',
		clone_health TEXT NOT NULL DEFAULT '',
		current_account TEXT,
		package_name TEXT NOT NULL DEFAULT '',
		device_name TEXT NOT NULL DEFAULT '',
		last_scanned TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (device_id, clone_number)
	);

	CREATE INDEX IF NOT EXISTS idx_clones_status ON clone_inventory(clone_status);
	CREATE INDEX IF NOT EXISTS idx_clones_current_account ON clone_inventory(current_account);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if currentVersion < pgSchemaVersion {
		_, err = s.db.Exec("INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT (version) DO NOTHING",
			pgSchemaVersion)
		if err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	return nil
}

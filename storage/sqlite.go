package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"database/sql"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	BaseStore
}

const schemaVersion = 1

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists (unless in-memory)
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	// Build connection string with pragmas (skip for in-memory databases)
	connStr := dbPath
	if dbPath != ":memory:" {
		connStr += "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-64000&_foreign_keys=ON"
	} else {
		connStr += "?_foreign_keys=ON"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to :memory: would be a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{
		BaseStore: BaseStore{
			db:      db,
			dialect: &SQLiteDialect{},
			dbPath:  dbPath,
		},
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return store, nil
}

// initSchema creates tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Automation accounts (tenants)
	CREATE TABLE IF NOT EXISTS ig_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
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
		assignment_timestamp DATETIME,
		login_timestamp DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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
		last_scanned DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (device_id, clone_number)
	);

	CREATE INDEX IF NOT EXISTS idx_clones_status ON clone_inventory(clone_status);
	CREATE INDEX IF NOT EXISTS idx_clones_current_account ON clone_inventory(current_account);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Check/update schema version
	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if currentVersion < schemaVersion {
		_, err = s.db.Exec("INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, ?)",
			schemaVersion, time.Now())
		if err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	return nil
}

// GetDefaultDBPath returns the default database path.
// On Windows, this is typically in ProgramData; on Unix-like systems, /var/lib.
func GetDefaultDBPath() string {
	if runtime.GOOS == "windows" {
		pd := os.Getenv("PROGRAMDATA")
		if pd == "" {
			pd = "C:\\ProgramData"
		}
		return filepath.Join(pd, "BoutiqueClient", "server", "server.db")
	}
	return "/var/lib/boutiqueclient/server.db"
}

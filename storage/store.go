package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Acid-Arch/boutiqueclient-sub000/config"
)

// Store is the allocation engine's persistence interface. Both SQLite and
// PostgreSQL backends implement it through BaseStore.
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, account *Account) error
	ImportAccounts(ctx context.Context, accounts []*Account) (*ImportResult, error)
	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	ListAccounts(ctx context.Context, filter Filter, orderBy []OrderBy, limit, offset int) ([]*Account, error)
	CountAccounts(ctx context.Context, filter Filter) (int, error)
	UpdateAccounts(ctx context.Context, filter Filter, patch Patch) (int64, error)
	DeleteAccounts(ctx context.Context, filter Filter) (int64, error)
	BulkUpdateAccountStatus(ctx context.Context, accountIDs []int64, status string, extra Patch) (int64, error)
	BulkDeleteAccounts(ctx context.Context, accountIDs []int64) (int64, error)

	// Clones
	GetClone(ctx context.Context, deviceID string, cloneNumber int) (*Clone, error)
	ListClones(ctx context.Context, filter Filter, orderBy []OrderBy, limit, offset int) ([]*Clone, error)
	CountClones(ctx context.Context, filter Filter) (int, error)
	UpdateClones(ctx context.Context, filter Filter, patch Patch) (int64, error)
	UpsertClone(ctx context.Context, clone *Clone) error
	AssignClone(ctx context.Context, deviceID string, cloneNumber int, username string) (bool, error)
	UnassignClone(ctx context.Context, deviceID string, cloneNumber int) (bool, error)

	// Device analytics
	DeviceSummaries(ctx context.Context) ([]DeviceSummary, error)
	DeviceSummary(ctx context.Context, deviceID string) (*DeviceSummary, error)
	GetDeviceStats(ctx context.Context) (*DeviceStats, error)
	GetCapacityAnalysis(ctx context.Context) (*CapacityAnalysis, error)

	// Allocation
	PlanAssignments(ctx context.Context, accountIDs []int64, strategy string) ([]Assignment, error)
	ValidateAssignmentFeasibility(ctx context.Context, accountIDs []int64) (*FeasibilityResult, error)
	AutoAssignAccounts(ctx context.Context, accountIDs []int64, strategy string) (*AutoAssignResult, error)

	DB() *sql.DB
	Dialect() Dialect
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)

// NewStore creates a new Store implementation based on the database
// configuration. SQLite is the default backend; PostgreSQL is selected by
// driver. Pool sizing and timeouts come from the config and are applied once
// here, never by individual operations.
func NewStore(cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil {
		cfg = &config.DatabaseConfig{}
	}

	switch driver := cfg.EffectiveDriver(); driver {
	case "sqlite", "sqlite3", "modernc", "modernc-sqlite":
		path := cfg.Path
		if path == "" {
			path = GetDefaultDBPath()
		}
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		if err := store.SetCredentialsKey(cfg.CredentialsKey); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	case "postgres", "postgresql":
		return NewPostgresStore(cfg)

	default:
		return nil, fmt.Errorf("unsupported database driver: %q (supported: sqlite, postgres)", driver)
	}
}

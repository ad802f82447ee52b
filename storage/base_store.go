package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// BaseStore provides shared database operations that work across SQLite and
// PostgreSQL. It embeds a *sql.DB connection and a Dialect for handling SQL
// syntax differences.
//
// Hand-written queries use SQLite style (?) placeholders and are converted at
// runtime when using PostgreSQL. Queries produced by the filter compiler
// already carry dialect-correct placeholders and pass through unchanged.
type BaseStore struct {
	db      *sql.DB
	dialect Dialect
	dbPath  string // For SQLite compatibility (stores path or DSN)
	sealer  *credentialSealer
}

// NewBaseStore creates a new BaseStore with the given database connection and dialect.
func NewBaseStore(db *sql.DB, dialect Dialect, dbPath string) *BaseStore {
	return &BaseStore{
		db:      db,
		dialect: dialect,
		dbPath:  dbPath,
	}
}

// DB returns the underlying database connection.
func (s *BaseStore) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect being used.
func (s *BaseStore) Dialect() Dialect {
	return s.dialect
}

// SetCredentialsKey configures at-rest sealing of account passwords. An empty
// key disables sealing (plaintext passthrough).
func (s *BaseStore) SetCredentialsKey(encodedKey string) error {
	sealer, err := newCredentialSealer(encodedKey)
	if err != nil {
		return err
	}
	s.sealer = sealer
	return nil
}

// Close closes the database connection.
func (s *BaseStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// query converts SQLite-style ? placeholders to the dialect's format.
func (s *BaseStore) query(q string) string {
	if s.dialect.Name() == "postgres" {
		return ConvertPlaceholders(q)
	}
	return q
}

// execContext wraps ExecContext with placeholder conversion.
func (s *BaseStore) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.query(query), args...)
}

// queryContext wraps QueryContext with placeholder conversion.
func (s *BaseStore) queryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.query(query), args...)
}

// queryRowContext wraps QueryRowContext with placeholder conversion.
func (s *BaseStore) queryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.query(query), args...)
}

// txExec runs an exec inside a transaction with placeholder conversion.
func (s *BaseStore) txExec(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (sql.Result, error) {
	return tx.ExecContext(ctx, s.query(query), args...)
}

// withTx runs fn inside one transaction on one borrowed pooled connection.
// Any error from fn rolls the transaction back; otherwise it is committed.
func (s *BaseStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logWarn("Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

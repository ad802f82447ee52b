package storage

import (
	"fmt"
	"strings"
)

// Dialect abstracts database-specific SQL syntax differences.
// This allows the same business logic to work across SQLite and PostgreSQL.
type Dialect interface {
	// Name returns the dialect name (e.g., "sqlite", "postgres")
	Name() string

	// Placeholder returns a parameter placeholder for the given 1-based index.
	// SQLite uses ?, PostgreSQL uses $1, $2, etc.
	Placeholder(index int) string

	// AutoIncrement returns the column type for auto-incrementing primary keys.
	AutoIncrement(big bool) string

	// TimestampType returns the column type for timestamps.
	TimestampType() string

	// CurrentTimestamp returns the SQL expression for current timestamp.
	// SQLite: "CURRENT_TIMESTAMP", PostgreSQL: "NOW()"
	CurrentTimestamp() string

	// ILike returns case-insensitive LIKE syntax.
	// SQLite: "LOWER(col) LIKE LOWER(?)" (no native ILIKE)
	// PostgreSQL: "col ILIKE $1"
	ILike(column string, placeholderIndex int) string

	// LimitOffset returns the LIMIT/OFFSET clause.
	LimitOffset(limit, offset int) string

	// ReturningClause returns "RETURNING ..." for databases that support it.
	ReturningClause(columns ...string) string

	// TextType returns the TEXT column type.
	TextType() string

	// IntegerType returns the appropriate integer type.
	IntegerType(big bool) string
}

// SQLiteDialect implements Dialect for SQLite.
type SQLiteDialect struct{}

var _ Dialect = (*SQLiteDialect)(nil)

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SQLiteDialect) AutoIncrement(big bool) string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d *SQLiteDialect) TimestampType() string {
	return "DATETIME"
}

func (d *SQLiteDialect) CurrentTimestamp() string {
	return "CURRENT_TIMESTAMP"
}

func (d *SQLiteDialect) ILike(column string, placeholderIndex int) string {
	// SQLite doesn't have ILIKE, use LOWER() for case-insensitive matching
	return fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", column)
}

func (d *SQLiteDialect) LimitOffset(limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if offset <= 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (d *SQLiteDialect) ReturningClause(columns ...string) string {
	if len(columns) == 0 {
		return ""
	}
	return "RETURNING " + strings.Join(columns, ", ")
}

func (d *SQLiteDialect) TextType() string {
	return "TEXT"
}

func (d *SQLiteDialect) IntegerType(big bool) string {
	return "INTEGER"
}

// PostgresDialect implements Dialect for PostgreSQL.
type PostgresDialect struct{}

var _ Dialect = (*PostgresDialect)(nil)

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) AutoIncrement(big bool) string {
	if big {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "SERIAL PRIMARY KEY"
}

func (d *PostgresDialect) TimestampType() string {
	return "TIMESTAMPTZ"
}

func (d *PostgresDialect) CurrentTimestamp() string {
	return "NOW()"
}

func (d *PostgresDialect) ILike(column string, placeholderIndex int) string {
	return fmt.Sprintf("%s ILIKE $%d", column, placeholderIndex)
}

func (d *PostgresDialect) LimitOffset(limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if offset <= 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (d *PostgresDialect) ReturningClause(columns ...string) string {
	if len(columns) == 0 {
		return ""
	}
	return "RETURNING " + strings.Join(columns, ", ")
}

func (d *PostgresDialect) TextType() string {
	return "TEXT"
}

func (d *PostgresDialect) IntegerType(big bool) string {
	if big {
		return "BIGINT"
	}
	return "INTEGER"
}

// ConvertPlaceholders converts SQLite-style ? placeholders to PostgreSQL-style
// $n placeholders. This is used for hand-written queries; queries produced by
// the filter compiler already carry the right placeholders for the dialect.
func ConvertPlaceholders(query string) string {
	var result strings.Builder
	result.Grow(len(query) + 10)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result.WriteString(fmt.Sprintf("$%d", n))
			n++
		} else {
			result.WriteByte(query[i])
		}
	}
	return result.String()
}

// PlaceholderSet generates a comma-separated list of placeholders for IN clauses.
// For SQLite: "?, ?, ?"
// For PostgreSQL: "$1, $2, $3"
func PlaceholderSet(dialect Dialect, count int, startIndex int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = dialect.Placeholder(startIndex + i)
	}
	return strings.Join(placeholders, ", ")
}

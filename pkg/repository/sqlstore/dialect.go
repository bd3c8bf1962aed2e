// Package sqlstore implements repository.Queryable and repository.Model over
// database/sql for PostgreSQL, SQLite and MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DB is the subset of *sql.DB and *sql.Tx the store needs
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Dialect selects placeholder style and SQL features
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
	MySQL
)

// String returns the dialect name
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	case MySQL:
		return "mysql"
	default:
		return "unknown"
	}
}

// ParseDialect parses a dialect name
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	default:
		return 0, fmt.Errorf("unsupported dialect: %s", name)
	}
}

// Placeholder returns the bind parameter for the n-th (1-based) argument
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SupportsReturning reports whether INSERT ... RETURNING is available
func (d Dialect) SupportsReturning() bool {
	return d == Postgres || d == SQLite
}

// binder collects arguments and hands out placeholders in order
type binder struct {
	dialect Dialect
	args    []interface{}
}

func (b *binder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

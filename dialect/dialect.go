// Package dialect supplies the version-tracking SQL for each supported
// database. The statements are consumed as opaque text by the version
// provider and the migration runner.
package dialect

import (
	"errors"
	"fmt"
)

// ErrUnknownDialect is returned by ByName for an unrecognized dialect name.
var ErrUnknownDialect = errors.New("unknown dialect")

// Dialect produces the version-tracking SQL for a concrete table name.
type Dialect interface {
	Name() string
	// DriverName is the database/sql driver the dialect connects through.
	DriverName() string
	// CreateVersionTableSQL creates the version table. Safe to re-run.
	CreateVersionTableSQL(table string) string
	// CurrentVersionSQL selects the latest applied version as a scalar.
	CurrentVersionSQL(table string) string
	// SetVersionSQL inserts a version row. Exactly two positional
	// placeholders, version first, description second.
	SetVersionSQL(table string) string
	// HistorySQL selects all recorded versions, newest first.
	HistorySQL(table string) string
}

// ByName resolves a dialect from its common names.
func ByName(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("failed to resolve dialect %q: %w", name, ErrUnknownDialect)
	}
}

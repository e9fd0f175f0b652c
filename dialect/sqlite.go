package dialect

import (
	"fmt"
	"strings"
)

// SQLite supplies version-tracking SQL for SQLite.
type SQLite struct{}

// Name returns the canonical dialect name.
func (SQLite) Name() string { return "sqlite" }

// DriverName returns the database/sql driver name registered by modernc.org/sqlite.
func (SQLite) DriverName() string { return "sqlite" }

// CreateVersionTableSQL returns the create statement for the version table.
func (SQLite) CreateVersionTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, quoteIdentifier(table))
}

// CurrentVersionSQL returns the scalar query for the latest applied version.
func (SQLite) CurrentVersionSQL(table string) string {
	return fmt.Sprintf("SELECT version FROM %s ORDER BY id DESC LIMIT 1", quoteIdentifier(table))
}

// SetVersionSQL returns the insert statement recording a version change.
func (SQLite) SetVersionSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (version, description) VALUES (?, ?)", quoteIdentifier(table))
}

// HistorySQL returns the query for all recorded versions, newest first.
func (SQLite) HistorySQL(table string) string {
	return fmt.Sprintf("SELECT version, description, applied_at FROM %s ORDER BY id DESC", quoteIdentifier(table))
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

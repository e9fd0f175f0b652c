package dialect

import (
	"fmt"

	"github.com/lib/pq"
)

// Postgres supplies version-tracking SQL for PostgreSQL.
type Postgres struct{}

// Name returns the canonical dialect name.
func (Postgres) Name() string { return "postgres" }

// DriverName returns the database/sql driver name registered by lib/pq.
func (Postgres) DriverName() string { return "postgres" }

// CreateVersionTableSQL returns the create statement for the version table.
func (Postgres) CreateVersionTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	version BIGINT NOT NULL,
	description VARCHAR(256) NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, pq.QuoteIdentifier(table))
}

// CurrentVersionSQL returns the scalar query for the latest applied version.
func (Postgres) CurrentVersionSQL(table string) string {
	return fmt.Sprintf("SELECT version FROM %s ORDER BY id DESC LIMIT 1", pq.QuoteIdentifier(table))
}

// SetVersionSQL returns the insert statement recording a version change.
func (Postgres) SetVersionSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (version, description) VALUES ($1, $2)", pq.QuoteIdentifier(table))
}

// HistorySQL returns the query for all recorded versions, newest first.
func (Postgres) HistorySQL(table string) string {
	return fmt.Sprintf("SELECT version, description, applied_at FROM %s ORDER BY id DESC", pq.QuoteIdentifier(table))
}

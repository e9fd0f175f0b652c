package dialect

import (
	"fmt"
	"strings"
)

// MySQL supplies version-tracking SQL for MySQL and MariaDB. Note that
// both auto-commit DDL, so transactional table creation is best effort.
type MySQL struct{}

// Name returns the canonical dialect name.
func (MySQL) Name() string { return "mysql" }

// DriverName returns the database/sql driver name used by MySQL drivers.
func (MySQL) DriverName() string { return "mysql" }

// CreateVersionTableSQL returns the create statement for the version table.
func (MySQL) CreateVersionTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	version BIGINT NOT NULL,
	description VARCHAR(256) NOT NULL DEFAULT '',
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, quoteMySQLIdentifier(table))
}

// CurrentVersionSQL returns the scalar query for the latest applied version.
func (MySQL) CurrentVersionSQL(table string) string {
	return fmt.Sprintf("SELECT version FROM %s ORDER BY id DESC LIMIT 1", quoteMySQLIdentifier(table))
}

// SetVersionSQL returns the insert statement recording a version change.
func (MySQL) SetVersionSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (version, description) VALUES (?, ?)", quoteMySQLIdentifier(table))
}

// HistorySQL returns the query for all recorded versions, newest first.
func (MySQL) HistorySQL(table string) string {
	return fmt.Sprintf("SELECT version, description, applied_at FROM %s ORDER BY id DESC", quoteMySQLIdentifier(table))
}

func quoteMySQLIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

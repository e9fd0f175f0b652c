package migrate

// Migration is a single schema change parsed from a migration file.
type Migration struct {
	// Version is the filename's numeric prefix. Versions order the plan
	// and are what the version table records.
	Version int64
	// Name is the filename's descriptive part.
	Name string
	// Up is the SQL applied when migrating forward.
	Up string
	// Down is the SQL applied when reverting. Empty means the migration
	// cannot be reverted.
	Down string
	// Checksum is the hex SHA-256 of the migration file content.
	Checksum string
}

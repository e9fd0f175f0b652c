// Package migrate applies ordered SQL migrations to a database, recording
// progress through a schema version table.
package migrate

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/jmoiron/sqlx"
	"github.com/schemata-dev/schemata/dialect"
	"github.com/schemata-dev/schemata/log"
	"github.com/schemata-dev/schemata/version"
)

// DefaultTable is the version table name unless overridden in Options.
const DefaultTable = "schema_version"

const (
	// emptySchemaDescription is recorded when a revert lands on version 0.
	emptySchemaDescription = "empty schema"
	// baselineDescription is recorded by Baseline.
	baselineDescription = "baseline"
)

// ErrUnknownVersion is returned when a version is not present in the
// registered migration sources.
var ErrUnknownVersion = errors.New("version not found in migration sources")

// ErrIrreversible is returned when a revert needs a migration that has no
// Down section.
var ErrIrreversible = errors.New("migration has no Down section")

// ErrAlreadyVersioned is returned by Baseline when the database already
// records a version.
var ErrAlreadyVersioned = errors.New("schema already records a version")

// Options configures a Runner.
type Options struct {
	// Table is the version table name. Empty means DefaultTable.
	Table string
	// UseTransaction wraps migration scripts and version bookkeeping in
	// transactions.
	UseTransaction bool
	// MaxDescriptionLength bounds recorded descriptions. Zero means unlimited.
	MaxDescriptionLength int
}

// DefaultOptions returns the options used unless a caller overrides them.
func DefaultOptions() Options {
	return Options{Table: DefaultTable, UseTransaction: true, MaxDescriptionLength: 256}
}

// Runner drives migrations against a single database.
type Runner struct {
	db             *sqlx.DB
	dialect        dialect.Dialect
	table          string
	useTransaction bool
	provider       *version.Provider
	history        *historyRepository
	sources        []fs.FS
}

// New creates a Runner on an existing connection.
func New(db *sqlx.DB, d dialect.Dialect, opts Options) (*Runner, error) {
	if db == nil {
		return nil, version.ErrNilConnection
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}

	statements := version.Statements{
		CreateVersionTable: d.CreateVersionTableSQL(opts.Table),
		CurrentVersion:     d.CurrentVersionSQL(opts.Table),
		SetVersion:         d.SetVersionSQL(opts.Table),
	}

	provider := version.New(statements, version.Config{
		UseTransaction:       opts.UseTransaction,
		MaxDescriptionLength: opts.MaxDescriptionLength,
	})

	err := provider.SetConnection(db)
	if err != nil {
		return nil, err
	}

	return &Runner{
		db:             db,
		dialect:        d,
		table:          opts.Table,
		useTransaction: opts.UseTransaction,
		provider:       provider,
		history:        newHistoryRepository(db, d.HistorySQL(opts.Table)),
	}, nil
}

// Open connects to the database and wraps the connection in a Runner.
// The dialect's driver must be registered by the importing program.
func Open(dialectName, dsn string, opts Options) (*Runner, error) {
	d, err := dialect.ByName(dialectName)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return New(db, d, opts)
}

// Connection returns the underlying sqlx database connection.
func (r *Runner) Connection() *sqlx.DB {
	return r.db
}

// Close releases the underlying connection.
func (r *Runner) Close() error {
	err := r.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// AddSource registers a filesystem of migration files. Sources are merged
// and ordered by version when a migration runs.
func (r *Runner) AddSource(fsys fs.FS) {
	r.sources = append(r.sources, fsys)
}

// MigrateToLatest applies every pending migration.
func (r *Runner) MigrateToLatest(ctx context.Context) error {
	migrations, err := r.loadSources()
	if err != nil {
		return err
	}

	if len(migrations) == 0 {
		log.WarnContext(ctx, "no migrations registered")
		return r.provider.EnsureVersionTable(ctx)
	}

	return r.migrate(ctx, migrations, migrations[len(migrations)-1].Version)
}

// MigrateTo migrates up or down until the schema is at target. Target 0
// reverts everything.
func (r *Runner) MigrateTo(ctx context.Context, target int64) error {
	migrations, err := r.loadSources()
	if err != nil {
		return err
	}

	return r.migrate(ctx, migrations, target)
}

// CurrentVersion reads the recorded schema version, creating the version
// table first when needed.
func (r *Runner) CurrentVersion(ctx context.Context) (int64, error) {
	err := r.provider.EnsureVersionTable(ctx)
	if err != nil {
		return 0, err
	}

	return r.provider.CurrentVersion(ctx)
}

// Baseline records an existing schema as already at the given version
// without running any scripts. It refuses when a version is already
// recorded.
func (r *Runner) Baseline(ctx context.Context, target int64) error {
	err := r.provider.EnsureVersionTable(ctx)
	if err != nil {
		return err
	}

	current, err := r.provider.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	if current != 0 {
		return fmt.Errorf("failed to baseline at version %d: %w", target, ErrAlreadyVersioned)
	}

	err = r.provider.UpdateVersion(ctx, 0, target, baselineDescription)
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "baseline recorded", "version", target)
	return nil
}

// Status describes the schema relative to the registered sources.
type Status struct {
	Current int64
	Latest  int64
	Pending []Migration
}

// Status reports the current version, the latest known version, and the
// migrations not applied yet.
func (r *Runner) Status(ctx context.Context) (*Status, error) {
	migrations, err := r.loadSources()
	if err != nil {
		return nil, err
	}

	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{Current: current}
	if len(migrations) > 0 {
		status.Latest = migrations[len(migrations)-1].Version
	}
	for _, migration := range migrations {
		if migration.Version > current {
			status.Pending = append(status.Pending, migration)
		}
	}

	return status, nil
}

// History returns every recorded version change, newest first.
func (r *Runner) History(ctx context.Context) ([]HistoryEntry, error) {
	err := r.provider.EnsureVersionTable(ctx)
	if err != nil {
		return nil, err
	}

	return r.history.entries(ctx)
}

func (r *Runner) loadSources() ([]Migration, error) {
	var migrations []Migration
	masterErr := error(nil)
	for _, source := range r.sources {
		parsed, err := ParseMigrations(source)
		if err != nil {
			masterErr = errors.Join(masterErr, err)
			continue
		}
		migrations = append(migrations, parsed...)
	}
	if masterErr != nil {
		return nil, masterErr
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("failed to merge migration sources: version %d: %w", migrations[i].Version, errDuplicateVersion)
		}
	}

	return migrations, nil
}

func (r *Runner) migrate(ctx context.Context, migrations []Migration, target int64) error {
	err := r.provider.EnsureVersionTable(ctx)
	if err != nil {
		return err
	}

	current, err := r.provider.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	if current != 0 && !containsVersion(migrations, current) {
		return fmt.Errorf("failed to locate recorded version %d: %w", current, ErrUnknownVersion)
	}
	if target != 0 && !containsVersion(migrations, target) {
		return fmt.Errorf("failed to locate target version %d: %w", target, ErrUnknownVersion)
	}

	switch {
	case target == current:
		log.InfoContext(ctx, "schema already at target version", "version", current)
		return nil
	case target > current:
		return r.migrateUp(ctx, migrations, current, target)
	default:
		return r.migrateDown(ctx, migrations, current, target)
	}
}

func (r *Runner) migrateUp(ctx context.Context, migrations []Migration, current, target int64) error {
	for _, migration := range migrations {
		if migration.Version <= current || migration.Version > target {
			continue
		}

		migrationCtx := context.WithValue(ctx, log.MigrationKey, migration.Name)

		err := r.runScript(migrationCtx, migration.Up)
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		err = r.provider.UpdateVersion(migrationCtx, current, migration.Version, migration.Name)
		if err != nil {
			return err
		}

		log.InfoContext(migrationCtx, "migration applied", "version", migration.Version, "checksum", migration.Checksum)
		current = migration.Version
	}

	return nil
}

func (r *Runner) migrateDown(ctx context.Context, migrations []Migration, current, target int64) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if migration.Version > current || migration.Version <= target {
			continue
		}

		if migration.Down == "" {
			return fmt.Errorf("failed to revert migration %d: %w", migration.Version, ErrIrreversible)
		}

		next := int64(0)
		description := emptySchemaDescription
		if i > 0 {
			next = migrations[i-1].Version
			description = migrations[i-1].Name
		}

		migrationCtx := context.WithValue(ctx, log.MigrationKey, migration.Name)

		err := r.runScript(migrationCtx, migration.Down)
		if err != nil {
			return fmt.Errorf("failed to revert migration %d: %w", migration.Version, err)
		}

		err = r.provider.UpdateVersion(migrationCtx, migration.Version, next, description)
		if err != nil {
			return err
		}

		log.InfoContext(migrationCtx, "migration reverted", "version", migration.Version, "schemaVersion", next)
	}

	return nil
}

// runScript executes one migration script, in its own transaction when
// transactions are enabled. Version bookkeeping is separate and follows
// the provider's transaction policy.
func (r *Runner) runScript(ctx context.Context, script string) error {
	if !r.useTransaction {
		_, err := r.db.ExecContext(ctx, script)
		if err != nil {
			return fmt.Errorf("failed to execute script: %w", err)
		}
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, script)
	if err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func containsVersion(migrations []Migration, v int64) bool {
	return slices.ContainsFunc(migrations, func(m Migration) bool {
		return m.Version == v
	})
}

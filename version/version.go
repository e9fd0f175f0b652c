// Package version tracks the schema version of a database in a dedicated
// table, executing SQL supplied by a dialect.
package version

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/schemata-dev/schemata/log"
)

// ErrNilConnection is returned by SetConnection when the connection argument is nil.
var ErrNilConnection = errors.New("connection must not be nil")

// ErrNoConnection is returned when an operation is invoked before a connection is attached.
var ErrNoConnection = errors.New("no connection attached")

// Statements holds the SQL executed by a Provider. A dialect supplies them
// for a concrete table name; the provider treats them as opaque text.
type Statements struct {
	// CreateVersionTable creates the version table. The statement itself is
	// responsible for being safe to re-run.
	CreateVersionTable string
	// CurrentVersion selects the latest applied version as a single scalar.
	CurrentVersion string
	// SetVersion records a version together with a description. It must
	// carry exactly two positional placeholders, version first.
	SetVersion string
}

// Config controls transaction usage and description truncation.
type Config struct {
	// UseTransaction wraps every statement in a serializable transaction
	// that is committed on success.
	UseTransaction bool
	// MaxDescriptionLength bounds persisted descriptions. Zero means unlimited.
	MaxDescriptionLength int
}

// DefaultConfig returns the configuration used by the migration runner
// unless overridden.
func DefaultConfig() Config {
	return Config{UseTransaction: true, MaxDescriptionLength: 256}
}

// DB is the connection surface a Provider needs. It is satisfied by
// *sql.DB and *sqlx.DB.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// executor is the subset shared by DB and *sql.Tx, so statements run the
// same way inside and outside a transaction.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Provider executes the version statements against an attached connection.
// It holds no other mutable state and is not safe for concurrent use; a
// migration run drives a single provider sequentially.
type Provider struct {
	statements Statements
	config     Config
	db         DB
}

// New creates a Provider for the given statements. A connection must be
// attached with SetConnection before any other operation.
func New(statements Statements, config Config) *Provider {
	return &Provider{statements: statements, config: config}
}

// SetConnection attaches the connection used by all subsequent operations.
// Attaching again replaces the previous connection.
func (p *Provider) SetConnection(db DB) error {
	if db == nil {
		return ErrNilConnection
	}
	p.db = db
	return nil
}

// EnsureVersionTable executes the create-version-table statement.
func (p *Provider) EnsureVersionTable(ctx context.Context) error {
	if p.db == nil {
		return ErrNoConnection
	}

	return p.execute(ctx, func(ex executor) error {
		_, err := ex.ExecContext(ctx, p.statements.CreateVersionTable)
		if err != nil {
			return fmt.Errorf("failed to create version table: %w", err)
		}
		return nil
	})
}

// CurrentVersion reads the current schema version. A missing or NULL
// scalar reads as zero, meaning no migrations have been applied yet.
func (p *Provider) CurrentVersion(ctx context.Context) (int64, error) {
	if p.db == nil {
		return 0, ErrNoConnection
	}

	var current int64
	err := p.execute(ctx, func(ex executor) error {
		var value any
		err := ex.QueryRowContext(ctx, p.statements.CurrentVersion).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			current = 0
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read current version: %w", err)
		}

		current, err = toVersion(value)
		return err
	})
	if err != nil {
		return 0, err
	}

	return current, nil
}

// UpdateVersion records that the schema moved from one version to another,
// with a description of the migration that produced the change. The from
// version is audit information only and is never validated or bound.
func (p *Provider) UpdateVersion(ctx context.Context, from, to int64, description string) error {
	if p.db == nil {
		return ErrNoConnection
	}

	description = truncateDescription(description, p.config.MaxDescriptionLength)
	log.DebugContext(ctx, "updating schema version", "from", from, "to", to)

	return p.execute(ctx, func(ex executor) error {
		// Bind order is a contract: version first, then description.
		_, err := ex.ExecContext(ctx, p.statements.SetVersion, to, description)
		if err != nil {
			return fmt.Errorf("failed to set version: %w", err)
		}
		return nil
	})
}

// execute runs op directly on the connection, or inside a serializable
// transaction when configured. The transaction is committed only after op
// succeeds and is released on every exit path.
func (p *Provider) execute(ctx context.Context, op func(executor) error) error {
	if !p.config.UseTransaction {
		return op(p.db)
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = op(tx)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

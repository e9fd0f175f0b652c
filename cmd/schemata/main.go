package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/schemata-dev/schemata/log"
	"github.com/schemata-dev/schemata/migrate"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrUnknownCommand is returned when an unknown CLI command is provided.
var ErrUnknownCommand = errors.New("unknown command")

// ErrMissingVersion is returned when a command needs a version argument.
var ErrMissingVersion = errors.New("missing version argument")

type app struct {
	config Config
}

func main() {
	ctx := context.Background()

	a := &app{}
	err := a.Run(ctx)
	if err != nil {
		log.ErrorContext(ctx, "command failed", "error", err)
		os.Exit(1)
	}
}

// Run parses CLI arguments and executes the appropriate command.
// Returns nil on success, ErrUnknownCommand for unknown commands.
func (a *app) Run(ctx context.Context) error {
	args := os.Args
	if len(args) < 2 {
		a.printUsage()
		return nil
	}

	command := args[1]
	if command == "--help" || command == "-h" {
		a.printUsage()
		return nil
	}

	var commandFunc func(context.Context, *migrate.Runner) error
	switch command {
	case "up":
		commandFunc = a.up
	case "to":
		target, err := versionArgument(args)
		if err != nil {
			return err
		}
		commandFunc = func(ctx context.Context, runner *migrate.Runner) error {
			return runner.MigrateTo(ctx, target)
		}
	case "status":
		commandFunc = a.status
	case "history":
		commandFunc = a.history
	case "baseline":
		target, err := versionArgument(args)
		if err != nil {
			return err
		}
		commandFunc = func(ctx context.Context, runner *migrate.Runner) error {
			return runner.Baseline(ctx, target)
		}
	default:
		a.printUsage()
		return ErrUnknownCommand
	}

	return a.withRunner(ctx, commandFunc)
}

// withRunner loads configuration, connects, and hands the runner to the
// command.
func (a *app) withRunner(ctx context.Context, commandFunc func(context.Context, *migrate.Runner) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a.config = cfg

	log.SetDefault(log.New(os.Stdout, cfg.LogFormat, cfg.logLevel(), nil))

	ctx = context.WithValue(ctx, log.TraceIDKey, uuid.NewString())
	ctx = context.WithValue(ctx, log.DialectKey, cfg.Dialect)

	opts := migrate.DefaultOptions()
	opts.Table = cfg.Table
	opts.UseTransaction = !cfg.NoTransaction

	runner, err := migrate.Open(cfg.Dialect, cfg.DatabaseURL, opts)
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	runner.AddSource(os.DirFS(cfg.Dir))

	return commandFunc(ctx, runner)
}

func (a *app) up(ctx context.Context, runner *migrate.Runner) error {
	return runner.MigrateToLatest(ctx)
}

func (a *app) status(ctx context.Context, runner *migrate.Runner) error {
	status, err := runner.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("current version: %d\n", status.Current)
	fmt.Printf("latest version:  %d\n", status.Latest)
	for _, migration := range status.Pending {
		fmt.Printf("pending: %d %s\n", migration.Version, migration.Name)
	}

	return nil
}

func (a *app) history(ctx context.Context, runner *migrate.Runner) error {
	entries, err := runner.History(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		fmt.Printf("%s  version %d  %s\n", entry.AppliedAt.Format(time.RFC3339), entry.Version, entry.Description)
	}

	return nil
}

func (a *app) printUsage() {
	fmt.Println("Usage: schemata <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                  Apply all pending migrations")
	fmt.Println("  to <version>        Migrate up or down to a version (0 reverts everything)")
	fmt.Println("  status              Show current, latest and pending versions")
	fmt.Println("  history             Show recorded version changes")
	fmt.Println("  baseline <version>  Record an existing schema as already at a version")
	fmt.Println()
	fmt.Println("Configuration is read from the environment:")
	fmt.Println("  DATABASE_URL         Connection string (required)")
	fmt.Println("  SCHEMATA_DIALECT     postgres or sqlite (default postgres)")
	fmt.Println("  SCHEMATA_DIR         Migration files directory (default migrations)")
	fmt.Println("  SCHEMATA_TABLE       Version table name (default schema_version)")
	fmt.Println("  SCHEMATA_NO_TX       Disable transactions when true")
	fmt.Println("  SCHEMATA_LOG_FORMAT  text or json (default text)")
	fmt.Println("  SCHEMATA_LOG_LEVEL   debug, info, warn or error (default info)")
}

func versionArgument(args []string) (int64, error) {
	if len(args) < 3 {
		return 0, ErrMissingVersion
	}

	target, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse version %q: %w", args[2], err)
	}

	return target, nil
}

//go:build linux

package migrate_test

import (
	"context"
	"testing"
	"testing/fstest"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/schemata-dev/schemata/migrate"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgres(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctr, err := postgres.Run(
		ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("schemata"),
		postgres.WithUsername("schemata"),
		postgres.WithPassword("schemata"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to initialize database: %s", err.Error())
	}

	err = ctr.Snapshot(ctx)
	if err != nil {
		t.Fatalf("failed to create snapshot: %s", err.Error())
	}

	dbURL, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err.Error())
	}

	t.Logf("db connection string: %s", dbURL)

	t.Run("migrates an empty database to latest", func(t *testing.T) {
		t.Cleanup(func() {
			err = ctr.Restore(ctx)
			if err != nil {
				t.Fatalf("failed to restore db: %s", err.Error())
			}
		})

		runner := openPostgres(t, dbURL)

		err := runner.MigrateToLatest(ctx)
		if err != nil {
			t.Fatalf("failed to migrate database: %s", err.Error())
		}

		current, err := runner.CurrentVersion(ctx)
		if err != nil {
			t.Fatalf("failed to read version: %s", err.Error())
		}
		if current != 3 {
			t.Fatalf("expected version 3, got: %d", current)
		}

		entries, err := runner.History(ctx)
		if err != nil {
			t.Fatalf("failed to read history: %s", err.Error())
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 history entries, got: %d", len(entries))
		}
		if entries[0].Description != "add_user_email" {
			t.Fatalf("expected newest entry add_user_email, got: %s", entries[0].Description)
		}
		if entries[0].AppliedAt.IsZero() {
			t.Fatalf("expected a recorded timestamp, got zero")
		}

		_, err = runner.Connection().ExecContext(ctx, "INSERT INTO users (name, email) VALUES ('ada', 'ada@example.com')")
		if err != nil {
			t.Fatalf("expected no errors, got: %s", err.Error())
		}
	})

	// This test imitates repeated deployments. Migrations already recorded
	// must not run again.
	t.Run("migrates twice without repeating work", func(t *testing.T) {
		t.Cleanup(func() {
			err = ctr.Restore(ctx)
			if err != nil {
				t.Fatalf("failed to restore db: %s", err.Error())
			}
		})

		runner := openPostgres(t, dbURL)

		err := runner.MigrateToLatest(ctx)
		if err != nil {
			t.Fatalf("failed to migrate database: %s", err.Error())
		}

		err = runner.MigrateToLatest(ctx)
		if err != nil {
			t.Fatalf("failed to migrate database: %s", err.Error())
		}

		entries, err := runner.History(ctx)
		if err != nil {
			t.Fatalf("failed to read history: %s", err.Error())
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 history entries, got: %d", len(entries))
		}
	})

	t.Run("reverts to a target version", func(t *testing.T) {
		t.Cleanup(func() {
			err = ctr.Restore(ctx)
			if err != nil {
				t.Fatalf("failed to restore db: %s", err.Error())
			}
		})

		runner := openPostgres(t, dbURL)

		err := runner.MigrateToLatest(ctx)
		if err != nil {
			t.Fatalf("failed to migrate database: %s", err.Error())
		}

		err = runner.MigrateTo(ctx, 1)
		if err != nil {
			t.Fatalf("failed to revert database: %s", err.Error())
		}

		current, err := runner.CurrentVersion(ctx)
		if err != nil {
			t.Fatalf("failed to read version: %s", err.Error())
		}
		if current != 1 {
			t.Fatalf("expected version 1, got: %d", current)
		}

		_, err = runner.Connection().ExecContext(ctx, "SELECT * FROM posts")
		if err == nil {
			t.Fatalf("expected posts table to be gone")
		}
	})

	t.Run("rolls back a failing migration", func(t *testing.T) {
		t.Cleanup(func() {
			err = ctr.Restore(ctx)
			if err != nil {
				t.Fatalf("failed to restore db: %s", err.Error())
			}
		})

		runner := openPostgres(t, dbURL)
		runner.AddSource(fstest.MapFS{
			"004_broken.sql": &fstest.MapFile{
				Data: []byte("-- +migrate Up\nCREATE TABLE broken_things (id INT);\nnot even SQL here;"),
			},
		})

		err := runner.MigrateToLatest(ctx)
		if err == nil {
			t.Fatalf("migration expected to fail")
		}
		t.Logf("migration error: %s", err.Error())

		current, err := runner.CurrentVersion(ctx)
		if err != nil {
			t.Fatalf("failed to read version: %s", err.Error())
		}
		if current != 3 {
			t.Fatalf("expected version 3 after failure, got: %d", current)
		}

		// The partial script must be rolled back with the failure.
		_, err = runner.Connection().ExecContext(ctx, "SELECT * FROM broken_things")
		if err == nil {
			t.Fatalf("expected broken_things table to not exist")
		}
	})
}

func openPostgres(t *testing.T, dbURL string) *migrate.Runner {
	t.Helper()

	runner, err := migrate.Open("postgres", dbURL, migrate.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %s", err.Error())
	}
	t.Cleanup(func() { _ = runner.Close() })
	runner.AddSource(defaultSources())

	return runner
}

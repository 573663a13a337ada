package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB is a migrated database in a throwaway container
type TestDB struct {
	Container testcontainers.Container
	DB        *DB
}

// SetupTestDB starts PostgreSQL and applies the embedded migrations
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("jobfill_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	conn, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect to database: %v", err)
	}

	testDB := &TestDB{Container: container, DB: &DB{DB: conn}}
	if err := testDB.DB.Migrate(ctx); err != nil {
		testDB.Cleanup(t)
		t.Fatalf("Failed to run migrations: %v", err)
	}
	// a second run must be a no-op
	if err := testDB.DB.Migrate(ctx); err != nil {
		testDB.Cleanup(t)
		t.Fatalf("Migrations are not repeatable: %v", err)
	}

	return testDB
}

// Cleanup terminates the container and closes connections
func (td *TestDB) Cleanup(t *testing.T) {
	t.Helper()

	if td.DB != nil {
		td.DB.Close()
	}
	if td.Container != nil {
		td.Container.Terminate(context.Background())
	}
}

// Reset empties kv_store between subtests
func (td *TestDB) Reset(t *testing.T) {
	t.Helper()

	if _, err := td.DB.Exec(`TRUNCATE TABLE kv_store`); err != nil {
		t.Fatalf("Failed to truncate kv_store: %v", err)
	}
}

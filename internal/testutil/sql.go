package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	// Import pgx driver for database/sql compatibility in tests.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Register the pure-Go sqlite driver for in-memory test databases.
	_ "modernc.org/sqlite"

	"github.com/target/caption-pipeline/internal/data/database"
	"github.com/target/caption-pipeline/internal/migrate"
)

// PostgresConfig locates the PostgreSQL instance used by store tests.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig reads TEST_DB_* overrides. The default port 55432 matches the
// local docker-compose test profile; CI sets TEST_DB_PORT=5432.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "captions"),
		Password: envOr("TEST_DB_PASSWORD", "captions"),
		DBName:   envOr("TEST_DB_NAME", "captions"),
		SSLMode:  envOr("DB_SSL_MODE", "disable"),
	}
}

// DSN renders cfg as a postgres URL, scoped to schema when non-empty.
func (c PostgresConfig) DSN(schema string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	q := url.Values{"sslmode": []string{c.SSLMode}}
	if schema != "" {
		q.Set("search_path", schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SetupSQLite opens a private in-memory SQLite database with the production schema applied.
// It never skips.
func SetupSQLite(t TestingTB) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_time_format=sqlite",
		uniqueName("t_"))
	db, err := sql.Open(database.SQLite.DriverName(), dsn)
	if err != nil {
		t.Fatal("open sqlite:", err)
	}
	db.SetMaxOpenConns(1)
	migrateOrFail(t, db, database.SQLite)
	t.Cleanup(func() { closeAndLog(t, "sqlite DB", db) })
	return db
}

// SetupPostgres returns a connection whose search_path is a fresh schema holding the
// production tables. The schema is dropped on cleanup. Skips when PostgreSQL is unreachable
// unless TEST_REQUIRE_DB is set.
func SetupPostgres(t TestingTB) *sql.DB {
	t.Helper()
	skipInShort(t)
	cfg := DefaultPostgresConfig()

	admin := openPostgres(t, cfg.DSN(""))
	schema := uniqueName("t_")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		closeAndLog(t, "admin DB", admin)
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db := openPostgres(t, cfg.DSN(schema))
	t.Cleanup(func() {
		closeAndLog(t, "schema DB", db)
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("warning: drop schema %s: %v", schema, err)
		}
		closeAndLog(t, "admin DB", admin)
	})

	migrateOrFail(t, db, database.Postgres)
	return db
}

func openPostgres(t TestingTB, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open(database.Postgres.DriverName(), dsn)
	if err != nil {
		skipOrFail(t, "TEST_REQUIRE_DB", "postgres not available:", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		closeAndLog(t, "postgres DB", db)
		skipOrFail(t, "TEST_REQUIRE_DB", "postgres not available:", err)
	}
	return db
}

func migrateOrFail(t TestingTB, db *sql.DB, dialect database.Dialect) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := migrate.Run(ctx, db, dialect); err != nil {
		closeAndLog(t, string(dialect)+" DB", db)
		t.Fatalf("migrate %s: %v", dialect, err)
	}
}

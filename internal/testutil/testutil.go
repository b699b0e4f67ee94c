package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	// Registers the pgx driver with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/target/clinic-portal/config"
	"github.com/target/clinic-portal/internal/migrate"
)

// DefaultTestDBConfig reads TEST_DB_* overrides on top of the local compose
// defaults (port 55432). CI sets TEST_DB_PORT=5432.
func DefaultTestDBConfig() config.DBConfig {
	port, err := strconv.Atoi(getEnvOrDefault("TEST_DB_PORT", "55432"))
	if err != nil {
		port = 55432
	}
	return config.DBConfig{
		Host:     getEnvOrDefault("TEST_DB_HOST", "localhost"),
		Port:     port,
		User:     getEnvOrDefault("TEST_DB_USER", "clinic"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "clinic"),
		Name:     getEnvOrDefault("TEST_DB_NAME", "clinic"),
		SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
	}
}

// SetupAutoDB returns a migrated audit database for t, skipping t when none is
// reachable. With TEST_DB_EPHEMERAL set, each test gets its own schema that is
// dropped afterwards; otherwise the shared database is emptied before use.
func SetupAutoDB(t testing.TB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)

	dsn := DefaultTestDBConfig().DSN()
	if envBool("TEST_DB_EPHEMERAL") {
		dsn = ephemeralSchema(t, dsn)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { closeAndLog(t, "test database", db) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err = migrate.Run(ctx, db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	if _, err = db.ExecContext(ctx, "TRUNCATE audit_events"); err != nil {
		t.Fatalf("truncate audit_events: %v", err)
	}
	return db
}

// ephemeralSchema creates a throwaway schema, registers its removal and
// returns dsn scoped to it through search_path.
func ephemeralSchema(t testing.TB, dsn string) string {
	t.Helper()

	admin, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open admin connection: %v", err)
	}
	schema := schemaName()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		closeAndLog(t, "admin connection", admin)
		t.Fatalf("create schema %s: %v", schema, err)
	}
	t.Logf("using ephemeral schema %s", schema)

	// Registered before the caller's close, so it runs after it.
	t.Cleanup(func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		if _, derr := admin.ExecContext(dctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); derr != nil {
			t.Logf("drop schema %s: %v", schema, derr)
		}
		closeAndLog(t, "admin connection", admin)
	})

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String()
}

// SkipIfNoTestDB skips t when PostgreSQL is unreachable, or fails it when
// TEST_REQUIRE_DB or TEST_REQUIRE_INFRA is set.
func SkipIfNoTestDB(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in -short mode")
	}

	db, err := sql.Open("pgx", DefaultTestDBConfig().DSN())
	if err == nil {
		defer closeAndLog(t, "ping connection", db)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = db.PingContext(ctx)
	}
	if err == nil {
		return
	}
	if requireDB() {
		t.Fatalf("test database not available: %v", err)
	}
	t.Skipf("test database not available: %v", err)
}

func schemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "t_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return "t_" + hex.EncodeToString(b)
}

func closeAndLog(t testing.TB, name string, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		t.Logf("close %s: %v", name, err)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// FixedTimeFunc returns a clock stuck at t.
func FixedTimeFunc(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// TestTime is the reference instant used by time-sensitive tests.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

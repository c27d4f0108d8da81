// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"mailsmith/internal/database"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "mailsmith")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "mailsmith")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := testDSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	// Run migrations to ensure the schema is current.
	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Downgrade goose global state.
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testOrgAndUser creates a throwaway organization with one admin user and
// returns both IDs. Rows are removed in t.Cleanup (cascades take out any
// templates, chat messages and brand kits left behind by the test).
func testOrgAndUser(t *testing.T, db *sql.DB) (uuid.UUID, uuid.UUID) {
	t.Helper()

	var orgID uuid.UUID
	orgName := "test-org-" + uuid.NewString()
	err := db.QueryRow(
		"INSERT INTO organizations (name) VALUES ($1) RETURNING id", orgName,
	).Scan(&orgID)
	if err != nil {
		t.Fatalf("failed to create test org: %v", err)
	}

	var userID uuid.UUID
	email := uuid.NewString() + "@test.local"
	err = db.QueryRow(`
		INSERT INTO users (org_id, email, password_hash, display_name, role)
		VALUES ($1, $2, 'x', 'Test User', 'admin') RETURNING id
	`, orgID, email).Scan(&userID)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	t.Cleanup(func() {
		db.Exec("DELETE FROM users WHERE id = $1", userID)
		db.Exec("DELETE FROM organizations WHERE id = $1", orgID)
	})
	return orgID, userID
}

// cleanUsers removes test users by email pattern. Call in t.Cleanup().
func cleanUsers(t *testing.T, db *sql.DB, emails ...string) {
	t.Helper()
	for _, email := range emails {
		db.Exec("DELETE FROM users WHERE email = $1", email)
	}
}

// cleanTemplates removes test templates by name. Call in t.Cleanup().
func cleanTemplates(t *testing.T, db *sql.DB, names ...string) {
	t.Helper()
	for _, name := range names {
		db.Exec("DELETE FROM templates WHERE name = $1", name)
	}
}

// cleanImageAssetsByKey removes test image assets by S3 key. Call in t.Cleanup().
func cleanImageAssetsByKey(t *testing.T, db *sql.DB, s3keys ...string) {
	t.Helper()
	for _, key := range s3keys {
		db.Exec("DELETE FROM image_assets WHERE s3_key = $1", key)
	}
}

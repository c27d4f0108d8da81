package database

import (
	"testing"
)

func TestSeedIdempotent(t *testing.T) {
	db, err := Connect(testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Seed should be callable safely — it creates data only when tables are
	// empty. We call it twice to verify idempotency. We don't clear the
	// database first because other test packages may be running
	// concurrently against the same database.
	if err := Seed(db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	// Verify admin user exists.
	var userCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM users WHERE email = 'admin@mailsmith.local'").Scan(&userCount); err != nil {
		t.Fatalf("count admin users: %v", err)
	}
	if userCount < 1 {
		t.Errorf("expected at least 1 admin user, got %d", userCount)
	}

	// Verify the default organization carries an empty brand kit.
	var kitCount int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM brand_kits bk
		JOIN organizations o ON o.id = bk.org_id
		WHERE o.name = 'Mailsmith Dev'
	`).Scan(&kitCount); err != nil {
		t.Fatalf("count brand kits: %v", err)
	}
	if kitCount != 1 {
		t.Errorf("expected 1 brand kit for the dev organization, got %d", kitCount)
	}
}

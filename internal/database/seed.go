package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Seed populates the database with initial development data.
// It creates a default organization with an admin user and an empty brand
// kit if no users exist. The admin will be prompted to set up 2FA on first
// login (totp_enabled = false).
func Seed(db *sql.DB) error {
	// Check if any users exist already.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	var orgID string
	err := db.QueryRow(`
		INSERT INTO organizations (name) VALUES ($1) RETURNING id
	`, "Mailsmith Dev").Scan(&orgID)
	if err != nil {
		return fmt.Errorf("seed insert organization: %w", err)
	}

	// Hash the default admin password.
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	// Insert default admin user. 2FA is not enabled — they must set it up
	// on first login.
	_, err = db.Exec(`
		INSERT INTO users (org_id, email, password_hash, display_name, role, totp_enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, orgID, "admin@mailsmith.local", string(hash), "Admin", "admin", false)
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	// An empty brand kit so the brand-guide flag works out of the box.
	_, err = db.Exec(`
		INSERT INTO brand_kits (org_id) VALUES ($1)
	`, orgID)
	if err != nil {
		return fmt.Errorf("seed insert brand kit: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"email", "admin@mailsmith.local",
		"password", "admin",
	)

	return nil
}

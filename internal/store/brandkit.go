// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"mailsmith/internal/models"
)

// brandKitColumns lists all columns for brand_kits SELECTs.
const brandKitColumns = `id, org_id, primary_color, secondary_color, accent_color,
	font_family, tone, logo_url, created_at, updated_at`

// BrandKitStore manages the one-per-organization brand kit rows.
type BrandKitStore struct {
	db *sql.DB
}

// NewBrandKitStore creates a new BrandKitStore with the given database connection.
func NewBrandKitStore(db *sql.DB) *BrandKitStore {
	return &BrandKitStore{db: db}
}

// scanBrandKit scans a single brand_kits row into a BrandKit.
func scanBrandKit(scanner interface{ Scan(...any) error }) (*models.BrandKit, error) {
	var b models.BrandKit
	err := scanner.Scan(
		&b.ID, &b.OrgID, &b.PrimaryColor, &b.SecondaryColor, &b.AccentColor,
		&b.FontFamily, &b.Tone, &b.LogoURL, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindByOrg retrieves an organization's brand kit. Returns nil if the
// organization has none yet.
func (s *BrandKitStore) FindByOrg(orgID uuid.UUID) (*models.BrandKit, error) {
	row := s.db.QueryRow(`
		SELECT `+brandKitColumns+`
		FROM brand_kits WHERE org_id = $1
	`, orgID)
	b, err := scanBrandKit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find brand kit: %w", err)
	}
	return b, nil
}

// Upsert creates or replaces an organization's brand kit in one statement.
func (s *BrandKitStore) Upsert(b *models.BrandKit) (*models.BrandKit, error) {
	row := s.db.QueryRow(`
		INSERT INTO brand_kits (org_id, primary_color, secondary_color, accent_color, font_family, tone, logo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id) DO UPDATE SET
			primary_color = EXCLUDED.primary_color,
			secondary_color = EXCLUDED.secondary_color,
			accent_color = EXCLUDED.accent_color,
			font_family = EXCLUDED.font_family,
			tone = EXCLUDED.tone,
			logo_url = EXCLUDED.logo_url,
			updated_at = NOW()
		RETURNING `+brandKitColumns,
		b.OrgID, b.PrimaryColor, b.SecondaryColor, b.AccentColor,
		b.FontFamily, b.Tone, b.LogoURL,
	)
	saved, err := scanBrandKit(row)
	if err != nil {
		return nil, fmt.Errorf("upsert brand kit: %w", err)
	}
	return saved, nil
}

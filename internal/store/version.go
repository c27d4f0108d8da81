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

// versionColumns lists all columns for template_versions SELECTs.
const versionColumns = `id, template_id, version, subject, preview_text, code,
	change_note, created_by, created_at`

// VersionStore provides access to template version snapshots.
// Snapshots are immutable; only the retention cap mutates the table
// after insert, and the numbering is never reused so version numbers
// keep ascending past the cap.
type VersionStore struct {
	db *sql.DB
}

// NewVersionStore creates a new VersionStore backed by the given database.
func NewVersionStore(db *sql.DB) *VersionStore {
	return &VersionStore{db: db}
}

// scanVersion scans a single template_versions row into a TemplateVersion.
func scanVersion(scanner interface{ Scan(...any) error }) (*models.TemplateVersion, error) {
	var v models.TemplateVersion
	err := scanner.Scan(
		&v.ID, &v.TemplateID, &v.Version, &v.Subject, &v.PreviewText,
		&v.Code, &v.ChangeNote, &v.CreatedBy, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new version snapshot with the next version number and
// prunes the oldest snapshots beyond models.MaxVersionsPerTemplate, all in
// one transaction so a concurrent reader never sees more than the cap plus
// the row being written.
func (s *VersionStore) Create(v *models.TemplateVersion) (*models.TemplateVersion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("create version begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		INSERT INTO template_versions (template_id, version, subject, preview_text, code, change_note, created_by)
		VALUES ($1,
		        (SELECT COALESCE(MAX(version), 0) + 1 FROM template_versions WHERE template_id = $1),
		        $2, $3, $4, $5, $6)
		RETURNING `+versionColumns,
		v.TemplateID, v.Subject, v.PreviewText, v.Code, v.ChangeNote, v.CreatedBy,
	)
	created, err := scanVersion(row)
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	// Prune oldest beyond the cap.
	_, err = tx.Exec(`
		DELETE FROM template_versions
		WHERE template_id = $1
		  AND version <= (
			SELECT COALESCE(MAX(version), 0) - $2 FROM template_versions WHERE template_id = $1
		  )
	`, v.TemplateID, models.MaxVersionsPerTemplate)
	if err != nil {
		return nil, fmt.Errorf("prune versions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create version commit: %w", err)
	}
	return created, nil
}

// ListByTemplateID returns all retained versions for a template,
// newest first by version number.
func (s *VersionStore) ListByTemplateID(templateID uuid.UUID) ([]*models.TemplateVersion, error) {
	rows, err := s.db.Query(`
		SELECT `+versionColumns+`
		FROM template_versions
		WHERE template_id = $1
		ORDER BY version DESC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.TemplateVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// FindByID returns a single version snapshot by its ID. Returns nil if not found.
func (s *VersionStore) FindByID(id uuid.UUID) (*models.TemplateVersion, error) {
	row := s.db.QueryRow(`
		SELECT `+versionColumns+`
		FROM template_versions
		WHERE id = $1
	`, id)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find version by id: %w", err)
	}
	return v, nil
}

// CountByTemplateID returns the number of retained snapshots for a template.
func (s *VersionStore) CountByTemplateID(templateID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM template_versions WHERE template_id = $1
	`, templateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count versions: %w", err)
	}
	return count, nil
}

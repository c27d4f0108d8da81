// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"mailsmith/internal/models"
)

// templateColumns lists all columns for templates SELECTs.
const templateColumns = `id, org_id, name, subject, preview_text, react_email_code,
	style_type, style_definitions, status, current_version, created_by, created_at, updated_at`

// TemplateStore handles all template-related database operations.
type TemplateStore struct {
	db *sql.DB
}

// NewTemplateStore creates a new TemplateStore with the given database connection.
func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// scanTemplate scans a single templates row into a Template.
// style_definitions is stored as JSONB and decoded into the map.
func scanTemplate(scanner interface{ Scan(...any) error }) (*models.Template, error) {
	var t models.Template
	var styleJSON []byte
	err := scanner.Scan(
		&t.ID, &t.OrgID, &t.Name, &t.Subject, &t.PreviewText, &t.ReactEmailCode,
		&t.StyleType, &styleJSON, &t.Status, &t.CurrentVersion, &t.CreatedBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(styleJSON) > 0 {
		if err := json.Unmarshal(styleJSON, &t.StyleDefinitions); err != nil {
			return nil, fmt.Errorf("decode style definitions: %w", err)
		}
	}
	return &t, nil
}

// ListByOrg returns all templates belonging to an organization, newest first.
func (s *TemplateStore) ListByOrg(orgID uuid.UUID) ([]*models.Template, error) {
	rows, err := s.db.Query(`
		SELECT `+templateColumns+`
		FROM templates
		WHERE org_id = $1
		ORDER BY updated_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// FindByID retrieves a template by its UUID. Returns nil if not found.
func (s *TemplateStore) FindByID(id uuid.UUID) (*models.Template, error) {
	row := s.db.QueryRow(`
		SELECT `+templateColumns+`
		FROM templates WHERE id = $1
	`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find template by id: %w", err)
	}
	return t, nil
}

// Create inserts a new template and returns it with the generated ID.
func (s *TemplateStore) Create(t *models.Template) (*models.Template, error) {
	if t.StyleType == "" {
		t.StyleType = models.StyleTypeMinimal
	}
	if t.Status == "" {
		t.Status = models.TemplateStatusDraft
	}
	styleJSON, err := marshalStyle(t.StyleDefinitions)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`
		INSERT INTO templates (org_id, name, subject, preview_text, react_email_code,
		                       style_type, style_definitions, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+templateColumns,
		t.OrgID, t.Name, t.Subject, t.PreviewText, t.ReactEmailCode,
		t.StyleType, styleJSON, t.Status, t.CreatedBy,
	)
	created, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return created, nil
}

// Update modifies an existing template's generated fields and status.
func (s *TemplateStore) Update(t *models.Template) error {
	styleJSON, err := marshalStyle(t.StyleDefinitions)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		UPDATE templates SET
			name = $1, subject = $2, preview_text = $3, react_email_code = $4,
			style_type = $5, style_definitions = $6, status = $7,
			current_version = $8, updated_at = NOW()
		WHERE id = $9
	`, t.Name, t.Subject, t.PreviewText, t.ReactEmailCode,
		t.StyleType, styleJSON, t.Status, t.CurrentVersion, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// SetCurrentVersion updates only the current-version pointer.
func (s *TemplateStore) SetCurrentVersion(templateID, versionID uuid.UUID) error {
	_, err := s.db.Exec(`
		UPDATE templates SET current_version = $1, updated_at = NOW() WHERE id = $2
	`, versionID, templateID)
	if err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	return nil
}

// Delete removes a template by ID. Versions and chat messages cascade.
func (s *TemplateStore) Delete(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// CountByOrg returns the number of templates owned by an organization.
func (s *TemplateStore) CountByOrg(orgID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM templates WHERE org_id = $1`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return count, nil
}

// marshalStyle encodes the style map as JSONB, treating nil as an empty object.
func marshalStyle(style map[string]string) ([]byte, error) {
	if style == nil {
		style = map[string]string{}
	}
	b, err := json.Marshal(style)
	if err != nil {
		return nil, fmt.Errorf("encode style definitions: %w", err)
	}
	return b, nil
}

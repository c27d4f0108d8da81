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

// imageAssetColumns lists all columns for image_assets SELECTs.
const imageAssetColumns = `id, org_id, filename, original_name, content_type, size_bytes,
	bucket, s3_key, thumb_s3_key, alt_text, source, uploader_id, created_at`

// ImageAssetStore handles all image-asset database operations. Uploaded,
// AI-generated, and proxy-downloaded images share this table.
type ImageAssetStore struct {
	db *sql.DB
}

// NewImageAssetStore creates a new ImageAssetStore with the given database connection.
func NewImageAssetStore(db *sql.DB) *ImageAssetStore {
	return &ImageAssetStore{db: db}
}

// scanImageAsset scans a single image_assets row into an ImageAsset.
func scanImageAsset(scanner interface{ Scan(...any) error }) (*models.ImageAsset, error) {
	var a models.ImageAsset
	err := scanner.Scan(
		&a.ID, &a.OrgID, &a.Filename, &a.OriginalName, &a.ContentType, &a.SizeBytes,
		&a.Bucket, &a.S3Key, &a.ThumbS3Key, &a.AltText, &a.Source, &a.UploaderID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByOrg returns an organization's image assets, newest first.
func (s *ImageAssetStore) ListByOrg(orgID uuid.UUID) ([]*models.ImageAsset, error) {
	rows, err := s.db.Query(`
		SELECT `+imageAssetColumns+`
		FROM image_assets
		WHERE org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list image assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.ImageAsset
	for rows.Next() {
		a, err := scanImageAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// FindByID retrieves an image asset by its UUID. Returns nil if not found.
func (s *ImageAssetStore) FindByID(id uuid.UUID) (*models.ImageAsset, error) {
	row := s.db.QueryRow(`
		SELECT `+imageAssetColumns+`
		FROM image_assets WHERE id = $1
	`, id)
	a, err := scanImageAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find image asset by id: %w", err)
	}
	return a, nil
}

// Create inserts a new image asset record and returns it with the generated ID.
func (s *ImageAssetStore) Create(a *models.ImageAsset) (*models.ImageAsset, error) {
	if a.Source == "" {
		a.Source = models.ImageSourceUpload
	}
	row := s.db.QueryRow(`
		INSERT INTO image_assets (org_id, filename, original_name, content_type, size_bytes,
		                          bucket, s3_key, thumb_s3_key, alt_text, source, uploader_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+imageAssetColumns,
		a.OrgID, a.Filename, a.OriginalName, a.ContentType, a.SizeBytes,
		a.Bucket, a.S3Key, a.ThumbS3Key, a.AltText, a.Source, a.UploaderID,
	)
	created, err := scanImageAsset(row)
	if err != nil {
		return nil, fmt.Errorf("create image asset: %w", err)
	}
	return created, nil
}

// Delete removes an image asset record by ID. The S3 objects are deleted
// by the handler, which knows the storage client.
func (s *ImageAssetStore) Delete(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM image_assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image asset: %w", err)
	}
	return nil
}

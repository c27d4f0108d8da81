// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ImageAssetSource records how an image asset entered the studio.
type ImageAssetSource string

const (
	ImageSourceUpload    ImageAssetSource = "upload"
	ImageSourceGenerated ImageAssetSource = "generated"
	ImageSourceDownload  ImageAssetSource = "download"
)

// ImageAsset is an image stored in S3 and available to templates.
// Generated and proxy-downloaded images go through the same pipeline as
// manual uploads.
type ImageAsset struct {
	ID           uuid.UUID        `json:"id"`
	OrgID        uuid.UUID        `json:"org_id"`
	Filename     string           `json:"filename"`
	OriginalName string           `json:"original_name"`
	ContentType  string           `json:"content_type"`
	SizeBytes    int64            `json:"size_bytes"`
	Bucket       string           `json:"-"`
	S3Key        string           `json:"-"`
	ThumbS3Key   *string          `json:"-"`
	AltText      *string          `json:"alt_text,omitempty"`
	Source       ImageAssetSource `json:"source"`
	UploaderID   uuid.UUID        `json:"uploader_id"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// TemplateStatus represents the lifecycle state of an email template.
type TemplateStatus string

const (
	TemplateStatusDraft  TemplateStatus = "DRAFT"
	TemplateStatusActive TemplateStatus = "ACTIVE"
)

// StyleType categorizes the visual style of a generated template.
type StyleType string

const (
	StyleTypeMinimal StyleType = "minimal"
	StyleTypeBranded StyleType = "branded"
	StyleTypeRich    StyleType = "rich"
)

// ParseStyleType maps a free-form style string from the generation stream
// to one of the fixed style enum values. Unknown values fall back to minimal.
func ParseStyleType(s string) StyleType {
	switch StyleType(s) {
	case StyleTypeBranded:
		return StyleTypeBranded
	case StyleTypeRich:
		return StyleTypeRich
	default:
		return StyleTypeMinimal
	}
}

// Template represents an AI-generated React-Email template. The code field
// holds the full React-Email source string; subject and preview text are the
// email envelope fields generated alongside it.
type Template struct {
	ID               uuid.UUID         `json:"id"`
	OrgID            uuid.UUID         `json:"org_id"`
	Name             string            `json:"name"`
	Subject          string            `json:"subject"`
	PreviewText      string            `json:"preview_text"`
	ReactEmailCode   string            `json:"react_email_code"`
	StyleType        StyleType         `json:"style_type"`
	StyleDefinitions map[string]string `json:"style_definitions,omitempty"`
	Status           TemplateStatus    `json:"status"`
	CurrentVersion   *uuid.UUID        `json:"current_version,omitempty"`
	CreatedBy        uuid.UUID         `json:"created_by"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// HasCode returns true if the template already has generated code.
// An empty-code template takes the generate path; otherwise regenerate.
func (t *Template) HasCode() bool {
	return t.ReactEmailCode != ""
}

// TemplateVersion is an immutable snapshot of a template's generated code,
// created on every save. At most MaxVersionsPerTemplate are retained per
// template; the store prunes the oldest on insert.
type TemplateVersion struct {
	ID          uuid.UUID `json:"id"`
	TemplateID  uuid.UUID `json:"template_id"`
	Version     int       `json:"version"`
	Subject     string    `json:"subject"`
	PreviewText string    `json:"preview_text"`
	Code        string    `json:"code"`
	ChangeNote  string    `json:"change_note"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// MaxVersionsPerTemplate is the retention cap for version snapshots.
const MaxVersionsPerTemplate = 10

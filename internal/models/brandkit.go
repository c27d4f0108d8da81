// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// BrandKit holds an organization's visual and voice parameters. When a
// generation request sets the brand-guide flag, these values are folded
// into the system prompt to bias output toward the brand identity.
type BrandKit struct {
	ID             uuid.UUID `json:"id"`
	OrgID          uuid.UUID `json:"org_id"`
	PrimaryColor   string    `json:"primary_color"`
	SecondaryColor string    `json:"secondary_color"`
	AccentColor    string    `json:"accent_color"`
	FontFamily     string    `json:"font_family"`
	Tone           string    `json:"tone"`
	LogoURL        *string   `json:"logo_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PromptFragment renders the brand kit as instructions for the generation
// system prompt. Empty fields are omitted.
func (b *BrandKit) PromptFragment() string {
	if b == nil {
		return ""
	}
	s := "Brand guidelines:\n"
	if b.PrimaryColor != "" {
		s += "- Primary color: " + b.PrimaryColor + "\n"
	}
	if b.SecondaryColor != "" {
		s += "- Secondary color: " + b.SecondaryColor + "\n"
	}
	if b.AccentColor != "" {
		s += "- Accent color: " + b.AccentColor + "\n"
	}
	if b.FontFamily != "" {
		s += "- Font family: " + b.FontFamily + "\n"
	}
	if b.Tone != "" {
		s += "- Voice and tone: " + b.Tone + "\n"
	}
	if b.LogoURL != nil && *b.LogoURL != "" {
		s += "- Logo image URL: " + *b.LogoURL + "\n"
	}
	return s
}

// Organization is the ownership boundary for templates, brand kits, and
// image assets.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

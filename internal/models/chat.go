// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry in a template's authoring conversation.
// Messages are created optimistically client-side with a local identifier
// and reconciled to a server identifier once persisted; PersistenceError
// records a failed persistence attempt instead of rolling the message back.
type ChatMessage struct {
	ID               uuid.UUID          `json:"id"`
	TemplateID       uuid.UUID          `json:"template_id"`
	Role             ChatRole           `json:"role"`
	Content          string             `json:"content"`
	ImageURLs        []string           `json:"image_urls,omitempty"`
	GenerationResult *GenerationSummary `json:"generation_result,omitempty"`
	IsStreaming      bool               `json:"is_streaming"`
	PersistenceError bool               `json:"persistence_error"`
	CreatedAt        time.Time          `json:"created_at"`
}

// GenerationSummary is the compact record of a completed generation that
// gets attached to the assistant message which produced it.
type GenerationSummary struct {
	Subject     string `json:"subject"`
	PreviewText string `json:"preview_text"`
	CodeLength  int    `json:"code_length"`
	StyleType   string `json:"style_type"`
}

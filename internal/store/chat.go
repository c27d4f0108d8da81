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

// chatColumns lists all columns for chat_messages SELECTs.
const chatColumns = `id, template_id, role, content, image_urls, generation_result, is_streaming, created_at`

// ChatStore persists the authoring conversation for each template.
// The persistence-error flag never reaches this table: it is a client-side
// marker for messages that failed to land here in the first place.
type ChatStore struct {
	db *sql.DB
}

// NewChatStore creates a new ChatStore with the given database connection.
func NewChatStore(db *sql.DB) *ChatStore {
	return &ChatStore{db: db}
}

// scanMessage scans a single chat_messages row into a ChatMessage.
func scanMessage(scanner interface{ Scan(...any) error }) (*models.ChatMessage, error) {
	var m models.ChatMessage
	var imagesJSON []byte
	var resultJSON []byte
	err := scanner.Scan(
		&m.ID, &m.TemplateID, &m.Role, &m.Content, &imagesJSON,
		&resultJSON, &m.IsStreaming, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &m.ImageURLs); err != nil {
			return nil, fmt.Errorf("decode image urls: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		var summary models.GenerationSummary
		if err := json.Unmarshal(resultJSON, &summary); err != nil {
			return nil, fmt.Errorf("decode generation result: %w", err)
		}
		m.GenerationResult = &summary
	}
	return &m, nil
}

// ListByTemplateID returns a template's conversation, oldest first.
func (s *ChatStore) ListByTemplateID(templateID uuid.UUID) ([]*models.ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT `+chatColumns+`
		FROM chat_messages
		WHERE template_id = $1
		ORDER BY created_at ASC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Create inserts a new chat message and returns it with the server-issued ID.
// The caller's local identifier is discarded here; reconciliation against it
// happens in the generation layer.
func (s *ChatStore) Create(m *models.ChatMessage) (*models.ChatMessage, error) {
	imagesJSON, err := json.Marshal(urlsOrEmpty(m.ImageURLs))
	if err != nil {
		return nil, fmt.Errorf("encode image urls: %w", err)
	}

	var resultJSON any
	if m.GenerationResult != nil {
		b, err := json.Marshal(m.GenerationResult)
		if err != nil {
			return nil, fmt.Errorf("encode generation result: %w", err)
		}
		resultJSON = b
	}

	row := s.db.QueryRow(`
		INSERT INTO chat_messages (template_id, role, content, image_urls, generation_result, is_streaming)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+chatColumns,
		m.TemplateID, m.Role, m.Content, imagesJSON, resultJSON, m.IsStreaming,
	)
	created, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("create chat message: %w", err)
	}
	return created, nil
}

// Update replaces the content, generation result, and streaming flag of an
// existing message. Used to finalize assistant placeholders (completion or
// the terminal cancelled state).
func (s *ChatStore) Update(m *models.ChatMessage) error {
	var resultJSON any
	if m.GenerationResult != nil {
		b, err := json.Marshal(m.GenerationResult)
		if err != nil {
			return fmt.Errorf("encode generation result: %w", err)
		}
		resultJSON = b
	}

	_, err := s.db.Exec(`
		UPDATE chat_messages SET content = $1, generation_result = $2, is_streaming = $3
		WHERE id = $4
	`, m.Content, resultJSON, m.IsStreaming, m.ID)
	if err != nil {
		return fmt.Errorf("update chat message: %w", err)
	}
	return nil
}

// FindByID returns a single message by its ID. Returns nil if not found.
func (s *ChatStore) FindByID(id uuid.UUID) (*models.ChatMessage, error) {
	row := s.db.QueryRow(`
		SELECT `+chatColumns+`
		FROM chat_messages WHERE id = $1
	`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find chat message by id: %w", err)
	}
	return m, nil
}

// urlsOrEmpty normalizes a nil slice to an empty one so the JSONB column
// always holds an array.
func urlsOrEmpty(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}

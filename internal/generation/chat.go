// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package generation

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"mailsmith/internal/models"
)

// cancelledContent is the terminal content written to an assistant
// placeholder when its generation is cancelled.
const cancelledContent = "Generation cancelled."

// MessageStore persists chat messages. Satisfied by *store.ChatStore.
type MessageStore interface {
	Create(m *models.ChatMessage) (*models.ChatMessage, error)
	Update(m *models.ChatMessage) error
}

// Reconciler keeps a session's optimistic chat messages in step with the
// database. Messages are created locally with provisional identifiers and
// swapped to server identifiers in one atomic step after generation
// resolves; a failed persistence marks the messages instead of removing
// them.
type Reconciler struct {
	store MessageStore

	mu       sync.Mutex
	messages []*models.ChatMessage
	// initialImages attach only to the first send of the session; later
	// sends use whatever the caller passes live.
	initialImages []string
	sentOnce      bool
}

// NewReconciler creates a reconciler seeded with already-persisted
// messages (the stored conversation, oldest first).
func NewReconciler(store MessageStore, existing []*models.ChatMessage) *Reconciler {
	r := &Reconciler{store: store}
	r.messages = append(r.messages, existing...)
	return r
}

// SetInitialImages stages image attachments for the first send only.
func (r *Reconciler) SetInitialImages(urls []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialImages = urls
}

// FirstSend consumes the one-shot auto-send guard. The first caller gets
// true; every later call gets false.
func (r *Reconciler) FirstSend() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sentOnce {
		return false
	}
	r.sentOnce = true
	return true
}

// Send creates the optimistic pair for one prompt: a user message and a
// streaming assistant placeholder, both with locally generated
// identifiers. Nothing touches the database here; persistence happens in
// Resolve after generation finishes.
func (r *Reconciler) Send(templateID uuid.UUID, prompt string, imageURLs []string) (userID, assistantID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialImages != nil {
		if len(imageURLs) == 0 {
			imageURLs = r.initialImages
		}
		r.initialImages = nil
	}

	user := &models.ChatMessage{
		ID:         uuid.New(),
		TemplateID: templateID,
		Role:       models.ChatRoleUser,
		Content:    prompt,
		ImageURLs:  imageURLs,
	}
	assistant := &models.ChatMessage{
		ID:          uuid.New(),
		TemplateID:  templateID,
		Role:        models.ChatRoleAssistant,
		IsStreaming: true,
	}
	r.messages = append(r.messages, user, assistant)
	return user.ID, assistant.ID
}

// Resolve persists the optimistic pair after generation resolved and
// swaps both local identifiers for the server-issued ones in one step, so
// no observer ever sees a mixed local/server pair. On persistence failure
// both messages stay visible with PersistenceError set, and the error is
// returned for a user-facing notice.
func (r *Reconciler) Resolve(userID, assistantID uuid.UUID, assistantContent string, result *models.GenerationSummary) error {
	r.mu.Lock()
	user := r.findLocked(userID)
	assistant := r.findLocked(assistantID)
	if user == nil || assistant == nil {
		r.mu.Unlock()
		return nil
	}
	// Snapshot what gets written while holding the lock.
	userCopy := *user
	assistantCopy := *assistant
	assistantCopy.Content = assistantContent
	assistantCopy.GenerationResult = result
	assistantCopy.IsStreaming = false
	r.mu.Unlock()

	persistedUser, err := r.store.Create(&userCopy)
	var persistedAssistant *models.ChatMessage
	if err == nil {
		persistedAssistant, err = r.store.Create(&assistantCopy)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		slog.Error("failed to persist chat messages",
			"template_id", user.TemplateID, "error", err)
		user.PersistenceError = true
		assistant.Content = assistantContent
		assistant.GenerationResult = result
		assistant.IsStreaming = false
		assistant.PersistenceError = true
		return err
	}

	// Atomic identifier swap: both IDs change under one lock hold.
	user.ID = persistedUser.ID
	user.CreatedAt = persistedUser.CreatedAt
	assistant.ID = persistedAssistant.ID
	assistant.CreatedAt = persistedAssistant.CreatedAt
	assistant.Content = assistantContent
	assistant.GenerationResult = result
	assistant.IsStreaming = false
	return nil
}

// Cancel writes the terminal cancelled state to the assistant placeholder.
// No generation result is ever attached to a cancelled message. The
// cancelled pair is persisted best-effort: a failure is logged, flagged,
// and otherwise ignored.
func (r *Reconciler) Cancel(userID, assistantID uuid.UUID) {
	r.mu.Lock()
	user := r.findLocked(userID)
	assistant := r.findLocked(assistantID)
	if assistant == nil {
		r.mu.Unlock()
		return
	}
	assistant.Content = cancelledContent
	assistant.IsStreaming = false
	assistant.GenerationResult = nil
	userCopy := models.ChatMessage{}
	if user != nil {
		userCopy = *user
	}
	assistantCopy := *assistant
	templateID := assistant.TemplateID
	r.mu.Unlock()

	var persistedUser, persistedAssistant *models.ChatMessage
	var err error
	if user != nil {
		persistedUser, err = r.store.Create(&userCopy)
	}
	if err == nil {
		persistedAssistant, err = r.store.Create(&assistantCopy)
	}
	if err != nil {
		slog.Warn("failed to persist cancelled message",
			"template_id", templateID, "error", err)
		r.mu.Lock()
		if user != nil {
			user.PersistenceError = true
		}
		assistant.PersistenceError = true
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if user != nil && persistedUser != nil {
		user.ID = persistedUser.ID
		user.CreatedAt = persistedUser.CreatedAt
	}
	if persistedAssistant != nil {
		assistant.ID = persistedAssistant.ID
		assistant.CreatedAt = persistedAssistant.CreatedAt
	}
}

// Messages returns a snapshot of the conversation, oldest first.
func (r *Reconciler) Messages() []*models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.ChatMessage, len(r.messages))
	for i, m := range r.messages {
		copied := *m
		out[i] = &copied
	}
	return out
}

func (r *Reconciler) findLocked(id uuid.UUID) *models.ChatMessage {
	for _, m := range r.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

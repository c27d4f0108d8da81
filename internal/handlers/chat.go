// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mailsmith/internal/markdown"
	"mailsmith/internal/middleware"
	"mailsmith/internal/models"
)

const maxMessageLen = 8000

// chatMessageView is a ChatMessage plus the rendered HTML for assistant
// markdown content.
type chatMessageView struct {
	*models.ChatMessage
	ContentHTML string `json:"content_html,omitempty"`
}

func renderMessages(msgs []*models.ChatMessage) []chatMessageView {
	views := make([]chatMessageView, 0, len(msgs))
	for _, m := range msgs {
		v := chatMessageView{ChatMessage: m}
		if m.Role == models.ChatRoleAssistant && m.Content != "" {
			html, err := markdown.ToHTML(m.Content)
			if err != nil {
				slog.Warn("message markdown render failed", "message_id", m.ID, "error", err)
			} else {
				v.ContentHTML = html
			}
		}
		views = append(views, v)
	}
	return views
}

// ListMessages returns a template's conversation. When a live generation
// session exists its reconciled view wins, so optimistic and streaming
// messages are visible before they are persisted.
func (a *API) ListMessages(w http.ResponseWriter, r *http.Request) {
	tmpl := a.fetchOwnedTemplate(w, r)
	if tmpl == nil {
		return
	}

	if st, ok := a.lookupGenState(tmpl.ID); ok {
		writeJSON(w, http.StatusOK, map[string]any{"messages": renderMessages(st.chat.Messages())})
		return
	}

	msgs, err := a.messages.ListByTemplateID(tmpl.ID)
	if err != nil {
		slog.Error("message list failed", "template_id", tmpl.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": renderMessages(msgs)})
}

type createMessageRequest struct {
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_urls"`
}

// CreateMessage appends a user note to the conversation without starting
// a generation. Generation-driving messages go through the SSE endpoints.
func (a *API) CreateMessage(w http.ResponseWriter, r *http.Request) {
	tmpl := a.fetchOwnedTemplate(w, r)
	if tmpl == nil {
		return
	}

	var req createMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" || len(req.Content) > maxMessageLen {
		writeError(w, http.StatusBadRequest, "content is required and must be at most 8000 characters")
		return
	}

	msg, err := a.messages.Create(&models.ChatMessage{
		TemplateID: tmpl.ID,
		Role:       models.ChatRoleUser,
		Content:    req.Content,
		ImageURLs:  req.ImageURLs,
	})
	if err != nil {
		slog.Error("message create failed", "template_id", tmpl.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// A stale in-memory conversation would hide this message on the next
	// list; drop it so it reseeds from the store. Never while a stream
	// is running.
	if st, ok := a.lookupGenState(tmpl.ID); ok && !st.session.Streaming() {
		a.dropGenState(tmpl.ID)
	}
	writeJSON(w, http.StatusCreated, msg)
}

type updateMessageRequest struct {
	Content string `json:"content"`
}

// UpdateMessage edits a persisted message's content.
func (a *API) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req updateMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" || len(req.Content) > maxMessageLen {
		writeError(w, http.StatusBadRequest, "content is required and must be at most 8000 characters")
		return
	}

	msg, err := a.messages.FindByID(id)
	if err != nil {
		slog.Error("message lookup failed", "message_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	tmpl, err := a.templates.FindByID(msg.TemplateID)
	if err != nil {
		slog.Error("template lookup failed", "template_id", msg.TemplateID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tmpl == nil || tmpl.OrgID != sess.OrgID {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	msg.Content = req.Content
	if err := a.messages.Update(msg); err != nil {
		slog.Error("message update failed", "message_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if st, ok := a.lookupGenState(msg.TemplateID); ok && !st.session.Streaming() {
		a.dropGenState(msg.TemplateID)
	}
	writeJSON(w, http.StatusOK, msg)
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"mailsmith/internal/generation"
	"mailsmith/internal/middleware"
	"mailsmith/internal/models"
)

const maxPromptLen = 4000

type generateRequest struct {
	TemplateID        uuid.UUID `json:"template_id"`
	Prompt            string    `json:"prompt"`
	ImageURLs         []string  `json:"image_urls"`
	IncludeBrandGuide bool      `json:"include_brand_guide"`
}

// Generate streams a first-time template generation as SSE.
func (a *API) Generate(w http.ResponseWriter, r *http.Request) {
	a.stream(w, r, false)
}

// Regenerate streams a revision of a template that already has code.
func (a *API) Regenerate(w http.ResponseWriter, r *http.Request) {
	a.stream(w, r, true)
}

// stream is the shared generate/regenerate path: moderate the prompt,
// record the optimistic chat pair, start the generation run, and relay
// its events to the client as SSE until the terminal event (or a bare
// close on cancel).
func (a *API) stream(w http.ResponseWriter, r *http.Request, regen bool) {
	sess := middleware.SessionFromCtx(r.Context())

	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" || len(req.Prompt) > maxPromptLen {
		writeError(w, http.StatusBadRequest, "prompt is required and must be at most 4000 characters")
		return
	}

	tmpl, err := a.templates.FindByID(req.TemplateID)
	if err != nil {
		slog.Error("template lookup failed", "template_id", req.TemplateID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tmpl == nil || tmpl.OrgID != sess.OrgID {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}

	mod, err := a.registry.CheckPrompt(r.Context(), req.Prompt)
	if err != nil {
		slog.Warn("prompt moderation unavailable", "error", err)
	} else if !mod.Safe {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "prompt rejected by content moderation",
			"categories": mod.Categories,
		})
		return
	}

	var kit *models.BrandKit
	if req.IncludeBrandGuide {
		kit, err = a.brandKits.FindByOrg(sess.OrgID)
		if err != nil {
			slog.Error("brand kit lookup failed", "org_id", sess.OrgID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	st, err := a.genStateFor(tmpl)
	if err != nil {
		slog.Error("generation state init failed", "template_id", tmpl.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	st.setMsgIDs(st.chat.Send(tmpl.ID, req.Prompt, req.ImageURLs))

	genReq := generation.Request{
		Prompt:    req.Prompt,
		ImageURLs: req.ImageURLs,
		BrandKit:  kit,
		UserID:    sess.UserID,
	}
	var events <-chan generation.Event
	if regen {
		events, err = st.session.Regenerate(r.Context(), genReq)
	} else {
		events, err = st.session.Generate(r.Context(), genReq)
	}
	if err != nil {
		userID, assistantID := st.msgIDs()
		st.chat.Cancel(userID, assistantID)
		switch {
		case errors.Is(err, generation.ErrHasCode):
			writeError(w, http.StatusConflict, "template already has generated code")
		case errors.Is(err, generation.ErrNoCode):
			writeError(w, http.StatusConflict, "template has no generated code yet")
		default:
			slog.Error("generation start failed", "template_id", tmpl.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	flusher.Flush()

	for ev := range events {
		writeSSE(w, flusher, ev)
		if ev.Done || ev.Err != "" || ev.Validation != nil {
			a.resolveChat(st, ev)
		}
	}
	a.previews.Invalidate(r.Context(), tmpl.ID)
}

// writeSSE sends one event in text/event-stream framing.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev generation.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("event marshal failed", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// resolveChat finalizes the optimistic chat pair for a terminal event.
// A successful run attaches the generation summary; validation failures
// and stream errors produce a plain assistant explanation instead.
func (a *API) resolveChat(st *genState, ev generation.Event) {
	var content string
	var summary *models.GenerationSummary

	switch {
	case ev.Done:
		tmpl := st.session.Template()
		content = fmt.Sprintf("Generated %q with subject %q.", tmpl.Name, tmpl.Subject)
		summary = &models.GenerationSummary{
			Subject:     tmpl.Subject,
			PreviewText: tmpl.PreviewText,
			CodeLength:  len(tmpl.ReactEmailCode),
			StyleType:   string(tmpl.StyleType),
		}
	case ev.Validation != nil:
		content = fmt.Sprintf("The generated code failed validation: %s.",
			strings.Join(ev.Validation.Errors, "; "))
	default:
		content = "Generation failed: " + ev.Err
	}

	userID, assistantID := st.msgIDs()
	if err := st.chat.Resolve(userID, assistantID, content, summary); err != nil {
		slog.Error("chat persistence failed", "error", err)
	}
}

type templateIDRequest struct {
	TemplateID uuid.UUID `json:"template_id"`
}

// CancelGeneration aborts a template's in-flight stream and writes the
// terminal cancelled state to the assistant placeholder.
func (a *API) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req templateIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	tmpl, err := a.templates.FindByID(req.TemplateID)
	if err != nil {
		slog.Error("template lookup failed", "template_id", req.TemplateID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tmpl == nil || tmpl.OrgID != sess.OrgID {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}

	st, ok := a.lookupGenState(req.TemplateID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": false})
		return
	}

	st.session.CancelGeneration()
	userID, assistantID := st.msgIDs()
	st.chat.Cancel(userID, assistantID)
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// RenderReady clears the waiting-for-render flag after the client's
// preview renderer finishes with regenerated code.
func (a *API) RenderReady(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req templateIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	tmpl, err := a.templates.FindByID(req.TemplateID)
	if err != nil {
		slog.Error("template lookup failed", "template_id", req.TemplateID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tmpl == nil || tmpl.OrgID != sess.OrgID {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}

	if st, ok := a.lookupGenState(req.TemplateID); ok {
		st.session.RenderReady()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON/SSE HTTP API: template CRUD and
// version history, streaming generation, chat, the image studio, brand
// kit, and authentication.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"mailsmith/internal/ai"
	"mailsmith/internal/cache"
	"mailsmith/internal/generation"
	"mailsmith/internal/models"
	"mailsmith/internal/storage"
	"mailsmith/internal/store"
)

// API groups the authenticated JSON API handlers and their dependencies.
type API struct {
	templates *store.TemplateStore
	versions  *store.VersionStore
	messages  *store.ChatStore
	brandKits *store.BrandKitStore
	images    *store.ImageAssetStore
	registry  *ai.Registry
	storage   *storage.Client // nil when object storage is not configured
	previews  *cache.PreviewCache

	// Generation state is held in memory per template: the stream slot,
	// phase tracker, and optimistic chat pair survive across requests for
	// as long as the process does.
	mu   sync.Mutex
	gens map[uuid.UUID]*genState
}

// genState is the live generation machinery for one template.
type genState struct {
	session *generation.Session
	chat    *generation.Reconciler

	// The optimistic pair of the in-flight (or last) send, needed to
	// resolve or cancel it from a later request. A cancel can race the
	// send that created the pair, so the IDs are read through the mutex.
	mu             sync.Mutex
	userMsgID      uuid.UUID
	assistantMsgID uuid.UUID
}

func (st *genState) setMsgIDs(userID, assistantID uuid.UUID) {
	st.mu.Lock()
	st.userMsgID = userID
	st.assistantMsgID = assistantID
	st.mu.Unlock()
}

func (st *genState) msgIDs() (userID, assistantID uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.userMsgID, st.assistantMsgID
}

// NewAPI creates the API handler group.
func NewAPI(
	templates *store.TemplateStore,
	versions *store.VersionStore,
	messages *store.ChatStore,
	brandKits *store.BrandKitStore,
	images *store.ImageAssetStore,
	registry *ai.Registry,
	storageClient *storage.Client,
	previews *cache.PreviewCache,
) *API {
	return &API{
		templates: templates,
		versions:  versions,
		messages:  messages,
		brandKits: brandKits,
		images:    images,
		registry:  registry,
		storage:   storageClient,
		previews:  previews,
		gens:      make(map[uuid.UUID]*genState),
	}
}

// genStateFor returns (creating if needed) the generation state for a
// template. The reconciler is seeded with the stored conversation on
// first use.
func (a *API) genStateFor(tmpl *models.Template) (*genState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if st, ok := a.gens[tmpl.ID]; ok {
		return st, nil
	}

	existing, err := a.messages.ListByTemplateID(tmpl.ID)
	if err != nil {
		return nil, err
	}
	st := &genState{
		session: generation.NewSession(tmpl, a.templates, a.versions, a.registry),
		chat:    generation.NewReconciler(a.messages, existing),
	}
	a.gens[tmpl.ID] = st
	return st, nil
}

// lookupGenState returns a template's generation state if one exists,
// without creating it.
func (a *API) lookupGenState(templateID uuid.UUID) (*genState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.gens[templateID]
	return st, ok
}

// dropGenState discards a template's in-memory generation state, used
// after template deletion.
func (a *API) dropGenState(templateID uuid.UUID) {
	a.mu.Lock()
	delete(a.gens, templateID)
	a.mu.Unlock()
}

// --- JSON plumbing ---

// maxJSONBody caps request bodies for the JSON endpoints (4 MB covers
// the largest expected payload, a full template update).
const maxJSONBody = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the request body into dst, rejecting unknown fields
// and oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Trailing garbage after the object is a malformed request too.
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

// parseUUIDParam parses a chi URL parameter as a UUID, writing a 400 on
// failure.
func parseUUIDParam(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

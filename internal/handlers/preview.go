// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"io"
	"net/http"
)

// maxPreviewBytes caps stored preview documents (1 MB of rendered HTML).
const maxPreviewBytes = 1 << 20

// GetPreview serves the cached rendered preview for a template. A 204
// tells the client to render locally and put the result back.
func (a *API) GetPreview(w http.ResponseWriter, r *http.Request) {
	tmpl := a.fetchOwnedTemplate(w, r)
	if tmpl == nil {
		return
	}

	html, ok := a.previews.Get(r.Context(), tmpl.ID)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

// PutPreview stores a client-rendered preview document. The client owns
// the React-Email renderer, so the server only caches its output.
func (a *API) PutPreview(w http.ResponseWriter, r *http.Request) {
	tmpl := a.fetchOwnedTemplate(w, r)
	if tmpl == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPreviewBytes)
	html, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "preview exceeds 1 MB limit")
		return
	}
	if len(html) == 0 {
		writeError(w, http.StatusBadRequest, "empty preview body")
		return
	}

	a.previews.Set(r.Context(), tmpl.ID, html)
	writeJSON(w, http.StatusOK, map[string]bool{"cached": true})
}

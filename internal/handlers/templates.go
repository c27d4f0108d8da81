// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mailsmith/internal/middleware"
	"mailsmith/internal/models"
	"mailsmith/internal/validate"
)

const (
	maxNameLen    = 200
	maxSubjectLen = 500
)

// fetchOwnedTemplate loads the template in the URL and verifies the
// caller's organization owns it. A nil return means the response has
// already been written.
func (a *API) fetchOwnedTemplate(w http.ResponseWriter, r *http.Request) *models.Template {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return nil
	}
	sess := middleware.SessionFromCtx(r.Context())

	tmpl, err := a.templates.FindByID(id)
	if err != nil {
		slog.Error("template lookup failed", "template_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if tmpl == nil || tmpl.OrgID != sess.OrgID {
		writeError(w, http.StatusNotFound, "template not found")
		return nil
	}
	return tmpl
}

// ListTemplates returns all templates owned by the caller's organization.
func (a *API) ListTemplates(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	list, err := a.templates.ListByOrg(sess.OrgID)
	if err != nil {
		slog.Error("template list failed", "org_id", sess.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

type createTemplateRequest struct {
	Name string `json:"name"`
}

// CreateTemplate creates an empty draft. Code arrives later through the
// generation stream.
func (a *API) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req createTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > maxNameLen {
		writeError(w, http.StatusBadRequest, "name is required and must be at most 200 characters")
		return
	}

	tmpl, err := a.templates.Create(&models.Template{
		OrgID:     sess.OrgID,
		Name:      req.Name,
		StyleType: models.StyleTypeMinimal,
		Status:    models.TemplateStatusDraft,
		CreatedBy: sess.UserID,
	})
	if err != nil {
		slog.Error("template create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

// GetTemplate returns one template.
func (a *API) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl := a.fetchOwnedTemplate(w, r)
	if tmpl == nil {
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

type updateTemplateRequest struct {
	Name             *string            `json:"name"`
	Subject          *string            `json:"subject"`
	PreviewText      *string            `json:"preview_text"`
	ReactEmailCode   *string            `json:"react_email_code"`
	StyleType        *string            `json:"style_type"`
	StyleDefinitions *map[string]string `json:"style_definitions"`
	Status           *string            `json:"status"`
}

// UpdateTemplate applies a manual edit. A code change is validated and
// snapshotted as a new version before the row is updated; the cached
// preview is always invalidated.
func (a *API) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl := a.fetchOwnedTemplate(w, r)
	if tmpl == nil {
		return
	}
	sess := middleware.SessionFromCtx(r.Context())

	var req updateTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > maxNameLen {
			writeError(w, http.StatusBadRequest, "name must be 1-200 characters")
			return
		}
		tmpl.Name = name
	}
	if req.Subject != nil {
		if len(*req.Subject) > maxSubjectLen {
			writeError(w, http.StatusBadRequest, "subject too long")
			return
		}
		tmpl.Subject = *req.Subject
	}
	if req.PreviewText != nil {
		tmpl.PreviewText = *req.PreviewText
	}
	if req.StyleType != nil {
		tmpl.StyleType = models.ParseStyleType(*req.StyleType)
	}
	if req.StyleDefinitions != nil {
		tmpl.StyleDefinitions = *req.StyleDefinitions
	}
	if req.Status != nil {
		switch models.TemplateStatus(*req.Status) {
		case models.TemplateStatusDraft, models.TemplateStatusActive:
			tmpl.Status = models.TemplateStatus(*req.Status)
		default:
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}

	codeChanged := req.ReactEmailCode != nil && *req.ReactEmailCode != tmpl.ReactEmailCode
	if codeChanged {
		result := validate.ReactEmailCode(*req.ReactEmailCode)
		if !result.Valid {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      "validation failed",
				"validation": result,
			})
			return
		}
		tmpl.ReactEmailCode = *req.ReactEmailCode
	}

	if err := a.templates.Update(tmpl); err != nil {
		slog.Error("template update failed", "template_id", tmpl.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if codeChanged {
		version, err := a.versions.Create(&models.TemplateVersion{
			TemplateID:  tmpl.ID,
			Subject:     tmpl.Subject,
			PreviewText: tmpl.PreviewText,
			Code:        tmpl.ReactEmailCode,
			ChangeNote:  "Manual edit",
			CreatedBy:   sess.UserID,
		})
		if err != nil {
			slog.Error("version snapshot failed", "template_id", tmpl.ID, "error", err)
		} else if err := a.templates.SetCurrentVersion(tmpl.ID, version.ID); err != nil {
			slog.Error("set current version failed", "template_id", tmpl.ID, "error", err)
		} else {
			tmpl.CurrentVersion = &version.ID
		}
	}

	a.previews.Invalidate(r.Context(), tmpl.ID)
	writeJSON(w, http.StatusOK, tmpl)
}

// DeleteTemplate removes a template with its versions and messages, and
// discards any in-memory generation state.
func (a *API) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl := a.fetchOwnedTemplate(w, r)
	if tmpl == nil {
		return
	}

	if st, ok := a.lookupGenState(tmpl.ID); ok {
		st.session.CancelGeneration()
	}
	if err := a.templates.Delete(tmpl.ID); err != nil {
		slog.Error("template delete failed", "template_id", tmpl.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.dropGenState(tmpl.ID)
	a.previews.Invalidate(r.Context(), tmpl.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ListVersions returns a template's version history, newest first.
func (a *API) ListVersions(w http.ResponseWriter, r *http.Request) {
	tmpl := a.fetchOwnedTemplate(w, r)
	if tmpl == nil {
		return
	}

	versions, err := a.versions.ListByTemplateID(tmpl.ID)
	if err != nil {
		slog.Error("version list failed", "template_id", tmpl.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// RestoreVersion copies a snapshot's code back onto the template. The
// restore itself is recorded as a fresh version so history stays linear.
func (a *API) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	tmpl := a.fetchOwnedTemplate(w, r)
	if tmpl == nil {
		return
	}
	sess := middleware.SessionFromCtx(r.Context())

	vid, ok := parseUUIDParam(w, chi.URLParam(r, "vid"))
	if !ok {
		return
	}
	snapshot, err := a.versions.FindByID(vid)
	if err != nil {
		slog.Error("version lookup failed", "version_id", vid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if snapshot == nil || snapshot.TemplateID != tmpl.ID {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}

	tmpl.Subject = snapshot.Subject
	tmpl.PreviewText = snapshot.PreviewText
	tmpl.ReactEmailCode = snapshot.Code
	if err := a.templates.Update(tmpl); err != nil {
		slog.Error("template restore failed", "template_id", tmpl.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	version, err := a.versions.Create(&models.TemplateVersion{
		TemplateID:  tmpl.ID,
		Subject:     snapshot.Subject,
		PreviewText: snapshot.PreviewText,
		Code:        snapshot.Code,
		ChangeNote:  fmt.Sprintf("Restored version %d", snapshot.Version),
		CreatedBy:   sess.UserID,
	})
	if err != nil {
		slog.Error("restore snapshot failed", "template_id", tmpl.ID, "error", err)
	} else if err := a.templates.SetCurrentVersion(tmpl.ID, version.ID); err != nil {
		slog.Error("set current version failed", "template_id", tmpl.ID, "error", err)
	} else {
		tmpl.CurrentVersion = &version.ID
	}

	a.previews.Invalidate(r.Context(), tmpl.ID)
	writeJSON(w, http.StatusOK, tmpl)
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"mailsmith/internal/middleware"
	"mailsmith/internal/models"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// GetBrandKit returns the organization's brand kit, or an empty one if
// none has been saved yet.
func (a *API) GetBrandKit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	kit, err := a.brandKits.FindByOrg(sess.OrgID)
	if err != nil {
		slog.Error("brand kit lookup failed", "org_id", sess.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if kit == nil {
		kit = &models.BrandKit{OrgID: sess.OrgID}
	}
	writeJSON(w, http.StatusOK, kit)
}

type brandKitRequest struct {
	PrimaryColor   string  `json:"primary_color"`
	SecondaryColor string  `json:"secondary_color"`
	AccentColor    string  `json:"accent_color"`
	FontFamily     string  `json:"font_family"`
	Tone           string  `json:"tone"`
	LogoURL        *string `json:"logo_url"`
}

// PutBrandKit creates or replaces the organization's brand kit.
func (a *API) PutBrandKit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req brandKitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	for _, c := range []string{req.PrimaryColor, req.SecondaryColor, req.AccentColor} {
		if c != "" && !hexColor.MatchString(c) {
			writeError(w, http.StatusBadRequest, "colors must be hex values like #1a2b3c")
			return
		}
	}
	if len(req.Tone) > 500 || len(req.FontFamily) > 200 {
		writeError(w, http.StatusBadRequest, "field too long")
		return
	}
	if req.LogoURL != nil {
		u := strings.TrimSpace(*req.LogoURL)
		if u == "" {
			req.LogoURL = nil
		} else {
			req.LogoURL = &u
		}
	}

	kit, err := a.brandKits.Upsert(&models.BrandKit{
		OrgID:          sess.OrgID,
		PrimaryColor:   req.PrimaryColor,
		SecondaryColor: req.SecondaryColor,
		AccentColor:    req.AccentColor,
		FontFamily:     req.FontFamily,
		Tone:           req.Tone,
		LogoURL:        req.LogoURL,
	})
	if err != nil {
		slog.Error("brand kit upsert failed", "org_id", sess.OrgID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, kit)
}

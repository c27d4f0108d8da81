// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mailsmith/internal/middleware"
	"mailsmith/internal/models"
	"mailsmith/internal/store"
)

// Users groups the admin-only user management handlers.
type Users struct {
	userStore *store.UserStore
}

// NewUsers creates the user management handler group.
func NewUsers(userStore *store.UserStore) *Users {
	return &Users{userStore: userStore}
}

// List returns the users in the caller's organization.
func (u *Users) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	all, err := u.userStore.List()
	if err != nil {
		slog.Error("user list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	users := make([]models.User, 0, len(all))
	for _, usr := range all {
		if usr.OrgID == sess.OrgID {
			users = append(users, usr)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Create adds a user to the caller's organization.
func (u *Users) Create(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 12 {
		writeError(w, http.StatusBadRequest, "password must be at least 12 characters")
		return
	}
	role := models.Role(req.Role)
	if role != models.RoleAdmin && role != models.RoleEditor {
		writeError(w, http.StatusBadRequest, "role must be admin or editor")
		return
	}

	existing, err := u.userStore.FindByEmail(req.Email)
	if err != nil {
		slog.Error("user lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "a user with that email already exists")
		return
	}

	user, err := u.userStore.Create(sess.OrgID, req.Email, req.Password, req.DisplayName, role)
	if err != nil {
		slog.Error("user create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// fetchOrgUser loads the user in the URL and verifies org membership.
func (u *Users) fetchOrgUser(w http.ResponseWriter, r *http.Request) *models.User {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return nil
	}
	sess := middleware.SessionFromCtx(r.Context())

	user, err := u.userStore.FindByID(id)
	if err != nil {
		slog.Error("user lookup failed", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if user == nil || user.OrgID != sess.OrgID {
		writeError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return user
}

// ResetTwoFA clears a user's TOTP enrollment so they re-enroll on next
// login.
func (u *Users) ResetTwoFA(w http.ResponseWriter, r *http.Request) {
	user := u.fetchOrgUser(w, r)
	if user == nil {
		return
	}

	if err := u.userStore.ResetTOTP(user.ID); err != nil {
		slog.Error("2fa reset failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

// Delete removes a user. Admins cannot delete themselves.
func (u *Users) Delete(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	user := u.fetchOrgUser(w, r)
	if user == nil {
		return
	}
	if user.ID == sess.UserID {
		writeError(w, http.StatusBadRequest, "you cannot delete your own account")
		return
	}

	if err := u.userStore.Delete(user.ID); err != nil {
		slog.Error("user delete failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mailsmith/internal/models"
)

func TestCreateAndListMessages(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Chatty")

	body := `{"content":"Please make the header bolder"}`
	r := httptest.NewRequest("POST", "/api/templates/"+tmpl.ID.String()+"/messages", strings.NewReader(body))
	r = withChiURLParam(r, "id", tmpl.ID.String())
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()

	env.API.CreateMessage(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status: got %d, body %s", w.Code, w.Body.String())
	}

	r = httptest.NewRequest("GET", "/api/templates/"+tmpl.ID.String()+"/messages", nil)
	r = withChiURLParam(r, "id", tmpl.ID.String())
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w = httptest.NewRecorder()

	env.API.ListMessages(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var resp struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 {
		t.Fatalf("messages: got %d, want 1", len(resp.Messages))
	}
	if resp.Messages[0].Content != "Please make the header bolder" {
		t.Errorf("content: got %q", resp.Messages[0].Content)
	}
	if resp.Messages[0].Role != models.ChatRoleUser {
		t.Errorf("role: got %q", resp.Messages[0].Role)
	}
}

func TestListMessagesRendersAssistantMarkdown(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Rendered Chat")

	if _, err := env.ChatStore.Create(&models.ChatMessage{
		TemplateID: tmpl.ID,
		Role:       models.ChatRoleAssistant,
		Content:    "Here is **bold** text",
	}); err != nil {
		t.Fatalf("create message: %v", err)
	}

	r := httptest.NewRequest("GET", "/api/templates/"+tmpl.ID.String()+"/messages", nil)
	r = withChiURLParam(r, "id", tmpl.ID.String())
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()

	env.API.ListMessages(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<strong>bold</strong>") {
		t.Errorf("assistant markdown not rendered to HTML:\n%s", w.Body.String())
	}
}

func TestUpdateMessage(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Editable Chat")

	msg, err := env.ChatStore.Create(&models.ChatMessage{
		TemplateID: tmpl.ID,
		Role:       models.ChatRoleUser,
		Content:    "typo in promt",
	})
	if err != nil {
		t.Fatalf("create message: %v", err)
	}

	body := `{"content":"typo in prompt, fixed"}`
	r := httptest.NewRequest("PUT", "/api/messages/"+msg.ID.String(), strings.NewReader(body))
	r = withChiURLParam(r, "id", msg.ID.String())
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()

	env.API.UpdateMessage(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	reloaded, err := env.ChatStore.FindByID(msg.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Content != "typo in prompt, fixed" {
		t.Errorf("content: got %q", reloaded.Content)
	}
}

func TestUpdateMessageCrossOrgIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Foreign Chat")

	msg, err := env.ChatStore.Create(&models.ChatMessage{
		TemplateID: tmpl.ID,
		Role:       models.ChatRoleUser,
		Content:    "mine",
	})
	if err != nil {
		t.Fatalf("create message: %v", err)
	}

	otherOrg := seedOrg(t, env.DB)
	other := seedUser(t, env.UserStore, otherOrg, models.RoleEditor)

	body := `{"content":"hijacked"}`
	r := httptest.NewRequest("PUT", "/api/messages/"+msg.ID.String(), strings.NewReader(body))
	r = withChiURLParam(r, "id", msg.ID.String())
	r = r.WithContext(ctxWithSession(r.Context(), sessionFor(other, otherOrg)))
	w := httptest.NewRecorder()

	env.API.UpdateMessage(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

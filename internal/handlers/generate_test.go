// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"mailsmith/internal/models"
)

// generationResponse builds the JSON document the mock provider streams
// back for a generation request.
func generationResponse(t *testing.T) string {
	t.Helper()

	payload, err := json.Marshal(map[string]string{
		"subject":              "Black Friday Sale",
		"previewText":          "Doorbusters inside",
		"reactEmailCode":       testEmailCode,
		"styleType":            "branded",
		"styleDefinitionsJson": `{"primaryColor":"#111111"}`,
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return string(payload)
}

func (env *testEnv) useMockResponse(t *testing.T, response string) {
	t.Helper()
	env.AIRegistry.Register("test", &mockAIProvider{name: "test", response: response})
}

func TestGenerateStreamsAndCommits(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Black Friday")
	env.useMockResponse(t, generationResponse(t))

	body, _ := json.Marshal(map[string]any{
		"template_id": tmpl.ID,
		"prompt":      "Create a Black Friday sale template",
	})
	r := httptest.NewRequest("POST", "/api/template/generate", strings.NewReader(string(body)))
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()

	env.API.Generate(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type: got %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"done":true`) {
		t.Errorf("no terminal done event in stream:\n%s", w.Body.String())
	}

	// The committed template is active with the generated fields.
	committed, err := env.TemplateStore.FindByID(tmpl.ID)
	if err != nil || committed == nil {
		t.Fatalf("reload template: %v", err)
	}
	if committed.Status != models.TemplateStatusActive {
		t.Errorf("status: got %q, want ACTIVE", committed.Status)
	}
	if committed.Subject != "Black Friday Sale" {
		t.Errorf("subject: got %q", committed.Subject)
	}
	if committed.StyleType != models.StyleTypeBranded {
		t.Errorf("style type: got %q", committed.StyleType)
	}
	if committed.ReactEmailCode != testEmailCode {
		t.Errorf("code not committed")
	}

	// One version snapshot, attributed to the prompt.
	versions, err := env.VersionStore.ListByTemplateID(tmpl.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("versions: got %d, want 1", len(versions))
	}
	if !strings.HasPrefix(versions[0].ChangeNote, "Generated: ") {
		t.Errorf("change note: got %q", versions[0].ChangeNote)
	}

	// The chat pair was persisted: the user prompt and the assistant
	// message carrying the generation summary.
	msgs, err := env.ChatStore.ListByTemplateID(tmpl.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages: got %d, want 2", len(msgs))
	}
	if msgs[0].Role != models.ChatRoleUser || msgs[1].Role != models.ChatRoleAssistant {
		t.Errorf("roles: got %q, %q", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].GenerationResult == nil {
		t.Fatalf("assistant message has no generation summary")
	}
	if msgs[1].GenerationResult.Subject != "Black Friday Sale" {
		t.Errorf("summary subject: got %q", msgs[1].GenerationResult.Subject)
	}
}

func TestGenerateRejectsTemplateWithCode(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Already Done")
	tmpl.ReactEmailCode = testEmailCode
	if err := env.TemplateStore.Update(tmpl); err != nil {
		t.Fatalf("update: %v", err)
	}
	env.useMockResponse(t, generationResponse(t))

	body, _ := json.Marshal(map[string]any{
		"template_id": tmpl.ID,
		"prompt":      "Try again",
	})
	r := httptest.NewRequest("POST", "/api/template/generate", strings.NewReader(string(body)))
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()

	env.API.Generate(w, r)

	if w.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409, body %s", w.Code, w.Body.String())
	}
}

func TestRegenerateRequiresExistingCode(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Empty")
	env.useMockResponse(t, generationResponse(t))

	body, _ := json.Marshal(map[string]any{
		"template_id": tmpl.ID,
		"prompt":      "Make it pop",
	})
	r := httptest.NewRequest("POST", "/api/template/regenerate", strings.NewReader(string(body)))
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()

	env.API.Regenerate(w, r)

	if w.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409, body %s", w.Code, w.Body.String())
	}
}

func TestGenerateValidationFailureKeepsDraft(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Rejected")

	// Response whose code has no default export; validation must reject
	// it and the template must stay a draft.
	payload, _ := json.Marshal(map[string]string{
		"subject":        "Broken",
		"previewText":    "Broken",
		"reactEmailCode": "const x = 1;",
		"styleType":      "minimal",
	})
	env.useMockResponse(t, string(payload))

	body, _ := json.Marshal(map[string]any{
		"template_id": tmpl.ID,
		"prompt":      "Create something broken",
	})
	r := httptest.NewRequest("POST", "/api/template/generate", strings.NewReader(string(body)))
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()

	env.API.Generate(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"validation"`) {
		t.Errorf("no validation event in stream:\n%s", w.Body.String())
	}

	untouched, err := env.TemplateStore.FindByID(tmpl.ID)
	if err != nil || untouched == nil {
		t.Fatalf("reload: %v", err)
	}
	if untouched.Status != models.TemplateStatusDraft {
		t.Errorf("status: got %q, want DRAFT", untouched.Status)
	}
	if untouched.ReactEmailCode != "" {
		t.Errorf("rejected code was committed")
	}
}

func TestGenerateUnknownTemplate(t *testing.T) {
	env := newTestEnv(t)

	body := `{"template_id":"6f1e1a6e-0000-4000-8000-000000000000","prompt":"hello"}`
	r := httptest.NewRequest("POST", "/api/template/generate", strings.NewReader(body))
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()

	env.API.Generate(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestCancelWithoutActiveGeneration(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Quiet")

	body, _ := json.Marshal(map[string]any{"template_id": tmpl.ID})
	r := httptest.NewRequest("POST", "/api/template/cancel", strings.NewReader(string(body)))
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()

	env.API.CancelGeneration(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"cancelled":false`) {
		t.Errorf("body: got %s, want cancelled:false", w.Body.String())
	}
}

func TestRenderReadyClearsFlag(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.seedTemplate(t, "Rendered")
	tmpl.ReactEmailCode = testEmailCode
	if err := env.TemplateStore.Update(tmpl); err != nil {
		t.Fatalf("update: %v", err)
	}
	env.useMockResponse(t, generationResponse(t))

	// Run a regenerate to set the waiting-for-render flag.
	body, _ := json.Marshal(map[string]any{
		"template_id": tmpl.ID,
		"prompt":      "Refresh the layout",
	})
	r := httptest.NewRequest("POST", "/api/template/regenerate", strings.NewReader(string(body)))
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w := httptest.NewRecorder()
	env.API.Regenerate(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("regenerate status: got %d, body %s", w.Code, w.Body.String())
	}

	st, ok := env.API.lookupGenState(tmpl.ID)
	if !ok {
		t.Fatalf("no generation state after regenerate")
	}
	if !st.session.WaitingForRender() {
		t.Fatalf("waiting-for-render not set after regenerate")
	}

	readyBody, _ := json.Marshal(map[string]any{"template_id": tmpl.ID})
	r = httptest.NewRequest("POST", "/api/template/render-ready", strings.NewReader(string(readyBody)))
	r = r.WithContext(ctxWithSession(r.Context(), env.session()))
	w = httptest.NewRecorder()
	env.API.RenderReady(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("render-ready status: got %d", w.Code)
	}
	if st.session.WaitingForRender() {
		t.Errorf("waiting-for-render still set after render-ready")
	}
}

// A cancel request can race the send that records the optimistic pair;
// the ID accessors must be safe under the race detector.
func TestGenStateMessageIDPairConcurrentAccess(t *testing.T) {
	st := &genState{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.setMsgIDs(uuid.New(), uuid.New())
		}()
		go func() {
			defer wg.Done()
			st.msgIDs()
		}()
	}
	wg.Wait()

	userID, assistantID := st.msgIDs()
	if userID == uuid.Nil || assistantID == uuid.Nil {
		t.Error("message ID pair not recorded")
	}
	if userID == assistantID {
		t.Error("user and assistant IDs collide")
	}
}

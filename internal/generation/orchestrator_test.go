// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"mailsmith/internal/ai"
	"mailsmith/internal/models"
)

// fakeSaver records template updates in memory.
type fakeSaver struct {
	mu             sync.Mutex
	updates        []models.Template
	updateErr      error
	currentVersion uuid.UUID
}

func (f *fakeSaver) Update(t *models.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, *t)
	return nil
}

func (f *fakeSaver) SetCurrentVersion(templateID, versionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentVersion = versionID
	return nil
}

func (f *fakeSaver) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// fakeVersions records version snapshots.
type fakeVersions struct {
	mu       sync.Mutex
	created  []models.TemplateVersion
	creatErr error
}

func (f *fakeVersions) Create(v *models.TemplateVersion) (*models.TemplateVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creatErr != nil {
		return nil, f.creatErr
	}
	saved := *v
	saved.ID = uuid.New()
	saved.Version = len(f.created) + 1
	f.created = append(f.created, saved)
	return &saved, nil
}

const validCode = `import { Html, Body, Text } from "@react-email/components";
export default function E() { return (<Html><Body><Text>hi</Text></Body></Html>); }`

// mustJSONString encodes s as a JSON string literal.
func mustJSONString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// generationJSON builds the model's full response payload.
func generationJSON(code string) string {
	return `{"subject":"Black Friday Sale","previewText":"Doorbusters inside",` +
		`"reactEmailCode":` + mustJSONString(code) +
		`,"styleType":"branded","styleDefinitionsJson":"{\"primaryColor\":\"#000\"}"}`
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event channel never closed")
		}
	}
}

func newDraftTemplate() *models.Template {
	return &models.Template{
		ID:     uuid.New(),
		OrgID:  uuid.New(),
		Name:   "Draft",
		Status: models.TemplateStatusDraft,
	}
}

func TestSessionGenerateCommitsAndActivates(t *testing.T) {
	saver := &fakeSaver{}
	versions := &fakeVersions{}
	streamer := &scriptedStreamer{chunks: textChunks(generationJSON(validCode))}
	tmpl := newDraftTemplate()
	userID := uuid.New()

	s := NewSession(tmpl, saver, versions, streamer)
	events, err := s.Generate(context.Background(), Request{
		Prompt: "Create a Black Friday sale template", UserID: userID,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	evs := drain(t, events)
	last := evs[len(evs)-1]
	if !last.Done {
		t.Fatalf("last event not terminal: %+v", last)
	}
	if last.Phase != PhaseComplete {
		t.Errorf("terminal phase: got %v", last.Phase)
	}

	if saver.updateCount() != 1 {
		t.Fatalf("expected 1 template update, got %d", saver.updateCount())
	}
	saved := saver.updates[0]
	if saved.Status != models.TemplateStatusActive {
		t.Errorf("status: got %q, want ACTIVE", saved.Status)
	}
	if saved.Subject != "Black Friday Sale" || saved.ReactEmailCode != validCode {
		t.Errorf("saved fields wrong: %+v", saved)
	}
	if saved.StyleType != models.StyleTypeBranded {
		t.Errorf("style type: got %q", saved.StyleType)
	}
	if saved.StyleDefinitions["primaryColor"] != "#000" {
		t.Errorf("style definitions: %v", saved.StyleDefinitions)
	}

	if len(versions.created) != 1 {
		t.Fatalf("expected 1 version snapshot, got %d", len(versions.created))
	}
	v := versions.created[0]
	if v.CreatedBy != userID || !strings.HasPrefix(v.ChangeNote, "Generated: ") {
		t.Errorf("version attribution: %+v", v)
	}
	if tmpl.CurrentVersion == nil || *tmpl.CurrentVersion != saver.currentVersion {
		t.Error("current-version pointer not wired up")
	}
	if s.Streaming() {
		t.Error("session still streaming after completion")
	}
}

func TestSessionGenerateRejectsExistingCode(t *testing.T) {
	tmpl := newDraftTemplate()
	tmpl.ReactEmailCode = "export default function E() {}"

	s := NewSession(tmpl, &fakeSaver{}, &fakeVersions{}, &scriptedStreamer{})
	if _, err := s.Generate(context.Background(), Request{Prompt: "again"}); !errors.Is(err, ErrHasCode) {
		t.Errorf("got %v, want ErrHasCode", err)
	}
}

func TestSessionRegenerateRequiresCode(t *testing.T) {
	s := NewSession(newDraftTemplate(), &fakeSaver{}, &fakeVersions{}, &scriptedStreamer{})
	if _, err := s.Regenerate(context.Background(), Request{Prompt: "tweak"}); !errors.Is(err, ErrNoCode) {
		t.Errorf("got %v, want ErrNoCode", err)
	}
}

func TestSessionRegenerateSetsWaitingForRender(t *testing.T) {
	saver := &fakeSaver{}
	streamer := &scriptedStreamer{chunks: textChunks(generationJSON(validCode))}
	tmpl := newDraftTemplate()
	tmpl.ReactEmailCode = "export default function Old() {}"
	tmpl.Status = models.TemplateStatusActive

	s := NewSession(tmpl, saver, &fakeVersions{}, streamer)
	events, err := s.Regenerate(context.Background(), Request{Prompt: "make it red"})
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if !s.WaitingForRender() {
		t.Error("waiting-for-render not raised")
	}

	drain(t, events)

	// Data saved, but the render wait holds until the preview renderer
	// reports in.
	if !s.WaitingForRender() {
		t.Error("waiting-for-render dropped before RenderReady")
	}
	s.RenderReady()
	if s.WaitingForRender() {
		t.Error("RenderReady did not clear the flag")
	}

	fv := s.versions.(*fakeVersions)
	if len(fv.created) != 1 || !strings.HasPrefix(fv.created[0].ChangeNote, "Regenerated: ") {
		t.Errorf("regeneration snapshot missing or misattributed: %+v", fv.created)
	}
}

func TestSessionValidationFailureLeavesTemplateUntouched(t *testing.T) {
	saver := &fakeSaver{}
	// Missing default export and a stray script tag: rejected.
	bad := `<script>alert(1)</script>`
	streamer := &scriptedStreamer{chunks: textChunks(generationJSON(bad))}
	tmpl := newDraftTemplate()

	s := NewSession(tmpl, saver, &fakeVersions{}, streamer)
	events, err := s.Generate(context.Background(), Request{Prompt: "hack"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	evs := drain(t, events)
	last := evs[len(evs)-1]
	if last.Validation == nil {
		t.Fatalf("expected validation rejection, got %+v", last)
	}
	if last.Validation.Code != bad {
		t.Error("rejected code not echoed verbatim")
	}
	if len(last.Validation.Errors) == 0 {
		t.Error("rejection carried no error strings")
	}

	if saver.updateCount() != 0 {
		t.Error("template was updated despite validation failure")
	}
	if tmpl.Status != models.TemplateStatusDraft {
		t.Errorf("status changed to %q on rejection", tmpl.Status)
	}
	if s.ValidationFailure() == nil {
		t.Error("session does not expose the validation failure")
	}
	if s.Phase() != PhaseIdle {
		t.Errorf("phase after rejection: got %v, want idle", s.Phase())
	}
}

func TestSessionStreamErrorResetsToIdle(t *testing.T) {
	saver := &fakeSaver{}
	streamer := &scriptedStreamer{chunks: []ai.StreamChunk{
		{Text: `{"subject":"par`},
		{Err: errors.New("connection reset")},
	}}
	tmpl := newDraftTemplate()

	s := NewSession(tmpl, saver, &fakeVersions{}, streamer)
	events, err := s.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	evs := drain(t, events)
	last := evs[len(evs)-1]
	if last.Err == "" {
		t.Fatalf("expected error event, got %+v", last)
	}
	if saver.updateCount() != 0 {
		t.Error("partial progress was committed after stream error")
	}
	if s.Phase() != PhaseIdle {
		t.Errorf("phase: got %v, want idle", s.Phase())
	}
	if s.Err() == nil {
		t.Error("session does not expose the stream error")
	}
}

func TestSessionPersistenceFailureKeepsLocalContent(t *testing.T) {
	saver := &fakeSaver{updateErr: errors.New("db down")}
	streamer := &scriptedStreamer{chunks: textChunks(generationJSON(validCode))}
	tmpl := newDraftTemplate()

	s := NewSession(tmpl, saver, &fakeVersions{}, streamer)
	events, err := s.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	evs := drain(t, events)
	last := evs[len(evs)-1]
	if last.Err == "" {
		t.Fatalf("expected persistence error event, got %+v", last)
	}
	// The generated content stays visible locally.
	if s.Progress().Code == "" && last.Progress.Code == "" {
		t.Error("generated content lost after persistence failure")
	}
}

func TestSessionCancelClosesEventsWithoutTerminal(t *testing.T) {
	streamer := &scriptedStreamer{
		chunks: textChunks(`{"subject":"a"`, `,"previewText":"b"}`),
		step:   make(chan struct{}),
	}
	tmpl := newDraftTemplate()
	saver := &fakeSaver{}

	s := NewSession(tmpl, saver, &fakeVersions{}, streamer)
	events, err := s.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	streamer.step <- struct{}{} // one chunk through
	s.CancelGeneration()
	close(streamer.step)

	evs := drain(t, events)
	for _, ev := range evs {
		if ev.Done || ev.Err != "" || ev.Validation != nil {
			t.Errorf("terminal event after cancel: %+v", ev)
		}
	}
	if s.Phase() != PhaseIdle {
		t.Errorf("phase after cancel: got %v, want idle", s.Phase())
	}
	if s.Streaming() {
		t.Error("still streaming after cancel")
	}
	if saver.updateCount() != 0 {
		t.Error("cancelled run committed state")
	}
}

func TestSessionCallerDisconnectClosesEvents(t *testing.T) {
	streamer := &scriptedStreamer{
		chunks: textChunks(`{"subject":"a"`, `,"previewText":"b"}`),
		step:   make(chan struct{}),
	}
	tmpl := newDraftTemplate()
	saver := &fakeSaver{}

	s := NewSession(tmpl, saver, &fakeVersions{}, streamer)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := s.Generate(ctx, Request{Prompt: "welcome series opener"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	streamer.step <- struct{}{} // one chunk through
	cancel()

	// The channel must close without a terminal event, like a cancel.
	evs := drain(t, events)
	for _, ev := range evs {
		if ev.Done || ev.Err != "" || ev.Validation != nil {
			t.Errorf("terminal event after disconnect: %+v", ev)
		}
	}
	if s.Streaming() {
		t.Error("still streaming after disconnect")
	}
	if s.Phase() != PhaseIdle {
		t.Errorf("phase after disconnect: got %v, want idle", s.Phase())
	}
	if saver.updateCount() != 0 {
		t.Error("disconnected run committed state")
	}
}

func TestSessionTemplateReturnsCopy(t *testing.T) {
	s := NewSession(newDraftTemplate(), &fakeSaver{}, &fakeVersions{}, &scriptedStreamer{})

	got := s.Template()
	got.Subject = "mutated by caller"

	if s.Template().Subject != "" {
		t.Error("caller mutation leaked into session state")
	}
}

func TestSessionMalformedStyleDefinitionsDegradeToEmpty(t *testing.T) {
	saver := &fakeSaver{}
	payload := `{"subject":"S","previewText":"P","reactEmailCode":` +
		mustJSONString(validCode) +
		`,"styleType":"minimal","styleDefinitionsJson":"{broken"}`
	streamer := &scriptedStreamer{chunks: textChunks(payload)}

	s := NewSession(newDraftTemplate(), saver, &fakeVersions{}, streamer)
	events, err := s.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	drain(t, events)

	if saver.updateCount() != 1 {
		t.Fatal("malformed style metadata must not block the commit")
	}
	if defs := saver.updates[0].StyleDefinitions; defs == nil || len(defs) != 0 {
		t.Errorf("style definitions: got %v, want empty map", defs)
	}
}

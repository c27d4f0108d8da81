// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mailsmith/internal/models"
	"mailsmith/internal/validate"
)

// systemPrompt instructs the model to emit the template as one JSON
// object whose fields the stream client extracts incrementally.
const systemPrompt = `You are an expert email designer producing React-Email templates.
Respond with a single JSON object and nothing else, using exactly these keys:
"subject" (string), "previewText" (string), "reactEmailCode" (string, a complete
React component using @react-email/components with a default export),
"styleType" (one of "minimal", "branded", "rich") and "styleDefinitionsJson"
(a JSON-encoded string map of style tokens). Write the keys in that order.
Inline all styles; email clients do not load external CSS.`

// ErrHasCode is returned by Generate when the template already carries
// generated code and Regenerate should be used instead.
var ErrHasCode = errors.New("template already has generated code")

// ErrNoCode is the converse: Regenerate on a template that was never
// generated.
var ErrNoCode = errors.New("template has no generated code yet")

// TemplateSaver persists template mutations. Satisfied by
// *store.TemplateStore.
type TemplateSaver interface {
	Update(t *models.Template) error
	SetCurrentVersion(templateID, versionID uuid.UUID) error
}

// VersionCreator snapshots template versions. Satisfied by
// *store.VersionStore.
type VersionCreator interface {
	Create(v *models.TemplateVersion) (*models.TemplateVersion, error)
}

// Request is one generation or regeneration ask.
type Request struct {
	Prompt    string
	ImageURLs []string
	// BrandKit is non-nil when the caller asked for brand-guided output.
	BrandKit *models.BrandKit
	// UserID attributes the version snapshot.
	UserID uuid.UUID
}

// Event is one update on a generation's event channel. Progress events
// flow while the stream runs; exactly one terminal event (Done, Validation
// or Err set) ends the channel unless the run is cancelled, in which case
// the channel just closes.
type Event struct {
	Phase      Phase            `json:"phase"`
	Progress   Progress         `json:"progress"`
	Validation *validate.Result `json:"validation,omitempty"`
	Err        string           `json:"error,omitempty"`
	Done       bool             `json:"done"`
}

// Session owns the generation state for one template: the current
// template row, streaming progress, phase, and the single active stream
// slot. One session serves one template at a time; handlers hold one per
// authenticated SSE request chain.
type Session struct {
	templates TemplateSaver
	versions  VersionCreator
	client    *StreamClient
	tracker   *Tracker

	mu               sync.Mutex
	template         *models.Template
	progress         Progress
	streaming        bool
	waitingForRender bool
	validation       *validate.Result
	lastErr          error
	active           *run
}

// run is the event plumbing for one generation attempt. The mutex keeps
// late emits from racing a close when a run is cancelled mid-stream.
type run struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

// emit delivers an event without ever blocking the stream; a slow
// consumer loses intermediate progress, never the terminal event.
func (r *run) emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
	}
}

// finish emits a terminal event and closes the channel, exactly once.
func (r *run) finish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	default:
	}
	r.closed = true
	close(r.events)
}

// abort closes the channel without a terminal event (cancellation).
func (r *run) abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.events)
}

// NewSession creates a session around a template row.
func NewSession(tmpl *models.Template, templates TemplateSaver, versions VersionCreator, streamer Streamer) *Session {
	return &Session{
		templates: templates,
		versions:  versions,
		client:    NewStreamClient(streamer),
		tracker:   NewTracker(),
		template:  tmpl,
	}
}

// Generate runs the first generation for a template that has no code yet.
// The returned channel carries progress and one terminal event; the caller
// must drain it.
func (s *Session) Generate(ctx context.Context, req Request) (<-chan Event, error) {
	s.mu.Lock()
	if s.template.HasCode() {
		s.mu.Unlock()
		return nil, ErrHasCode
	}
	s.mu.Unlock()

	return s.start(ctx, req, false)
}

// Regenerate reruns generation for a template that already has code. It
// additionally raises the waiting-for-render flag: the data may be saved
// well before the preview renderer catches up, and dependent UI should
// hold its loading state until RenderReady.
func (s *Session) Regenerate(ctx context.Context, req Request) (<-chan Event, error) {
	s.mu.Lock()
	if !s.template.HasCode() {
		s.mu.Unlock()
		return nil, ErrNoCode
	}
	s.waitingForRender = true
	s.mu.Unlock()

	return s.start(ctx, req, true)
}

// CancelGeneration aborts any in-flight stream and force-resets to idle.
// The aborted run's event channel closes without a terminal event, and no
// state from it is committed.
func (s *Session) CancelGeneration() {
	s.client.Cancel()
	s.tracker.Reset()

	s.mu.Lock()
	s.streaming = false
	s.waitingForRender = false
	s.progress = Progress{}
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if active != nil {
		active.abort()
	}
}

// RenderReady signals that the external preview renderer has caught up
// after a regeneration.
func (s *Session) RenderReady() {
	s.mu.Lock()
	s.waitingForRender = false
	s.mu.Unlock()
}

func (s *Session) start(ctx context.Context, req Request, regen bool) (<-chan Event, error) {
	r := &run{events: make(chan Event, 64)}

	s.mu.Lock()
	if prev := s.active; prev != nil {
		// A new start supersedes the previous run; its stream is cancelled
		// by the client below and its channel must not stay open.
		prev.abort()
	}
	s.active = r
	s.streaming = true
	s.progress = Progress{}
	s.validation = nil
	s.lastErr = nil
	templateID := s.template.ID
	s.mu.Unlock()

	s.tracker.Begin()
	r.emit(Event{Phase: PhaseStarting})

	cb := Callbacks{
		OnProgress: func(p Progress) {
			s.mu.Lock()
			s.progress = p
			s.mu.Unlock()
			s.tracker.Observe(p)
			r.emit(Event{Phase: s.tracker.Phase(), Progress: p})
		},
		OnComplete: func(p Progress) {
			s.finalize(r, p, req, regen)
		},
		OnError: func(err error) {
			slog.Error("generation stream failed",
				"template_id", templateID, "error", err)
			s.tracker.Reset()
			s.mu.Lock()
			s.streaming = false
			s.waitingForRender = false
			s.lastErr = err
			s.active = nil
			s.mu.Unlock()
			r.finish(Event{Phase: PhaseIdle, Err: err.Error()})
		},
		OnAborted: func() {
			// The request context died under the run (client disconnect).
			// Tear it down like a cancel: reset to idle and close the
			// channel without a terminal event.
			slog.Info("generation aborted by caller", "template_id", templateID)
			s.tracker.Reset()
			s.mu.Lock()
			s.streaming = false
			s.waitingForRender = false
			s.progress = Progress{}
			if s.active == r {
				s.active = nil
			}
			s.mu.Unlock()
			r.abort()
		},
	}

	userPrompt := buildUserPrompt(req)
	if err := s.client.Start(ctx, buildSystemPrompt(req.BrandKit), userPrompt, cb); err != nil {
		s.tracker.Reset()
		s.mu.Lock()
		s.streaming = false
		s.waitingForRender = false
		s.active = nil
		s.mu.Unlock()
		r.abort()
		return nil, err
	}
	return r.events, nil
}

// finalize runs after the stream fully completes. Persistence is ordered
// strictly after stream completion so messages and versions are never
// written against a template state that is still changing.
func (s *Session) finalize(r *run, p Progress, req Request, regen bool) {
	s.tracker.Finalize()
	r.emit(Event{Phase: PhaseFinalizing, Progress: p})

	// Validation failure is a typed result, not an error: the rejected
	// code and every message stay visible, the committed template does not
	// move, and the template is not activated.
	result := validate.ReactEmailCode(p.Code)
	if !result.Valid {
		s.tracker.Reset()
		s.mu.Lock()
		s.streaming = false
		s.waitingForRender = false
		s.validation = &result
		s.active = nil
		templateID := s.template.ID
		s.mu.Unlock()

		slog.Warn("generated code rejected by validation",
			"template_id", templateID, "errors", len(result.Errors))
		r.finish(Event{Phase: PhaseIdle, Progress: p, Validation: &result})
		return
	}

	styleDefs, ok := p.StyleDefinitions()
	if !ok {
		s.mu.Lock()
		templateID := s.template.ID
		s.mu.Unlock()
		slog.Warn("style definitions failed to parse, using empty map",
			"template_id", templateID)
	}

	// Mutate the session copy under the lock, then persist from a
	// snapshot so readers never race the store call.
	s.mu.Lock()
	s.template.Subject = p.Subject
	s.template.PreviewText = p.PreviewText
	s.template.ReactEmailCode = p.Code
	s.template.StyleType = models.ParseStyleType(p.StyleType)
	s.template.StyleDefinitions = styleDefs
	if len(p.Code) > 0 {
		s.template.Status = models.TemplateStatusActive
	}
	tmpl := *s.template
	s.mu.Unlock()

	if err := s.templates.Update(&tmpl); err != nil {
		// Persistence failure after a successful generation: the content
		// stays visible locally; local and stored state are allowed to
		// diverge here.
		slog.Error("failed to persist generated template",
			"template_id", tmpl.ID, "error", err)
		s.tracker.Reset()
		s.mu.Lock()
		s.streaming = false
		s.waitingForRender = false
		s.lastErr = err
		s.active = nil
		s.mu.Unlock()
		r.finish(Event{Phase: PhaseIdle, Progress: p, Err: fmt.Sprintf("save failed: %v", err)})
		return
	}

	version, err := s.versions.Create(&models.TemplateVersion{
		TemplateID:  tmpl.ID,
		Subject:     tmpl.Subject,
		PreviewText: tmpl.PreviewText,
		Code:        tmpl.ReactEmailCode,
		ChangeNote:  changeNote(req.Prompt, regen),
		CreatedBy:   req.UserID,
	})
	if err != nil {
		slog.Error("failed to snapshot template version",
			"template_id", tmpl.ID, "error", err)
	} else if err := s.templates.SetCurrentVersion(tmpl.ID, version.ID); err != nil {
		slog.Error("failed to set current version",
			"template_id", tmpl.ID, "version_id", version.ID, "error", err)
	} else {
		s.mu.Lock()
		s.template.CurrentVersion = &version.ID
		s.mu.Unlock()
	}

	s.tracker.Complete()
	s.mu.Lock()
	s.streaming = false
	s.progress = p
	s.active = nil
	s.mu.Unlock()

	r.finish(Event{Phase: PhaseComplete, Progress: p, Done: true})
}

// --- accessors ---

// Template returns a copy of the session's template row as last
// committed or locally updated. A copy, so callers can encode it while a
// finalizing run mutates the original.
func (s *Session) Template() *models.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.template
	return &cp
}

// Progress returns the latest streaming snapshot.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Phase returns the current display phase.
func (s *Session) Phase() Phase { return s.tracker.Phase() }

// Streaming reports whether a stream is in flight.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// WaitingForRender reports whether a regeneration is still waiting for
// the external preview renderer.
func (s *Session) WaitingForRender() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitingForRender
}

// ValidationFailure returns the typed rejection from the last run, or nil.
func (s *Session) ValidationFailure() *validate.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validation
}

// Err returns the last transport or persistence error, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// --- prompt assembly ---

func buildSystemPrompt(kit *models.BrandKit) string {
	if kit == nil {
		return systemPrompt
	}
	fragment := kit.PromptFragment()
	if fragment == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\n" + fragment
}

func buildUserPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(req.Prompt)
	for _, u := range req.ImageURLs {
		sb.WriteString("\nReference image: ")
		sb.WriteString(u)
	}
	return sb.String()
}

func changeNote(prompt string, regen bool) string {
	const max = 200
	if len(prompt) > max {
		prompt = prompt[:max]
	}
	if regen {
		return "Regenerated: " + prompt
	}
	return "Generated: " + prompt
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package generation

import (
	"sync"
	"time"
)

// Phase is the display stage of an in-flight generation. Phases are
// ordered; a tracker only ever advances, except for the explicit reset
// to idle on cancel or error.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseAnalyzing
	PhaseSubject
	PhasePreview
	PhaseCode
	PhaseFinalizing
	PhaseComplete
)

// promoteDelay is how long a generation may sit in "starting" before it
// is promoted to "analyzing" with no data seen. Models often think for a
// second before the first token; the UI should not look stalled.
const promoteDelay = 800 * time.Millisecond

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseSubject:
		return "subject"
	case PhasePreview:
		return "preview"
	case PhaseCode:
		return "code"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseComplete:
		return "complete"
	}
	return "unknown"
}

// NextPhase computes the phase that follows current for the given
// streaming state and progress. It is monotonic: the result is never an
// earlier phase than current. Resets to idle are explicit (Tracker.Reset),
// never computed here.
func NextPhase(current Phase, streaming bool, p Progress) Phase {
	target := current

	if streaming && target < PhaseStarting {
		target = PhaseStarting
	}
	if p.Subject != "" && target < PhaseSubject {
		target = PhaseSubject
	}
	if p.PreviewText != "" && target < PhasePreview {
		target = PhasePreview
	}
	if p.Code != "" && target < PhaseCode {
		target = PhaseCode
	}
	if !streaming && current >= PhaseFinalizing && target < PhaseComplete {
		target = PhaseComplete
	}

	return target
}

// Tracker holds the current phase for one generation session. Safe for
// concurrent use; the starting-to-analyzing promotion fires from a timer
// goroutine.
type Tracker struct {
	mu    sync.Mutex
	phase Phase
	timer *time.Timer

	// promoteAfter defaults to promoteDelay; shortened in tests.
	promoteAfter time.Duration
}

// NewTracker returns a tracker at idle.
func NewTracker() *Tracker {
	return &Tracker{promoteAfter: promoteDelay}
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Begin moves the tracker to starting and arms the analyzing promotion
// timer. Calling Begin mid-flight restarts the cycle.
func (t *Tracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimerLocked()
	t.phase = PhaseStarting
	t.timer = time.AfterFunc(t.promoteAfter, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.phase == PhaseStarting {
			t.phase = PhaseAnalyzing
		}
	})
}

// Observe advances the phase for newly streamed progress.
func (t *Tracker) Observe(p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = NextPhase(t.phase, true, p)
}

// Finalize marks the stream as complete and the persistence step as
// running. No-op if the tracker was already reset.
func (t *Tracker) Finalize() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimerLocked()
	if t.phase == PhaseIdle {
		return
	}
	if t.phase < PhaseFinalizing {
		t.phase = PhaseFinalizing
	}
}

// Complete marks the whole generation as done.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimerLocked()
	if t.phase == PhaseIdle {
		return
	}
	t.phase = PhaseComplete
}

// Reset returns the tracker to idle. This is the only way a phase moves
// backwards: cancel and error paths call it.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimerLocked()
	t.phase = PhaseIdle
}

func (t *Tracker) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

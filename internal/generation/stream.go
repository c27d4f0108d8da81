// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package generation drives the AI template-generation pipeline: a
// cancellable stream client over the provider layer, a phase tracker for
// display state, the orchestrator session that owns template state and
// persistence ordering, and the chat reconciler that keeps optimistic
// messages in step with the database.
package generation

import (
	"context"
	"strings"
	"sync"

	"mailsmith/internal/ai"
)

// Streamer produces a chunk stream for a generation request. Satisfied by
// *ai.Registry.
type Streamer interface {
	GenerateStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan ai.StreamChunk, error)
}

// Callbacks receives the lifecycle events of one streamed generation.
// OnProgress fires after every chunk with the latest assembled snapshot.
// Exactly one of OnComplete or OnError fires afterwards. A Cancel (or a
// superseding Start) suppresses all of them; an external cancellation of
// the request context fires OnAborted instead, so the owner can tear the
// run down.
type Callbacks struct {
	OnProgress func(Progress)
	OnComplete func(Progress)
	OnError    func(error)
	OnAborted  func()
}

// StreamClient runs at most one generation stream at a time. Starting a
// new stream cancels any in-flight one, and a cancelled stream's callbacks
// are suppressed entirely.
type StreamClient struct {
	streamer Streamer

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64 // identifies the live request; stale requests go silent
}

// NewStreamClient creates a stream client on top of the given provider
// stream source.
func NewStreamClient(streamer Streamer) *StreamClient {
	return &StreamClient{streamer: streamer}
}

// Start opens a generation stream and feeds cb until the stream ends.
// Any previous in-flight stream is cancelled first. The returned error
// covers request setup only; stream failures arrive through cb.OnError.
func (c *StreamClient) Start(ctx context.Context, systemPrompt, userPrompt string, cb Callbacks) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	stream, err := c.streamer.GenerateStream(streamCtx, systemPrompt, userPrompt)
	if err != nil {
		cancel()
		c.clear(seq)
		return err
	}

	go c.collect(streamCtx, seq, stream, cb)
	return nil
}

// Cancel aborts the in-flight stream, if any. The aborted request's
// completion and error callbacks never fire.
func (c *StreamClient) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	// Bump the sequence so a goroutine racing the cancel goes silent.
	c.seq++
}

// Active reports whether a stream is currently in flight.
func (c *StreamClient) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// collect drains the chunk channel, assembling the partial template and
// invoking callbacks while this request is still the live one.
func (c *StreamClient) collect(ctx context.Context, seq uint64, stream <-chan ai.StreamChunk, cb Callbacks) {
	var buf strings.Builder
	var streamErr error

	for chunk := range stream {
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		buf.WriteString(chunk.Text)

		progress := parsePartial(buf.String())
		if cb.OnProgress != nil && c.isLive(seq) {
			cb.OnProgress(progress)
		}
	}

	// Drain the channel if we broke out early so the producer can exit.
	for range stream {
	}

	// Read the cancellation state before clear, which cancels this
	// request's own context to release the stream resources.
	ctxErr := ctx.Err()

	if !c.clear(seq) {
		// Cancelled or superseded mid-flight: suppress everything.
		return
	}
	if ctxErr != nil {
		// The caller's context died (client disconnect). Not a Cancel, so
		// the owner still needs to hear about it.
		if cb.OnAborted != nil {
			cb.OnAborted()
		}
		return
	}

	if streamErr != nil {
		if cb.OnError != nil {
			cb.OnError(streamErr)
		}
		return
	}
	if cb.OnComplete != nil {
		cb.OnComplete(parsePartial(buf.String()))
	}
}

// isLive reports whether seq is still the current request.
func (c *StreamClient) isLive(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq == seq
}

// clear releases the active slot if seq still owns it. Returns false when
// the request was superseded or cancelled.
func (c *StreamClient) clear(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seq != seq {
		return false
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return true
}

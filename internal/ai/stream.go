// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
)

// StreamChunk is one unit of streamed model output. A chunk with a non-nil
// Err is terminal: the channel is closed right after it.
type StreamChunk struct {
	Text string
	Err  error
}

// StreamGenerator is an optional interface providers implement to deliver
// generation output incrementally as the model produces it.
type StreamGenerator interface {
	// GenerateStream starts a streamed generation and returns a channel of
	// chunks. The channel is closed when the stream ends, errors, or ctx is
	// cancelled. Callers must drain the channel.
	GenerateStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan StreamChunk, error)
}

// streamHTTPClient is used for streaming requests. It carries no client
// timeout: a stream lives as long as the model keeps talking, and
// cancellation comes from the request context.
var streamHTTPClient = &http.Client{}

// GenerateStream starts a streamed generation on the active provider.
// Providers without streaming support degrade to a single chunk carrying
// the full response.
func (r *Registry) GenerateStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan StreamChunk, error) {
	p, err := r.Active()
	if err != nil {
		return nil, err
	}

	if sg, ok := p.(StreamGenerator); ok {
		return sg.GenerateStream(ctx, systemPrompt, userPrompt)
	}

	ch := make(chan StreamChunk, 1)
	go func() {
		defer close(ch)
		text, err := p.Generate(ctx, systemPrompt, userPrompt)
		if err != nil {
			ch <- StreamChunk{Err: err}
			return
		}
		ch <- StreamChunk{Text: text}
	}()
	return ch, nil
}

// scanSSE reads Server-Sent Events from body and calls emit with each
// "data:" payload. emit returns false to stop early. Returns the scanner
// error, or ctx.Err() if the context was cancelled mid-stream.
func scanSSE(ctx context.Context, body io.Reader, emit func(data string) bool) error {
	scanner := bufio.NewScanner(body)
	// Model deltas that carry whole code blocks can exceed the default
	// 64K token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if !emit(data) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// send delivers a chunk unless the context is already gone.
func send(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestProviderLive exercises each provider against its real API. A provider's
// case is skipped unless its key is present in the environment, so the suite
// stays runnable offline.
func TestProviderLive(t *testing.T) {
	providers := []struct {
		name         string
		keyEnv       string
		modelEnv     string
		defaultModel string
	}{
		{"openai", "OPENAI_API_KEY", "OPENAI_MODEL", "gpt-4o"},
		{"gemini", "GEMINI_API_KEY", "GEMINI_MODEL", "gemini-3.1-pro-preview"},
		{"claude", "CLAUDE_API_KEY", "CLAUDE_MODEL", "claude-sonnet-4-6"},
		{"mistral", "MISTRAL_API_KEY", "MISTRAL_MODEL", "mistral-large-latest"},
	}

	for _, p := range providers {
		t.Run(p.name, func(t *testing.T) {
			key := os.Getenv(p.keyEnv)
			if key == "" {
				t.Skipf("%s not set", p.keyEnv)
			}
			model := os.Getenv(p.modelEnv)
			if model == "" {
				model = p.defaultModel
			}

			reg := NewRegistry(p.name, map[string]ProviderConfig{
				p.name: {APIKey: key, Model: model},
			})

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			result, err := reg.Generate(ctx,
				"You are an email subject line writer. Reply with the subject line only.",
				"Write a subject line for a welcome email from a bakery.")
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if result == "" {
				t.Fatal("Generate returned empty string")
			}
			t.Logf("%s response: %s", p.name, result)
		})
	}
}

// TestModerationLive checks the moderation endpoint against the real OpenAI
// API. Skipped without a key.
func TestModerationLive(t *testing.T) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	reg := NewRegistry("openai", map[string]ProviderConfig{
		"openai": {APIKey: key, Model: "gpt-4o"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := reg.CheckPrompt(ctx, "A friendly welcome email for new newsletter subscribers.")
	if err != nil {
		t.Fatalf("CheckPrompt failed: %v", err)
	}
	if !result.Safe {
		t.Errorf("benign prompt flagged unsafe: %v", result.Categories)
	}
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// preview.go provides a Valkey-backed cache for rendered template
// previews. Rendering React-Email source to preview HTML is done by an
// external renderer and is expensive, so the result is cached per
// template and dropped whenever the template is written.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// previewKeyPrefix is the Valkey key prefix for cached previews.
	previewKeyPrefix = "preview:"

	// DefaultPreviewTTL is how long a rendered preview stays cached.
	DefaultPreviewTTL = 10 * time.Minute
)

// PreviewCache manages rendered template preview HTML in Valkey.
type PreviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPreviewCache creates a preview cache backed by the given Valkey client.
func NewPreviewCache(client *redis.Client, ttl time.Duration) *PreviewCache {
	if ttl == 0 {
		ttl = DefaultPreviewTTL
	}
	return &PreviewCache{client: client, ttl: ttl}
}

// Get retrieves the cached preview HTML for a template. Returns false on miss.
func (pc *PreviewCache) Get(ctx context.Context, templateID uuid.UUID) ([]byte, bool) {
	val, err := pc.client.Get(ctx, previewKey(templateID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("preview cache get error", "template_id", templateID, "error", err)
		return nil, false
	}
	slog.Debug("preview cache hit", "template_id", templateID)
	return val, true
}

// Set stores rendered preview HTML for a template with the configured TTL.
func (pc *PreviewCache) Set(ctx context.Context, templateID uuid.UUID, html []byte) {
	if err := pc.client.Set(ctx, previewKey(templateID), html, pc.ttl).Err(); err != nil {
		slog.Warn("preview cache set error", "template_id", templateID, "error", err)
	}
}

// Invalidate removes a single template's cached preview. Called on every
// template write, version restore included.
func (pc *PreviewCache) Invalidate(ctx context.Context, templateID uuid.UUID) {
	if err := pc.client.Del(ctx, previewKey(templateID)).Err(); err != nil {
		slog.Warn("preview cache invalidate error", "template_id", templateID, "error", err)
	}
	slog.Debug("preview cache invalidated", "template_id", templateID)
}

// InvalidateAll removes every cached preview by scanning for the prefix.
// Used when the external renderer version changes, since any preview
// could be affected.
func (pc *PreviewCache) InvalidateAll(ctx context.Context) {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := pc.client.Scan(ctx, cursor, previewKeyPrefix+"*", 100).Result()
		if err != nil {
			slog.Warn("preview cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := pc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("preview cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("preview cache fully cleared", "deleted", deleted)
	}
}

func previewKey(templateID uuid.UUID) string {
	return previewKeyPrefix + templateID.String()
}

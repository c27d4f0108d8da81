// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package generation

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Progress holds the template fields assembled so far from a generation
// stream. Fields fill in incrementally; the code typically arrives as a
// growing suffix. Each chunk overwrites the previous snapshot.
type Progress struct {
	Subject              string            `json:"subject"`
	PreviewText          string            `json:"previewText"`
	Code                 string            `json:"reactEmailCode"`
	StyleType            string            `json:"styleType"`
	StyleDefinitionsObj  map[string]string `json:"styleDefinitions,omitempty"`
	StyleDefinitionsJSON string            `json:"styleDefinitionsJson,omitempty"`
}

// parsePartial extracts whatever template fields are already readable from
// a partially received JSON object. The buffer usually ends mid-value, so
// a field's value is taken up to the last complete escape sequence even
// when its closing quote has not arrived yet. Malformed input yields
// whatever fields could be read; it never fails.
func parsePartial(buf string) Progress {
	cleaned := stripCodeFence(buf)

	// A complete buffer decodes directly.
	var full Progress
	if err := json.Unmarshal([]byte(cleaned), &full); err == nil {
		return full
	}

	return Progress{
		Subject:              extractStringField(cleaned, "subject"),
		PreviewText:          extractStringField(cleaned, "previewText"),
		Code:                 extractStringField(cleaned, "reactEmailCode"),
		StyleType:            extractStringField(cleaned, "styleType"),
		StyleDefinitionsJSON: extractStringField(cleaned, "styleDefinitionsJson"),
	}
}

// stripCodeFence removes a leading ```json (or bare ```) fence and a
// trailing ``` if present. Models wrap JSON in fences despite instructions.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line ("json").
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// extractStringField finds `"name": "` in buf and returns the decoded
// value up to the closing quote, or up to the end of the buffer when the
// value is still streaming in.
func extractStringField(buf, name string) string {
	key := `"` + name + `"`
	idx := strings.Index(buf, key)
	if idx < 0 {
		return ""
	}
	rest := buf[idx+len(key):]

	// Skip to the opening quote of the value.
	i := 0
	for i < len(rest) && (rest[i] == ':' || rest[i] == ' ' || rest[i] == '\t' || rest[i] == '\n' || rest[i] == '\r') {
		i++
	}
	if i >= len(rest) || rest[i] != '"' {
		return ""
	}
	rest = rest[i+1:]

	var sb strings.Builder
	for j := 0; j < len(rest); j++ {
		c := rest[j]
		if c == '"' {
			break
		}
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		// Escape sequence; if it is cut off at the buffer end, stop here.
		if j+1 >= len(rest) {
			break
		}
		j++
		switch rest[j] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '"', '\\', '/':
			sb.WriteByte(rest[j])
		case 'u':
			if j+4 >= len(rest) {
				return sb.String()
			}
			if n, err := strconv.ParseUint(rest[j+1:j+5], 16, 32); err == nil {
				sb.WriteRune(rune(n))
			}
			j += 4
		default:
			// Unknown escape, keep it literally.
			sb.WriteByte('\\')
			sb.WriteByte(rest[j])
		}
	}
	return sb.String()
}

// StyleDefinitions resolves the style map. The model sends either a JSON
// object (used as-is) or an encoded string; a malformed string degrades to
// an empty map, and ok reports whether it parsed so the caller can log the
// degradation.
func (p Progress) StyleDefinitions() (map[string]string, bool) {
	if p.StyleDefinitionsObj != nil {
		return p.StyleDefinitionsObj, true
	}
	if strings.TrimSpace(p.StyleDefinitionsJSON) == "" {
		return map[string]string{}, true
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(p.StyleDefinitionsJSON), &m); err != nil {
		return map[string]string{}, false
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, true
}

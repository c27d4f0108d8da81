// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package validate checks AI-generated React-Email source before it is
// committed to a template. Validation failure is a typed result, not an
// error: the rejected code and every message travel back to the caller
// for display, and the committed template is left untouched.
package validate

import (
	"fmt"
	"strings"
)

// maxCodeBytes caps generated source size. Anything larger is almost
// certainly a runaway generation.
const maxCodeBytes = 256 * 1024

// Result is the outcome of validating one generated source string.
// When Valid is false, Code carries the rejected source verbatim so the
// caller can surface it for remediation.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Code     string   `json:"code,omitempty"`
}

// ReactEmailCode validates a generated React-Email component source string.
// Errors reject the code; warnings accompany accepted code.
func ReactEmailCode(code string) Result {
	var errs, warns []string

	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		errs = append(errs, "generated code is empty")
		return rejected(code, errs, warns)
	}
	if len(code) > maxCodeBytes {
		errs = append(errs, fmt.Sprintf("generated code exceeds %d bytes", maxCodeBytes))
	}

	if !strings.Contains(code, "export default") {
		errs = append(errs, "missing default export: a React-Email template must export one component")
	}

	// Email clients strip scripts; a generated <script> means the model
	// misunderstood the target format.
	lower := strings.ToLower(code)
	if strings.Contains(lower, "<script") {
		errs = append(errs, "script tags are not allowed in email templates")
	}
	if strings.Contains(lower, "dangerouslysetinnerhtml") {
		errs = append(errs, "dangerouslySetInnerHTML is not allowed in email templates")
	}

	for _, pair := range []struct {
		open, close rune
		name        string
	}{
		{'{', '}', "braces"},
		{'(', ')', "parentheses"},
	} {
		if d := delimiterBalance(code, pair.open, pair.close); d != 0 {
			errs = append(errs, fmt.Sprintf("unbalanced %s (delta %+d)", pair.name, d))
		}
	}

	if !strings.Contains(code, "@react-email/components") {
		warns = append(warns, "no import from @react-email/components; rendering may fall back to raw HTML")
	}
	if !strings.Contains(code, "<Html") && !strings.Contains(code, "<Body") {
		warns = append(warns, "no <Html> or <Body> wrapper found")
	}
	if strings.Contains(code, "onClick") || strings.Contains(code, "onChange") {
		warns = append(warns, "event handlers have no effect in email clients")
	}

	if len(errs) > 0 {
		return rejected(code, errs, warns)
	}
	return Result{Valid: true, Warnings: warns}
}

func rejected(code string, errs, warns []string) Result {
	return Result{Valid: false, Errors: errs, Warnings: warns, Code: code}
}

// delimiterBalance counts open minus close occurrences, skipping string
// and template literals so JSX text content does not skew the count.
func delimiterBalance(code string, open, close rune) int {
	depth := 0
	var inString rune // 0 when outside a literal
	escaped := false

	for _, r := range code {
		if escaped {
			escaped = false
			continue
		}
		if inString != 0 {
			switch r {
			case '\\':
				escaped = true
			case inString:
				inString = 0
			}
			continue
		}
		switch r {
		case '"', '\'', '`':
			inString = r
		case open:
			depth++
		case close:
			depth--
		}
	}
	return depth
}

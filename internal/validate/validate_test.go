// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package validate

import (
	"strings"
	"testing"
)

const goodTemplate = `
import { Html, Body, Container, Text } from "@react-email/components";

export default function WelcomeEmail() {
  return (
    <Html>
      <Body>
        <Container>
          <Text>Welcome aboard!</Text>
        </Container>
      </Body>
    </Html>
  );
}
`

func TestReactEmailCodeAcceptsWellFormedTemplate(t *testing.T) {
	res := ReactEmailCode(goodTemplate)
	if !res.Valid {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Errorf("valid result should carry no errors: %v", res.Errors)
	}
	if res.Code != "" {
		t.Error("accepted code should not be echoed back")
	}
}

func TestReactEmailCodeRejections(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr string
	}{
		{"empty", "   \n  ", "generated code is empty"},
		{"no default export", `import { Html } from "@react-email/components"; function X() {}`, "missing default export"},
		{"script tag", goodTemplate + `<script>alert(1)</script>`, "script tags"},
		{"dangerous html", strings.Replace(goodTemplate, "<Text>Welcome aboard!</Text>", `<div dangerouslySetInnerHTML={{__html: x}} />`, 1), "dangerouslySetInnerHTML"},
		{"unbalanced braces", `export default function X() { return (<Html><Body /></Html>);`, "unbalanced braces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ReactEmailCode(tt.code)
			if res.Valid {
				t.Fatal("expected rejection")
			}
			if res.Code != tt.code {
				t.Error("rejected code must be echoed back verbatim")
			}
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v missing %q", res.Errors, tt.wantErr)
			}
		})
	}
}

func TestReactEmailCodeWarningsDoNotReject(t *testing.T) {
	code := `
export default function PlainEmail() {
  return (
    <div onClick={noop}>
      <p>hello</p>
    </div>
  );
}
`
	res := ReactEmailCode(code)
	if !res.Valid {
		t.Fatalf("warnings alone must not reject: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected warnings for missing imports, wrapper, and event handler")
	}
	joined := strings.Join(res.Warnings, "\n")
	for _, want := range []string{"@react-email/components", "<Html>", "event handlers"} {
		if !strings.Contains(joined, want) {
			t.Errorf("warnings missing %q:\n%s", want, joined)
		}
	}
}

func TestDelimiterBalanceSkipsStringLiterals(t *testing.T) {
	code := "export default function X() { const s = \"}}}\"; const t = `{{{`; return (<p>{s}</p>); }"
	res := ReactEmailCode(code)
	if !res.Valid {
		t.Fatalf("braces inside string literals must not count: %v", res.Errors)
	}
}

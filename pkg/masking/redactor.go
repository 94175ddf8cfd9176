// Package masking sanitizes upstream error text before it is surfaced to
// clients or recorded by the observer. Provider and DocStore errors may embed
// API keys, bearer tokens, or signed URLs; the redactor strips them while
// keeping the rest of the message intact for debugging.
package masking

import (
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// Redactor applies a fixed set of secret-scrubbing patterns to error text.
// Created once at startup; thread-safe and stateless aside from compiled
// patterns.
type Redactor struct {
	patterns []*CompiledPattern
}

// builtinPatterns covers the credential shapes seen in provider and DocStore
// error bodies. Order matters: the broad bearer pattern runs before the bare
// hex pattern so prefixed tokens keep their prefix in the replacement.
var builtinPatterns = []struct {
	name, pattern, replacement string
}{
	{"api_key", `(?i)(api[_-]?key|apikey)["'\s:=]+[A-Za-z0-9_\-]{8,}`, `${1}=***MASKED***`},
	{"bearer_token", `(?i)bearer\s+[A-Za-z0-9_\-\.=]{8,}`, `Bearer ***MASKED***`},
	{"sk_token", `\bsk-[A-Za-z0-9_\-]{8,}\b`, `***MASKED***`},
	{"authorization_header", `(?i)authorization["'\s:=]+[^\s"']{8,}`, `authorization=***MASKED***`},
	{"long_hex", `\b[0-9a-fA-F]{48,}\b`, `***MASKED***`},
	{"url_credentials", `://[^/\s:@]+:[^/\s@]+@`, `://***:***@`},
	{"query_token", `(?i)([?&](token|key|secret|signature)=)[^&\s"']+`, `${1}***MASKED***`},
}

// NewRedactor compiles the built-in patterns. Patterns are static strings, so
// compilation cannot fail at runtime; regexp.MustCompile makes that explicit.
func NewRedactor() *Redactor {
	r := &Redactor{}
	for _, p := range builtinPatterns {
		r.patterns = append(r.patterns, &CompiledPattern{
			Name:        p.name,
			Regex:       regexp.MustCompile(p.pattern),
			Replacement: p.replacement,
		})
	}
	return r
}

// Sanitize returns msg with every credential-shaped substring replaced.
func (r *Redactor) Sanitize(msg string) string {
	if msg == "" {
		return msg
	}
	for _, p := range r.patterns {
		msg = p.Regex.ReplaceAllString(msg, p.Replacement)
	}
	return msg
}

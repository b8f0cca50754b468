// Package security scrubs secrets from logs, records an audit trail of
// administrative actions and rate limits callers.
package security

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every redacted secret.
const RedactPlaceholder = "***REDACTED***"

// secretKey matches config and metadata keys whose values are secrets.
var secretKey = regexp.MustCompile(`(?i)(secret|token|password|passwd|api_?key|credential|authorization)`)

// Redactor replaces secrets in strings. It knows common token formats and
// literal values registered at runtime, such as the bot token or gateway
// password. Safe for concurrent use; the zero value has no patterns.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern registers an extra pattern.
func (r *Redactor) AddPattern(p *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
}

// AddLiteral registers an exact secret. Values shorter than four bytes are
// ignored so that short strings do not blank out unrelated text.
func (r *Redactor) AddLiteral(secret string) {
	if len(secret) < 4 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.literals, secret) {
		r.literals = append(r.literals, secret)
	}
}

// SetLiterals replaces all registered literals, e.g. after a config reload.
func (r *Redactor) SetLiterals(secrets ...string) {
	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if len(s) >= 4 && !slices.Contains(kept, s) {
			kept = append(kept, s)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = kept
}

// ContainsLiteral reports whether s contains a registered literal.
func (r *Redactor) ContainsLiteral(s string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, lit := range r.literals {
		if strings.Contains(s, lit) {
			return true
		}
	}
	return false
}

// Redact returns s with every known secret replaced.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// RedactMap scrubs m in place. Values under secret-looking keys are blanked
// entirely; other strings go through Redact. Nested maps and slices are
// walked.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && secretKey.MatchString(k) {
			m[k] = RedactPlaceholder
			continue
		}
		m[k] = r.redactValue(v)
	}
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.Redact(val)
	case map[string]any:
		r.RedactMap(val)
	case []any:
		for i, item := range val {
			val[i] = r.redactValue(item)
		}
	}
	return v
}

// DefaultPatterns returns patterns for tokens this service handles or that
// agent CLIs tend to print.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Discord bot token: base64 user id, timestamp and HMAC.
		regexp.MustCompile(`[MNO][A-Za-z0-9_-]{23,27}\.[A-Za-z0-9_-]{6}\.[A-Za-z0-9_-]{27,40}`),
		// Authorization header values.
		regexp.MustCompile(`(?i)\b(Bearer|Bot|Basic)\s+[A-Za-z0-9._~+/=-]{16,}`),
		// Model provider keys (sk-..., sk-ant-...).
		regexp.MustCompile(`sk-(ant-)?[A-Za-z0-9_-]{20,}`),
		// GitHub tokens used by copilot.
		regexp.MustCompile(`(ghp_|gho_|ghu_|ghs_|github_pat_)[A-Za-z0-9_]{20,}`),
		// Credentials embedded in URLs.
		regexp.MustCompile(`://[^/\s:@]+:[^/\s@]+@`),
	}
}

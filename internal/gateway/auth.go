package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/cronclaw/internal/security"
)

// authMiddleware returns a chi-compatible middleware that validates Bearer token
// or Basic auth credentials using constant-time comparison. creds is read on
// every request so reloaded credentials apply at once.
// Failed attempts are counted per remote host; once the limiter's auth
// budget is spent the host gets 429 until the window slides.
func authMiddleware(creds func() AuthConfig, auditLogger *security.AuditLogger, rateLimiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := remoteHost(r)
			if rateLimiter != nil && rateLimiter.Blocked(security.KindAuth, host) {
				emitAuthEvent(auditLogger, security.EventRateLimit, r, "auth")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			fail := func(detail string) {
				if rateLimiter != nil {
					_ = rateLimiter.Allow(security.KindAuth, host)
				}
				emitAuthEvent(auditLogger, security.EventAuthFailure, r, detail)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			}

			cfg := creds()
			auth := r.Header.Get("Authorization")
			if auth == "" {
				fail("missing authorization header")
				return
			}

			// Try Bearer token first.
			if cfg.BearerToken != "" {
				if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
					if constantTimeEqual(after, cfg.BearerToken) {
						emitAuthEvent(auditLogger, security.EventAuthSuccess, r, "bearer")
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			// Try Basic auth.
			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					emitAuthEvent(auditLogger, security.EventAuthSuccess, r, "basic")
					next.ServeHTTP(w, r)
					return
				}
			}

			fail("invalid credentials")
		})
	}
}

// staticAuth returns a credentials func that always yields cfg.
func staticAuth(cfg AuthConfig) func() AuthConfig {
	return func() AuthConfig { return cfg }
}

// emitAuthEvent logs an auth event to the audit logger if available.
func emitAuthEvent(logger *security.AuditLogger, eventType security.EventType, r *http.Request, detail string) {
	logger.Log(security.AuditEvent{
		Type:   eventType,
		Source: security.SourceHTTP,
		Remote: r.RemoteAddr,
		Detail: detail,
		Metadata: map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
		},
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

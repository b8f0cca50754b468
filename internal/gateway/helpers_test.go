package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/core"
	"github.com/flemzord/cronclaw/internal/cron"
	"github.com/flemzord/cronclaw/internal/cron/crontest"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/flemzord/cronclaw/internal/security/securitytest"
	"github.com/flemzord/cronclaw/internal/session"
	"gopkg.in/yaml.v3"
)

const testToken = "secret-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustYAMLNode(t *testing.T, input string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(input), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return &doc
}

func newTestManager(t *testing.T) *cron.Manager {
	t.Helper()
	m, err := cron.NewManager(cron.ManagerConfig{
		Dir:    t.TempDir(),
		Engine: &crontest.FakeEngine{Validate: cron.ValidateSchedule},
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

// fakeSessions is an in-memory Sessions.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[uint64]session.Info
	closeErr error
}

func newFakeSessions(infos ...session.Info) *fakeSessions {
	s := &fakeSessions{sessions: make(map[uint64]session.Info)}
	for _, info := range infos {
		s.sessions[info.ChannelID] = info
	}
	return s
}

func (s *fakeSessions) List() []session.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Info, 0, len(s.sessions))
	for _, info := range s.sessions {
		out = append(out, info)
	}
	return out
}

func (s *fakeSessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *fakeSessions) Remove(_ context.Context, channelID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[channelID]; !ok {
		return false, nil
	}
	delete(s.sessions, channelID)
	return true, s.closeErr
}

type fakeApp struct{ mods []core.ModuleStatus }

func (a fakeApp) Modules() []core.ModuleStatus { return a.mods }

type fakeReloader struct {
	err   error
	calls int
}

func (r *fakeReloader) Reload(context.Context) error {
	r.calls++
	return r.err
}

// testDeps are the services a router-level test injects.
type testDeps struct {
	auth     AuthConfig
	jobs     Jobs
	sessions Sessions
	app      ModuleLister
	reloader Reloader
	limiter  *security.RateLimiter
	config   string
}

// newRouterGateway builds a Gateway with injected services and returns its
// router together with the recorded audit events.
func newRouterGateway(t *testing.T, deps testDeps) (*Gateway, http.Handler, func() []security.AuditEvent) {
	t.Helper()
	audit, events := securitytest.NewTestAuditLogger()
	g := &Gateway{
		config:     Config{Auth: deps.auth},
		logger:     discardLogger(),
		metrics:    NewMetrics(nil),
		startedAt:  time.Now(),
		version:    "test",
		jobs:       deps.jobs,
		sessions:   deps.sessions,
		app:        deps.app,
		reloader:   deps.reloader,
		configPath: deps.config,
		audit:      audit,
		limiter:    deps.limiter,
	}
	g.config.defaults()
	return g, g.buildRouter(), events
}

// serve sends a request through h with the test bearer token.
func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func authed() AuthConfig { return AuthConfig{BearerToken: testToken} }

func testSession(channelID uint64) session.Info {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return session.Info{ChannelID: channelID, Backend: agent.BackendPi, CreatedAt: at, LastActiveAt: at}
}

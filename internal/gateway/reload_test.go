package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flemzord/cronclaw/internal/core"
	"gopkg.in/yaml.v3"
)

func TestReload_RotatesCredentials(t *testing.T) {
	t.Parallel()

	g, h, _ := newRouterGateway(t, testDeps{auth: authed(), sessions: newFakeSessions()})
	if rr := serve(t, h, http.MethodGet, "/api/sessions", ""); rr.Code != http.StatusOK {
		t.Fatalf("before reload: status = %d", rr.Code)
	}

	node := mustYAMLNode(t, "auth:\n  bearer_token: rotated\n")
	ctx := core.NewAppContext(discardLogger(), t.TempDir()).
		WithModuleConfigs(map[string]yaml.Node{"gateway.http": *node})
	if err := g.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if rr := serve(t, h, http.MethodGet, "/api/sessions", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("old token: status = %d, want 401", rr.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer rotated")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("new token: status = %d, want 200", rr.Code)
	}
}

func TestReload_NoModuleConfig(t *testing.T) {
	t.Parallel()

	g, _, _ := newRouterGateway(t, testDeps{auth: authed()})
	if err := g.Reload(core.NewAppContext(discardLogger(), t.TempDir())); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if g.credentials().BearerToken != testToken {
		t.Error("credentials changed without a module config")
	}
}

func TestReload_RejectsHalfBasicPair(t *testing.T) {
	t.Parallel()

	g, _, _ := newRouterGateway(t, testDeps{auth: authed()})
	node := mustYAMLNode(t, "auth:\n  basic_user: admin\n")
	ctx := core.NewAppContext(discardLogger(), t.TempDir()).
		WithModuleConfigs(map[string]yaml.Node{"gateway.http": *node})
	if err := g.Reload(ctx); err == nil {
		t.Fatal("Reload accepted basic_user without basic_pass")
	}
	if g.credentials().BearerToken != testToken {
		t.Error("credentials replaced by a rejected config")
	}
}

package gateway

import (
	"net/http"
	"testing"
	"time"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	_, h, _ := newRouterGateway(t, testDeps{jobs: newTestManager(t), sessions: newFakeSessions(testSession(1), testSession(2))})
	rr := serve(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[HealthResponse](t, rr)
	if got.Status != "ok" || got.Sessions != 2 || got.Jobs != 0 {
		t.Errorf("health = %+v", got)
	}
}

func TestHealth_DegradedWithoutScheduler(t *testing.T) {
	t.Parallel()

	_, h, _ := newRouterGateway(t, testDeps{})
	rr := serve(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
	if got := decode[HealthResponse](t, rr); got.Status != "degraded" {
		t.Errorf("status field = %q", got.Status)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	g, h, _ := newRouterGateway(t, testDeps{auth: authed(), jobs: newTestManager(t)})
	g.startedAt = time.Now().Add(-90 * time.Second)

	serve(t, h, http.MethodGet, "/health", "")
	rr := serve(t, h, http.MethodGet, "/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[StatusResponse](t, rr)
	if got.Version != "test" {
		t.Errorf("Version = %q", got.Version)
	}
	if got.Uptime < 90 {
		t.Errorf("Uptime = %d, want >= 90", got.Uptime)
	}
	if got.Metrics.Requests < 1 {
		t.Errorf("Requests = %d, want >= 1", got.Metrics.Requests)
	}
}

package gateway

import (
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Version  string          `json:"version,omitempty"`
	Uptime   int64           `json:"uptime_seconds"`
	Metrics  MetricsSnapshot `json:"metrics"`
	Jobs     int             `json:"jobs"`
	Sessions int             `json:"sessions"`
	Modules  []moduleJSON    `json:"modules"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Version: g.version,
			Uptime:  int64(time.Since(g.startedAt).Seconds()),
			Metrics: g.metrics.Snapshot(),
			Modules: g.loadedModules(),
		}
		if g.jobs != nil {
			resp.Jobs = g.jobs.Len()
		}
		if g.sessions != nil {
			resp.Sessions = g.sessions.Len()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

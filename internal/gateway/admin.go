package gateway

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"

	"github.com/flemzord/cronclaw/internal/config"
	"github.com/flemzord/cronclaw/internal/core"
	"github.com/flemzord/cronclaw/internal/security"
	"gopkg.in/yaml.v3"
)

// sessionJSON is a serializable session snapshot.
type sessionJSON struct {
	ChannelID    string `json:"channel_id"`
	Backend      string `json:"backend"`
	CreatedAt    string `json:"created_at"`
	LastActiveAt string `json:"last_active_at"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// handleListSessions returns every live agent session.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := []sessionJSON{}
		if g.sessions != nil {
			for _, s := range g.sessions.List() {
				out = append(out, sessionJSON{
					ChannelID:    strconv.FormatUint(s.ChannelID, 10),
					Backend:      string(s.Backend),
					CreatedAt:    s.CreatedAt.UTC().Format(timeLayout),
					LastActiveAt: s.LastActiveAt.UTC().Format(timeLayout),
				})
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleDeleteSession closes the session bound to a channel.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID, ok := channelParam(w, r)
		if !ok {
			return
		}
		if g.sessions == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		removed, err := g.sessions.Remove(r.Context(), channelID)
		if !removed {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err != nil {
			// The session is gone from the map either way.
			g.logger.Warn("gateway: session close failed", "channel", channelID, "error", err)
		}

		g.audit.Log(security.AuditEvent{
			Type:      security.EventSessionClear,
			Source:    security.SourceHTTP,
			ChannelID: strconv.FormatUint(channelID, 10),
			Remote:    r.RemoteAddr,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// moduleJSON is a serializable module snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Loaded    bool   `json:"loaded"`
	Started   bool   `json:"started"`
}

// loadedModules merges the compiled module registry with the running app's
// lifecycle state.
func (g *Gateway) loadedModules() []moduleJSON {
	state := make(map[core.ModuleID]bool)
	if g.app != nil {
		for _, m := range g.app.Modules() {
			state[m.ID] = m.Started
		}
	}

	mods := core.GetModules()
	out := make([]moduleJSON, 0, len(mods))
	seen := make(map[core.ModuleID]bool, len(mods))
	for _, m := range mods {
		started, loaded := state[m.ID]
		seen[m.ID] = true
		out = append(out, moduleJSON{
			ID:        string(m.ID),
			Namespace: m.ID.Namespace(),
			Name:      m.ID.Name(),
			Loaded:    loaded,
			Started:   started,
		})
	}
	// Modules appended at runtime are not in the compiled registry.
	if g.app != nil {
		for _, m := range g.app.Modules() {
			if seen[m.ID] {
				continue
			}
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
				Loaded:    true,
				Started:   m.Started,
			})
		}
	}
	return out
}

// handleGetAllModules lists compiled and loaded modules.
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, g.loadedModules())
	}
}

// secretPattern matches keys that likely hold secrets.
var secretPattern = regexp.MustCompile(`(?i)(secret|token|password|api_key|key$)`)

// handleGetConfig returns the config file as loaded, secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.configPath == "" {
			writeError(w, http.StatusServiceUnavailable, "config path not set")
			return
		}

		cfg, err := config.Load(g.configPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load config")
			return
		}

		// Round-trip through YAML so module sections keep their shape.
		raw, err := yaml.Marshal(cfg)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to serialize config")
			return
		}
		var generic map[string]any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to parse config")
			return
		}

		redactSecrets(generic)
		writeJSON(w, http.StatusOK, generic)
	}
}

// redactSecrets replaces non-empty string values whose key matches
// secretPattern, recursing into nested maps and lists.
func redactSecrets(m map[string]any) {
	for k, v := range m {
		if secretPattern.MatchString(k) {
			if s, ok := v.(string); ok && s != "" {
				m[k] = "***REDACTED***"
			}
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			redactSecrets(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					redactSecrets(sub)
				}
			}
		}
	}
}

// handleReloadConfig re-reads and applies the configuration file.
func (g *Gateway) handleReloadConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.reloader == nil {
			writeError(w, http.StatusServiceUnavailable, "reload not available")
			return
		}
		if err := g.reloader.Reload(r.Context()); err != nil {
			g.logger.Error("gateway: config reload failed", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg}.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

package gateway

import (
	"net/http"

	"github.com/flemzord/cronclaw/internal/mcptools"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(g.metrics.Middleware)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", g.metricsHandler())

	// Admin endpoints, auth required. Not mounted if no auth configured.
	if !g.config.Auth.enabled() {
		g.logger.Warn("gateway: no auth configured, admin API disabled")
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(g.credentials, g.audit, g.limiter))
		r.Get("/status", g.handleStatus())
		r.Route("/api", func(r chi.Router) {
			r.Get("/jobs", g.handleListJobs())
			r.Delete("/jobs/{id}", g.handleDeleteJob())
			r.Get("/channels/{channelID}/jobs", g.handleListChannelJobs())
			r.Post("/channels/{channelID}/jobs", g.handleCreateJob())
			r.Get("/sessions", g.handleListSessions())
			r.Delete("/sessions/{channelID}", g.handleDeleteSession())
			r.Get("/modules", g.handleGetAllModules())
			r.Get("/config", g.handleGetConfig())
			r.Post("/config/reload", g.handleReloadConfig())
		})
		if g.config.mcpEnabled() && g.jobs != nil {
			srv, _ := mcptools.NewServer(mcptools.Config{
				Jobs:    g.jobs,
				Audit:   g.audit,
				Limiter: g.limiter,
				Logger:  g.logger,
				Version: g.version,
			})
			r.Handle("/mcp", mcptools.Handler(srv))
		}
	})

	return r
}

func (g *Gateway) metricsHandler() http.Handler {
	if g.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{
		ErrorLog: promErrorLog{g},
	})
}

// promErrorLog adapts the gateway logger to promhttp.Logger.
type promErrorLog struct{ g *Gateway }

func (l promErrorLog) Println(v ...any) {
	l.g.logger.Error("gateway: metrics exposition failed", "error", v)
}

var _ promhttp.Logger = promErrorLog{}

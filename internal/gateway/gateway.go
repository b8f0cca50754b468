// Package gateway provides the HTTP server for administration, job
// management, metrics and the MCP tool endpoint. It binds to loopback by
// default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/flemzord/cronclaw/internal/core"
	"github.com/flemzord/cronclaw/internal/mcptools"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/flemzord/cronclaw/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
	_ core.Reloader     = (*Gateway)(nil)
)

// Jobs is the cron manager surface served by the job endpoints.
type Jobs interface {
	mcptools.Jobs
	Len() int
}

// Sessions is the session coordinator surface served by the admin endpoints.
type Sessions interface {
	List() []session.Info
	Len() int
	Remove(ctx context.Context, channelID uint64) (bool, error)
}

// ModuleLister reports the modules loaded in the running application.
type ModuleLister interface {
	Modules() []core.ModuleStatus
}

// Reloader re-reads the configuration file and applies it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	startedAt time.Time
	version   string

	// Resolved lazily at Start() via service registry.
	jobs       Jobs
	sessions   Sessions
	app        ModuleLister
	reloader   Reloader
	configPath string
	audit      *security.AuditLogger
	limiter    *security.RateLimiter
	gatherer   prometheus.Gatherer

	// auth holds credentials swapped by Reload.
	auth atomic.Pointer[AuthConfig]
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.config.defaults()

	reg, _ := core.Lookup[prometheus.Registerer](ctx, "metrics.registry")
	g.metrics = NewMetrics(reg)
	ctx.RegisterService("gateway.metrics", g.metrics)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()

	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Reload implements core.Reloader. Credentials rotate immediately; bind
// address, timeouts and whether the admin API is mounted need a restart.
func (g *Gateway) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig("gateway.http")
	if !ok {
		return nil
	}
	var next Config
	if err := node.Decode(&next); err != nil {
		return err
	}
	next.defaults()
	if err := next.Auth.validate(); err != nil {
		return err
	}
	if next.Bind != g.config.Bind {
		g.logger.Warn("gateway: bind address changed, restart to apply", "bind", next.Bind)
	}
	if next.Auth.enabled() != g.config.Auth.enabled() {
		g.logger.Warn("gateway: enabling or disabling auth needs a restart")
	}
	auth := next.Auth
	g.auth.Store(&auth)
	g.logger.Info("gateway: credentials reloaded")
	return nil
}

// credentials returns the current admin credentials.
func (g *Gateway) credentials() AuthConfig {
	if a := g.auth.Load(); a != nil {
		return *a
	}
	return g.config.Auth
}

// resolveServices looks up optional dependencies. Missing ones disable the
// endpoints that need them.
func (g *Gateway) resolveServices() {
	g.jobs, _ = core.Lookup[Jobs](g.appCtx, "cron.manager")
	g.sessions, _ = core.Lookup[Sessions](g.appCtx, "session.coordinator")
	g.app, _ = core.Lookup[ModuleLister](g.appCtx, "core.app")
	g.reloader, _ = core.Lookup[Reloader](g.appCtx, "reload.handler")
	g.configPath, _ = core.Lookup[string](g.appCtx, "config.path")
	g.version, _ = core.Lookup[string](g.appCtx, "app.version")
	g.audit, _ = core.Lookup[*security.AuditLogger](g.appCtx, "security.audit")
	g.limiter, _ = core.Lookup[*security.RateLimiter](g.appCtx, "security.ratelimiter")
	g.gatherer, _ = core.Lookup[prometheus.Gatherer](g.appCtx, "metrics.registry")
}

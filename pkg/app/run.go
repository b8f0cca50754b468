// Package app provides the cronclaw entry point: it wires configuration,
// storage, the scheduler and the configured modules, then runs until a
// shutdown signal.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	"weak"

	"github.com/flemzord/cronclaw/internal/agent"
	"github.com/flemzord/cronclaw/internal/chanconfig"
	"github.com/flemzord/cronclaw/internal/channel"
	"github.com/flemzord/cronclaw/internal/command"
	"github.com/flemzord/cronclaw/internal/config"
	"github.com/flemzord/cronclaw/internal/core"
	"github.com/flemzord/cronclaw/internal/cron"
	"github.com/flemzord/cronclaw/internal/i18n"
	"github.com/flemzord/cronclaw/internal/reload"
	"github.com/flemzord/cronclaw/internal/security"
	"github.com/flemzord/cronclaw/internal/session"
	"github.com/flemzord/cronclaw/internal/tracing"
	"github.com/flemzord/cronclaw/internal/turn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 30 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.FindPath searches the standard locations.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides data_dir from the config file.
	DataDir string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

// closers runs cleanup functions in reverse registration order.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// Run loads configuration, starts the scheduler and all modules, and blocks
// until ctx is cancelled or a shutdown signal is received. SIGHUP and
// config file changes trigger a live reload.
func Run(ctx context.Context, params RunParams) (err error) {
	cfgPath, err := config.FindPath(params.ConfigPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if params.DataDir != "" {
		cfg.DataDir = params.DataDir
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// --- logging: redacting handler over a reloadable level ---
	level := new(slog.LevelVar)
	lvl, _ := config.ParseLevel(cfg.LogLevel)
	level.Set(lvl)
	redactor := security.NewRedactor()
	redactor.SetLiterals(cfg.Secrets()...)
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := slog.New(security.NewRedactingHandler(
		slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}),
		redactor,
	))
	logger.Info("cronclaw starting", "version", params.Version, "config", cfgPath)

	var cleanup closers
	defer func() {
		if cerr := cleanup.close(); cerr != nil {
			logger.Error("shutdown cleanup failed", "error", cerr)
			err = errors.Join(err, cerr)
		}
	}()

	// --- security ---
	catalog, err := i18n.Load(cfg.Language)
	if err != nil {
		return err
	}
	text := i18n.NewActive(catalog)

	var audit *security.AuditLogger
	if path := cfg.AuditLogPath(); path != "" {
		al, closer, err := security.OpenAuditFile(path, redactor)
		if err != nil {
			return err
		}
		audit = al
		cleanup.add(closer.Close)
	} else {
		audit = security.NewAuditLogger(security.AuditLoggerConfig{Redactor: redactor})
	}
	limiter := security.NewRateLimiter(cfg.Security.RateLimits)

	// --- telemetry ---
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, params.Version)
	if err != nil {
		return err
	}
	cleanup.add(func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(sctx)
	})
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --- domain services ---
	store, err := chanconfig.Open(ctx, cfg.DatabasePath(), chanconfig.Options{
		DefaultBackend:       agent.Backend(cfg.Agents.Default),
		DefaultAssistantName: cfg.Agents.AssistantName,
	})
	if err != nil {
		return err
	}
	cleanup.add(store.Close)

	agentCfg := cfg.Agents.Config
	agentCfg.Environ = func() []string { return security.SanitizedEnv(os.Environ(), redactor) }
	factory, err := agent.NewCommandFactory(agentCfg)
	if err != nil {
		return err
	}
	sessions, err := session.NewCoordinator(session.Config{
		Factory:     factory,
		MaxSessions: cfg.Sessions.MaxSessions,
		Logger:      logger.With("component", "session"),
		Registerer:  registry,
	})
	if err != nil {
		return err
	}
	cleanup.add(func() error {
		sessions.CloseAll()
		return nil
	})

	loc := time.Local
	if cfg.Cron.Timezone != "" {
		if loc, err = time.LoadLocation(cfg.Cron.Timezone); err != nil {
			return err
		}
	}
	cronLogger := logger.With("component", "cron")
	manager, err := cron.NewManager(cron.ManagerConfig{
		Dir:         cfg.Cron.Dir,
		Engine:      cron.NewCronEngine(loc, cronLogger),
		FireTimeout: cfg.Cron.FireTimeout,
		Logger:      cronLogger,
		Metrics:     cron.NewMetrics(registry),
	})
	if err != nil {
		return err
	}
	if err := manager.LoadFromDisk(); err != nil {
		// A corrupt file has been moved aside; the store starts empty.
		if !errors.Is(err, cron.ErrCorruptSnapshot) {
			return err
		}
	}
	cleanup.add(manager.Flush)

	router := command.NewRouter(command.RouterConfig{
		Text:    text,
		Audit:   audit,
		Limiter: limiter,
		Logger:  logger.With("component", "command"),
	})
	if err := router.Register(command.Builtins(command.Deps{
		Sessions:    sessions,
		Channels:    store,
		Jobs:        manager,
		Text:        text,
		Audit:       audit,
		Limiter:     limiter,
		Logger:      logger.With("component", "command"),
		SessionDirs: cfg.Agents.SessionDirs,
		Location:    loc,
	})...); err != nil {
		return err
	}

	// --- modules ---
	appCtx := core.NewAppContext(logger, cfg.DataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("config.path", cfgPath)
	appCtx.RegisterService("app.version", params.Version)
	appCtx.RegisterService("metrics.registry", registry)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("security.audit", audit)
	appCtx.RegisterService("security.ratelimiter", limiter)
	appCtx.RegisterService("chanconfig.store", store)
	appCtx.RegisterService("session.coordinator", sessions)
	appCtx.RegisterService("cron.manager", manager)
	appCtx.RegisterService("command.router", router)

	application := core.NewApp(appCtx)
	appCtx.RegisterService("core.app", application)

	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return err
	}
	transport, err := findTransport(application, logger)
	if err != nil {
		return err
	}

	runner := turn.NewRunner(turn.Config{
		Timeout:    cfg.Turns.Timeout,
		Chunk:      channel.ChunkConfig{MaxLength: chunkLimit(transport), PreserveBlocks: true},
		Preamble:   cfg.Turns.Preamble,
		Names:      store,
		Touch:      sessions.Touch,
		Logger:     logger.With("component", "turn"),
		Registerer: registry,
	})
	appCtx.RegisterService("turn.runner", runner)
	cleanup.add(func() error {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return runner.Stop(sctx)
	})

	// The runtime lives on this stack; the scheduler only holds a weak
	// pointer to it and runtime.KeepAlive below pins it until shutdown.
	rt := &cron.Runtime{
		Sessions:       sessions,
		Channels:       store,
		Turns:          runner,
		DefaultBackend: agent.Backend(cfg.Agents.Default),
	}
	if err := manager.Init(transport, weak.Make(rt)); err != nil {
		logger.Warn("some jobs could not be scheduled", "error", err)
	}
	if cfg.Sessions.IdleTimeout > 0 {
		if err := manager.AddTask(&cron.SessionCleanupTask{
			Sessions:     sessions,
			MaxIdle:      cfg.Sessions.IdleTimeout,
			Logger:       cronLogger,
			ScheduleExpr: cfg.Sessions.CleanupSchedule,
		}); err != nil {
			return err
		}
	}
	if err := manager.AddTask(&limiterSweepTask{limiter: limiter}); err != nil {
		return err
	}
	application.AppendModule("cron.scheduler", &schedulerModule{manager: manager})

	handler := reload.NewHandler(reload.HandlerConfig{
		App:        application,
		AppContext: appCtx,
		ConfigPath: cfgPath,
		Level:      level,
		Text:       text,
		Redactor:   redactor,
		Audit:      audit,
		Logger:     logger.With("component", "reload"),
	})
	appCtx.RegisterService("reload.handler", handler)

	if err := application.Start(); err != nil {
		return err
	}
	defer runtime.KeepAlive(rt)

	return loop(ctx, logger, application, handler, cfgPath)
}

// loop blocks until shutdown, reloading on SIGHUP and config file changes.
func loop(ctx context.Context, logger *slog.Logger, application *core.App, handler *reload.Handler, cfgPath string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	watcher := reload.NewWatcher(reload.WatcherConfig{ConfigPath: cfgPath, Logger: logger})
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher unavailable, use SIGHUP to reload", "error", err)
	}
	defer watcher.Stop()

	doReload := func(reason string) {
		logger.Info("reloading configuration", "reason", reason)
		if err := handler.Reload(ctx); err != nil {
			logger.Error("reload failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown requested")
			application.Stop()
			return nil
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				doReload("SIGHUP")
				continue
			}
			logger.Info("shutdown signal received", "signal", sig.String())
			application.Stop()
			logger.Info("shutdown complete")
			return nil
		case evt := <-watcher.Events():
			doReload(fmt.Sprintf("file %s", evt.Type))
		}
	}
}

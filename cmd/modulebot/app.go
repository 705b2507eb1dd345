package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/modulebot/api/handlers"
	"github.com/BaSui01/modulebot/config"
	"github.com/BaSui01/modulebot/host"
	"github.com/BaSui01/modulebot/internal/configstore"
	"github.com/BaSui01/modulebot/internal/ctxkeys"
	"github.com/BaSui01/modulebot/internal/metrics"
	"github.com/BaSui01/modulebot/internal/server"
	"github.com/BaSui01/modulebot/internal/telemetry"
	"github.com/BaSui01/modulebot/internal/tlsutil"
	"github.com/BaSui01/modulebot/module"
	"github.com/BaSui01/modulebot/module/builtin"
	"github.com/BaSui01/modulebot/module/catalog"
)

// =============================================================================
// 🖥️ App 结构
// =============================================================================

// App owns the module manager and everything wired around it.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers
	store     configstore.Store
	catalog   module.Catalog
	collector *metrics.Collector
	manager   *module.Manager
	watcher   *catalog.Watcher
	admin     *server.Manager
}

// NewApp opens the store, builds the catalog and loads the registry.
// Autostart modules are enabled before NewApp returns.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	providers, err := telemetry.Init(ctx, cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	a.telemetry = providers

	store, err := configstore.Open(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	a.store = store

	out, err := outputWriter(cfg.Host.Output)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	bot := host.New(host.NewWriterTransport(out), store, cfg.Host, logger)

	cat := a.buildCatalog()
	a.catalog = cat
	a.collector = metrics.NewCollector("modulebot", logger)
	a.manager = module.NewManager(ctx, cat, bot,
		module.WithLogger(logger),
		module.WithBlacklist(cfg.Modules.Blacklist...),
		module.WithAutostart(cfg.Modules.Autostart...),
		module.WithOperationTimeout(cfg.Modules.OperationTimeout),
		module.WithObserver(a.collector),
		module.WithTracer(providers.Tracer("modulebot/module")),
		module.WithMeter(providers.Meter("modulebot/module")),
	)

	if cfg.Server.HTTPPort > 0 {
		srvCfg := server.Config{
			Addr:            cfg.Server.Addr(),
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     2 * cfg.Server.ReadTimeout,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}
		if cfg.Server.TLSEnabled() {
			tlsCfg, err := tlsutil.ServerTLSConfig(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
			if err != nil {
				a.Close(ctx)
				return nil, err
			}
			srvCfg.TLS = tlsCfg
		}
		// Handler 的限流清理协程随 ctx 退出
		a.admin = server.NewManager(a.Handler(ctx), srvCfg, logger)
	}

	logger.Info("module manager ready",
		zap.String("source", cfg.Modules.Source),
		zap.Strings("available", a.manager.ListAvailable()),
		zap.Strings("enabled", a.manager.ListEnabled()))
	return a, nil
}

func (a *App) buildCatalog() module.Catalog {
	if a.cfg.Modules.Source != "manifest" {
		return catalog.NewStatic(builtin.Descriptors()...)
	}
	dir := a.cfg.Modules.ManifestDir
	if a.cfg.Modules.WatchInterval > 0 {
		a.watcher = catalog.NewWatcher(dir, a.resyncFromWatcher,
			catalog.WithPollInterval(a.cfg.Modules.WatchInterval),
			catalog.WithDebounceDelay(a.cfg.Modules.DebounceDelay),
			catalog.WithWatcherLogger(a.logger))
	}
	return catalog.NewManifestCatalog(dir, builtin.Kinds(), catalog.WithManifestLogger(a.logger))
}

func (a *App) resyncFromWatcher(ctx context.Context) {
	report := a.manager.Resync(ctxkeys.WithSource(ctx, "watcher"))
	if report.Err != nil {
		a.logger.Warn("manifest resync failed", zap.Error(report.Err))
		return
	}
	a.logger.Info("manifest resync finished",
		zap.Int("removed", len(report.Removed)),
		zap.Int("reloaded", len(report.Reloaded)),
		zap.Int("added", len(report.Added)),
		zap.Int("failed", len(report.Failed())))
}

// Handler builds the admin routes behind the middleware chain.
func (a *App) Handler(ctx context.Context) http.Handler {
	health := handlers.NewHealthHandler(a.logger)
	if p, ok := a.store.(configstore.Pinger); ok {
		health.RegisterCheck(handlers.NewPingCheck("config_store", p.Ping))
	}
	health.RegisterCheck(handlers.NewCatalogCheck(a.catalog))
	modules := handlers.NewModuleHandler(a.manager, a.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("GET /metrics", a.collector.Handler())
	mux.HandleFunc("GET /v1/modules", modules.HandleList)
	mux.HandleFunc("GET /v1/modules/{name}", modules.HandleGet)
	mux.HandleFunc("POST /v1/modules/{name}/{op}", modules.HandleOperation)
	mux.HandleFunc("POST /v1/modules:resync", modules.HandleResync)

	return Chain(mux,
		Recovery(a.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(a.logger),
		MetricsMiddleware(a.collector),
		OTelTracing(),
		RateLimiter(ctx, float64(a.cfg.Server.RateLimitRPS), a.cfg.Server.RateLimitBurst),
		JWTAuth(a.cfg.Server.Auth, a.logger),
	)
}

// Manager exposes the module manager.
func (a *App) Manager() *module.Manager { return a.manager }

// Run blocks until ctx is done or a component fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if a.admin != nil {
		g.Go(func() error { return a.admin.Run(gctx) })
	}
	if a.watcher != nil {
		g.Go(func() error {
			if err := a.watcher.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// Close unloads every module, then releases the store and telemetry.
func (a *App) Close(ctx context.Context) {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultServerConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctxkeys.WithSource(context.WithoutCancel(ctx), "shutdown"), timeout)
	defer cancel()

	if a.manager != nil {
		for _, res := range a.manager.Unload(ctx) {
			if res.Teardown != nil {
				a.logger.Warn("module teardown failed", zap.String("module", res.Module), zap.Error(res.Teardown))
			}
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("config store close failed", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
}

func outputWriter(name string) (io.Writer, error) {
	switch name {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "discard":
		return io.Discard, nil
	}
	return nil, fmt.Errorf("unsupported host output: %s", name)
}

// adminTimeout bounds one admin CLI request.
const adminTimeout = 30 * time.Second

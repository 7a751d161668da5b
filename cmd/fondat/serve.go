// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/fondat/fondat-core/internal/auth"
	"github.com/fondat/fondat-core/internal/cache"
	"github.com/fondat/fondat-core/internal/certs"
	"github.com/fondat/fondat-core/internal/config"
	"github.com/fondat/fondat-core/internal/daemon"
	"github.com/fondat/fondat-core/internal/health"
	"github.com/fondat/fondat-core/internal/httpapi"
	applog "github.com/fondat/fondat-core/internal/log"
	"github.com/fondat/fondat-core/internal/middleware"
	"github.com/fondat/fondat-core/internal/notes"
	"github.com/fondat/fondat-core/internal/ratelimit"
	"github.com/fondat/fondat-core/internal/sql/sqlite"
	"github.com/fondat/fondat-core/internal/telemetry"
	"github.com/fondat/fondat-core/internal/version"
)

func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, loader)
		},
	}
}

// runtime holds what serve builds, so tests can exercise the router without listening.
type runtime struct {
	handler http.Handler
	db      *sqlite.Database
	cache   cache.Cache
	health  *health.Manager
	closers []func(context.Context) error
}

func (r *runtime) close(ctx context.Context) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i](ctx)
	}
}

func serve(ctx context.Context, cfg config.Config, loader *config.Loader) error {
	logger := applog.WithComponent("daemon")
	logger.Info().
		Str(applog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Server.Listen).
		Str("config", loader.Path()).
		Msg("starting fondat")

	tp, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	if err := certs.Ensure(cfg.Server.TLS, logger); err != nil {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}
	rt, err := build(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}

	mgr, err := daemon.NewManager(daemon.Deps{
		Logger:     logger,
		Server:     cfg.Server,
		APIHandler: rt.handler,
	})
	if err != nil {
		rt.close(ctx)
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}
	// LIFO: stores close before telemetry flushes.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("stores", func(ctx context.Context) error {
		rt.close(ctx)
		return nil
	})

	holder := config.NewConfigHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, holder)
	app.OnReload(func(next config.Config) {
		if next.Cache.TTL != cfg.Cache.TTL || next.Database != cfg.Database || next.Server.Listen != cfg.Server.Listen {
			logger.Warn().
				Str(applog.FieldEvent, "config.restart_required").
				Msg("changed settings take effect after restart")
		}
	})

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(applog.FieldEvent, "daemon.failed").Msg("daemon failed")
		return err
	}
	logger.Info().Msg("server exiting")
	return nil
}

// build opens the stores and assembles the HTTP handler.
func build(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{health: health.NewManager(version.Version)}
	fail := func(err error) (*runtime, error) {
		rt.close(ctx)
		return nil, err
	}

	if err := health.CheckDataDir(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("startup check: %w", err)
	}
	db, err := sqlite.OpenDatabase(cfg.Database.Path, cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.db = db
	rt.closers = append(rt.closers, func(context.Context) error { return db.Close() })
	rt.health.RegisterChecker(health.NewPingChecker("database", db.Ping))

	var loader *cache.Loader
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		mem := cache.NewMemoryCache(time.Minute)
		rt.cache = mem
		rt.closers = append(rt.closers, func(context.Context) error { mem.Stop(); return nil })
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.Redis, applog.WithComponent("cache"))
		if err != nil {
			return fail(err)
		}
		rt.cache = rc
		rt.closers = append(rt.closers, func(context.Context) error { return rc.Close() })
		rt.health.RegisterChecker(health.NewOptionalPingChecker("cache", rc.HealthCheck))
	case config.CacheBadger:
		bc, err := cache.NewBadgerCache(cfg.Cache.Badger, applog.WithComponent("cache"))
		if err != nil {
			return fail(err)
		}
		rt.cache = bc
		rt.closers = append(rt.closers, func(context.Context) error { return bc.Close() })
	}
	if rt.cache != nil && cfg.Cache.TTL > 0 {
		loader = cache.NewLoader(rt.cache)
	}

	if len(cfg.Auth.Tokens) == 0 {
		logger := applog.WithComponent("daemon")
		logger.Warn().
			Str(applog.FieldEvent, "auth.no_tokens").
			Str("security", "weak").
			Msg("no API tokens configured; every secured operation will be rejected")
	}
	svc, err := notes.New(db, notes.Options{
		Tokens:   auth.NewStaticTokens(cfg.Auth.Tokens...),
		Realm:    cfg.Auth.Realm,
		Cache:    loader,
		CacheTTL: cfg.Cache.TTL,
		BasePath: cfg.Server.BasePath,
		Title:    "fondat notes",
		Version:  cfg.Version,
	})
	if err != nil {
		return fail(err)
	}
	if err := svc.Migrate(ctx); err != nil {
		return fail(fmt.Errorf("migrate: %w", err))
	}

	proxies, err := middleware.ParseCIDRs(cfg.Server.TrustedProxies)
	if err != nil {
		return fail(err)
	}
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            len(cfg.Server.AllowedOrigins) > 0,
		AllowedOrigins:        cfg.Server.AllowedOrigins,
		EnableSecurityHeaders: true,
		TrustedProxies:        proxies,
		EnableMetrics:         true,
		TracingService:        tracingService(cfg),
		EnableLogging:         true,
		RateLimitRequests:     cfg.Server.RateLimitRequests,
		RateLimitWindow:       cfg.Server.RateLimitWindow,
		TokenBuckets: ratelimit.Config{
			GlobalRate:  rate.Limit(cfg.Server.GlobalRateLimit),
			GlobalBurst: cfg.Server.GlobalBurst,
			WriteRate:   rate.Limit(cfg.Server.WriteRateLimit),
			WriteBurst:  cfg.Server.WriteBurst,
		},
	})
	mount(r, rt.health, svc.Application(httpapi.WithMaxBodyBytes(cfg.Server.MaxBodyBytes)))
	rt.handler = r
	return rt, nil
}

func tracingService(cfg config.Config) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return cfg.Telemetry.ServiceName
}

// mount registers the operational endpoints and the API application on r.
func mount(r chi.Router, hm *health.Manager, app *httpapi.Application) {
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)

	base := app.Path()
	r.Handle(base+"*", app)
	if trimmed := strings.TrimSuffix(base, "/"); trimmed != "" {
		r.Handle(trimmed, app)
	}
}

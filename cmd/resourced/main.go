// Command resourced serves the resource permission and scheduling-privilege
// API: resource CRUD with permission validation, privilege search, the
// Redis-backed cache layer and the entity-delete cascade.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/aravindb26/middleware-sub022/pkg/api"
	"github.com/aravindb26/middleware-sub022/pkg/config"
	"github.com/aravindb26/middleware-sub022/pkg/events"
	"github.com/aravindb26/middleware-sub022/pkg/observability"
	"github.com/aravindb26/middleware-sub022/pkg/resource"
	"github.com/aravindb26/middleware-sub022/pkg/storage"
	"github.com/aravindb26/middleware-sub022/pkg/storage/cache"
	"github.com/aravindb26/middleware-sub022/pkg/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "resourced: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	log.Info("starting resourced",
		"port", cfg.Server.Port,
		"health_port", cfg.Server.HealthPort,
		"cache_enabled", cfg.Storage.CacheEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Storage.MigrateOnStart {
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return err
		}
		log.Info("schema migrations applied")
	}

	// Metrics objects are always live so callers never branch; with metrics
	// disabled they register into a registry nothing serves.
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	pgStore := postgres.NewResourceStore(db)
	var store storage.ResourceStorage = pgStore
	var invalidator storage.CacheInvalidator

	if cfg.Storage.CacheEnabled {
		redisClient, err := cache.Connect(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		caching := cache.New(pgStore, redisClient, cfg.Storage, log, metrics)
		store = caching
		invalidator = caching
		log.Info("redis cache layer enabled", "addr", cfg.Storage.RedisAddr)
	}

	properties := config.NewPropertyService(db, cfg.Properties, log)
	defer properties.Close()
	if cfg.Properties.File != "" {
		if err := properties.WatchFile(cfg.Properties.File); err != nil {
			return err
		}
		log.Info("property file loaded", "file", cfg.Properties.File)
	}

	directory := postgres.NewDirectory(db)
	deps := resource.ValidatorDeps{
		Groups:     directory,
		Users:      directory,
		Properties: properties,
	}

	bus := events.NewBus()
	bus.Subscribe(events.NewEntityDeleteListener(store, invalidator, log, metrics))

	service := api.NewService(db, store, deps, bus, pgStore, log)
	server := api.NewServer(service, log, metrics)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Properties.UseCountPurgeSchedule, func() {
		n, err := pgStore.DeleteOutdatedUseCounts(context.Background(), cfg.Properties.UseCountRetention)
		if err != nil {
			log.WithError(err).Error("use count purge failed")
			return
		}
		log.Info("purged outdated use counts", "deleted", n)
	})
	if err != nil {
		return fmt.Errorf("schedule use count purge: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("health server listening", "addr", healthServer.Addr)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"finboard/internal/amqp"
	"finboard/internal/analytics"
	"finboard/internal/backend"
	"finboard/internal/budget"
	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/dashboard"
	apphttp "finboard/internal/http"
	"finboard/internal/layout"
	"finboard/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	repo := cli.OpenStore(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(repo, logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	budgets := budget.NewService(repo, res.Source, logger)
	loader := analytics.NewLoader(res.Source, budgets, analytics.Config{
		TTL:            cfg.CacheTTL,
		Retention:      cfg.CacheRetention,
		MaxEntries:     cfg.CacheSize,
		RefreshTimeout: cfg.CacheRefreshTimeout,
	}, logger)

	// Invalidation fan-out is optional; without a broker each instance only
	// sees its own imports until entries go stale.
	var (
		publisher dashboard.Publisher
		events    *amqp.Client
	)
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, cache invalidation stays local", log.FieldError, err)
		} else {
			publisher = events
		}
	}

	dash := dashboard.NewService(loader, repo, res.Source, res.Source, budgets, publisher, dashboard.Config{}, logger)

	caches := cache.NewManager(logger)
	caches.Register("analytics", loader.Cache())
	caches.Register("charts", dash.Memo())
	caches.StartCleanup(cfg.CacheCleanup)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Dashboard: dash,
		Layouts:   layout.NewStore(repo),
		Cache:     loader,
		Ready:     repo.Ping,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		loader.Wait()
	})

	if events != nil {
		defer events.Close()
		go func() {
			if err := events.Run(ctx, dash.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumer stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting finboard server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

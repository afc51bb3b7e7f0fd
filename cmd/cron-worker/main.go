package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backoffice/internal/audit"
	"github.com/angelmondragon/storefront-backoffice/internal/cron"
	"github.com/angelmondragon/storefront-backoffice/internal/inventory"
	"github.com/angelmondragon/storefront-backoffice/internal/restock"
	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/db"
	"github.com/angelmondragon/storefront-backoffice/pkg/instance"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
	"github.com/angelmondragon/storefront-backoffice/pkg/migrate"
	"github.com/angelmondragon/storefront-backoffice/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	registry := prometheus.NewRegistry()
	cronMetrics := metrics.NewCronMetrics(registry)
	restockMetrics := metrics.NewRestockMetrics(registry)

	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), auditService, dbClient, nil, logg)
	if err != nil {
		return err
	}
	restockService, err := restock.NewService(restock.ServiceParams{
		Repo:      restock.NewRepository(dbClient.DB()),
		Inventory: inventoryService,
		Tx:        dbClient,
		Metrics:   restockMetrics,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	expiryReport, err := cron.NewRestockExpiryReportJob(cron.RestockExpiryReportJobParams{
		Logger:   logg,
		Requests: restockService,
		Metrics:  restockMetrics,
	})
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, cron.LockName, cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryReport),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID("cron-0"),
	})

	metricsServer := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		err = multierr.Append(err, metricsServer.Shutdown(shutdownCtx))
	}()

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backoffice/api/routes"
	"github.com/angelmondragon/storefront-backoffice/internal/audit"
	"github.com/angelmondragon/storefront-backoffice/internal/inventory"
	product "github.com/angelmondragon/storefront-backoffice/internal/products"
	"github.com/angelmondragon/storefront-backoffice/internal/restock"
	"github.com/angelmondragon/storefront-backoffice/internal/users"
	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/db"
	"github.com/angelmondragon/storefront-backoffice/pkg/instance"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/mailer"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
	"github.com/angelmondragon/storefront-backoffice/pkg/migrate"
	"github.com/angelmondragon/storefront-backoffice/pkg/redis"
	"github.com/angelmondragon/storefront-backoffice/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
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

	cipher, err := security.NewCodeCipher(cfg.Restock.CodeSecret)
	if err != nil {
		return err
	}
	if !cipher.Enabled() {
		logg.Warn(bootCtx, "restock code secret not set; cancellation notices will only carry the code hint")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	restockMetrics := metrics.NewRestockMetrics(registry)

	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	products, err := product.NewLookup(product.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), auditService, dbClient, products, logg)
	if err != nil {
		return err
	}

	restockService, err := restock.NewService(restock.ServiceParams{
		Repo:       restock.NewRepository(dbClient.DB()),
		Inventory:  inventoryService,
		Tx:         dbClient,
		Cipher:     cipher,
		Mailer:     mailer.New(cfg.SMTP, cfg.Mailer, logg),
		Products:   products,
		Metrics:    restockMetrics,
		Logger:     logg,
		CodeTTL:    cfg.Restock.CodeTTL,
		CodeLength: cfg.Restock.CodeLength,
	})
	if err != nil {
		return err
	}

	emails, err := users.NewEmailLookup(users.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID("local"),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Gatherer:  registry,
			Inventory: inventoryService,
			Audit:     auditService,
			Restock:   restockService,
			Emails:    emails,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serveErr
}

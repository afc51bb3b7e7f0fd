package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backoffice/api/controllers"
	"github.com/angelmondragon/storefront-backoffice/api/middleware"
	"github.com/angelmondragon/storefront-backoffice/internal/audit"
	"github.com/angelmondragon/storefront-backoffice/internal/inventory"
	"github.com/angelmondragon/storefront-backoffice/internal/restock"
	"github.com/angelmondragon/storefront-backoffice/internal/users"
	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backoffice/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer relies on.
type RedisStore interface {
	pkgredis.IdempotencyStore
	CountRedemptionAttempt(ctx context.Context, scope string, window time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

type RouterParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        controllers.Pinger
	Redis     RedisStore
	Gatherer  prometheus.Gatherer
	Inventory inventory.Service
	Audit     audit.Service
	Restock   restock.Service
	Emails    users.EmailLookup
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.CORS(cfg.HTTP.AllowedOrigins),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	scanPolicy := middleware.NewRedemptionRateLimitPolicy(
		"scan",
		cfg.RedemptionRateLimit.Window,
		cfg.RedemptionRateLimit.IPLimit,
		cfg.RedemptionRateLimit.UserLimit,
	)
	fulfillPolicy := middleware.NewRedemptionRateLimitPolicy(
		"fulfill",
		cfg.RedemptionRateLimit.Window,
		cfg.RedemptionRateLimit.IPLimit,
		cfg.RedemptionRateLimit.UserLimit,
	)
	createPolicy := middleware.IdempotencyPolicy{TTL: cfg.Restock.IdempotencyTTL}

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(
			middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleDevice),
			middleware.RedemptionRateLimit(scanPolicy, p.Redis, logg),
		).Post("/restock-requests/scan", controllers.AdminScanRestockCode(p.Restock, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))

			r.Post("/inventory", controllers.AdminCreateInventory(p.Inventory, logg))
			r.Get("/inventory/{inventoryId}", controllers.AdminGetInventory(p.Inventory, logg))
			r.Post("/inventory/{inventoryId}/adjust", controllers.AdminAdjustInventory(p.Inventory, logg))
			r.Get("/inventory/{inventoryId}/audit", controllers.AdminInventoryAudit(p.Audit, logg))
			r.Get("/products/{productId}/audit", controllers.AdminProductAudit(p.Audit, logg))

			r.With(middleware.Idempotency(createPolicy, p.Redis, logg)).Post("/restock-requests", controllers.AdminCreateRestockRequest(p.Restock, logg))
			r.Get("/restock-requests", controllers.AdminListRestockRequests(p.Restock, logg))
			r.Post("/restock-requests/{requestId}/cancel", controllers.AdminCancelRestockRequest(p.Restock, logg))
		})
	})

	r.Route("/api/v1/supplier", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleSupplier))
		r.With(middleware.RedemptionRateLimit(fulfillPolicy, p.Redis, logg)).
			Post("/restock/fulfill", controllers.SupplierFulfillRestock(p.Restock, p.Emails, logg))
	})

	return r
}

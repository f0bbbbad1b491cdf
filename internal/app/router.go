package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/inventory"
	"github.com/stockroom-hq/stockroom/internal/notification"
	"github.com/stockroom-hq/stockroom/internal/observability"
	"github.com/stockroom-hq/stockroom/internal/purchaseorder"
	"github.com/stockroom-hq/stockroom/internal/supplier"
	"github.com/stockroom-hq/stockroom/internal/users"
	"github.com/stockroom-hq/stockroom/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	Users                *users.Service
	InventoryHandler     *inventory.Handler
	PurchaseOrderHandler *purchaseorder.Handler
	SupplierHandler      *supplier.Handler
	AuditHandler         *audit.Handler
	NotificationHandler  *notification.Handler
	JobsHandler          *jobs.Handler
	Metrics              *observability.Metrics
	Pool                 *pgxpool.Pool
}

// NewRouter constructs the chi.Router with Stockroom defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
		Users:  params.Users,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)
	r.Use(params.Metrics.Middleware)

	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireActor(params.Users, params.Logger))

		params.InventoryHandler.MountRoutes(r)
		params.PurchaseOrderHandler.MountRoutes(r)
		params.SupplierHandler.MountRoutes(r)
		params.AuditHandler.MountRoutes(r)
		params.NotificationHandler.MountRoutes(r)
	})

	return r
}

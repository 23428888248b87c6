package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperline-erp/paperline-erp/internal/audit"
	"github.com/paperline-erp/paperline-erp/internal/catalog"
	"github.com/paperline-erp/paperline-erp/internal/identity"
	"github.com/paperline-erp/paperline-erp/internal/observability"
	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/processing"
	"github.com/paperline-erp/paperline-erp/internal/stock"
	"github.com/paperline-erp/paperline-erp/internal/transfer"
	"github.com/paperline-erp/paperline-erp/internal/warehouse"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Pool              *pgxpool.Pool
	Metrics           *observability.Metrics
	WarehouseHandler  *warehouse.Handler
	CatalogHandler    *catalog.Handler
	StockHandler      *stock.Handler
	OrdersHandler     *orders.Handler
	TransferHandler   *transfer.Handler
	ProcessingHandler *processing.Handler
	AuditHandler      *audit.Handler
	IdentityHandler   *identity.Handler
}

// NewRouter constructs the chi.Router with Paperline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.WarehouseHandler != nil {
		r.Route("/warehouses", params.WarehouseHandler.MountRoutes)
	}
	if params.CatalogHandler != nil {
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
	}
	if params.StockHandler != nil {
		r.Route("/stock", params.StockHandler.MountRoutes)
	}
	if params.OrdersHandler != nil {
		r.Route("/orders", params.OrdersHandler.MountRoutes)
	}
	if params.TransferHandler != nil {
		r.Route("/transfers", params.TransferHandler.MountRoutes)
	}
	if params.ProcessingHandler != nil {
		r.Route("/processing", params.ProcessingHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.IdentityHandler != nil {
		r.Route("/identity", params.IdentityHandler.MountRoutes)
	}

	return r
}

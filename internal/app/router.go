package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tillpoint/tillpoint/internal/analytics"
	"github.com/tillpoint/tillpoint/internal/customers"
	"github.com/tillpoint/tillpoint/internal/inventory"
	"github.com/tillpoint/tillpoint/internal/masterdata/categories"
	"github.com/tillpoint/tillpoint/internal/masterdata/products"
	"github.com/tillpoint/tillpoint/internal/masterdata/suppliers"
	"github.com/tillpoint/tillpoint/internal/procurement"
	"github.com/tillpoint/tillpoint/internal/sales"
	"github.com/tillpoint/tillpoint/internal/users"
	"github.com/tillpoint/tillpoint/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ProductsHandler    *products.Handler
	CategoriesHandler  *categories.Handler
	SuppliersHandler   *suppliers.Handler
	CustomersHandler   *customers.Handler
	UsersHandler       *users.Handler
	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	AnalyticsHandler   *analytics.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with Tillpoint defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.ProductsHandler != nil {
			params.ProductsHandler.MountRoutes(r)
		}
		if params.CategoriesHandler != nil {
			params.CategoriesHandler.MountRoutes(r)
		}
		if params.SuppliersHandler != nil {
			params.SuppliersHandler.MountRoutes(r)
		}
		if params.CustomersHandler != nil {
			params.CustomersHandler.MountRoutes(r)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.ProcurementHandler != nil {
			params.ProcurementHandler.MountRoutes(r)
		}
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(r)
		}
		if params.AnalyticsHandler != nil {
			params.AnalyticsHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}

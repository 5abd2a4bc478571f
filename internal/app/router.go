package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jetpos/jetpos-backoffice/internal/catalog"
	"github.com/jetpos/jetpos-backoffice/internal/documents"
	"github.com/jetpos/jetpos-backoffice/internal/ledger"
	"github.com/jetpos/jetpos-backoffice/internal/shared"
	"github.com/jetpos/jetpos-backoffice/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	DocumentsHandler *documents.Handler
	LedgerHandler    *ledger.Handler
	CatalogHandler   *catalog.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router.
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

	r.Group(func(r chi.Router) {
		r.Use(tenantMiddleware(params.Logger))
		r.Route("/documents", params.DocumentsHandler.MountRoutes)
		r.Route("/ledger", params.LedgerHandler.MountRoutes)
		r.Route("/products", params.CatalogHandler.MountRoutes)
	})

	r.Route("/jobs", params.JobHandler.MountRoutes)

	return r
}

// Lookups composes the cari and product pick-lists the document form
// needs out of the ledger and catalog services.
type Lookups struct {
	Ledger  *ledger.Service
	Catalog *catalog.Service
}

// CariOptions lists counterparties matching the search term.
func (l Lookups) CariOptions(ctx context.Context, tenant shared.Tenant, search string) ([]documents.CariOption, error) {
	accounts, err := l.Ledger.ListAccounts(ctx, tenant.ID, search)
	if err != nil {
		return nil, err
	}
	options := make([]documents.CariOption, 0, len(accounts))
	for _, acc := range accounts {
		options = append(options, documents.CariOption{
			ID:        acc.ID,
			Name:      acc.Name,
			TaxNumber: acc.TaxNumber,
			TaxOffice: acc.TaxOffice,
			Address:   acc.Address,
		})
	}
	return options, nil
}

// ProductOptions lists products matching the search term.
func (l Lookups) ProductOptions(ctx context.Context, tenant shared.Tenant, search string) ([]documents.ProductOption, error) {
	return l.Catalog.ProductOptions(ctx, tenant, search)
}

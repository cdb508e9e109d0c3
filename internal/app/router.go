package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/accounting"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/approval"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/invoice"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/payment"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/vendor"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InvoiceHandler    *invoice.Handler
	ApprovalHandler   *approval.Handler
	PaymentHandler    *payment.Handler
	VendorHandler     *vendor.Handler
	AccountingHandler *accounting.Handler
	Pool              *pgxpool.Pool
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

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("readiness check failed", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/invoices", params.InvoiceHandler.MountRoutes)
		r.Route("/approvals", params.ApprovalHandler.MountRoutes)
		r.Route("/payments", params.PaymentHandler.MountRoutes)
		r.Route("/vendors", params.VendorHandler.MountRoutes)
		r.Route("/accounting", params.AccountingHandler.MountRoutes)
	})

	return r
}

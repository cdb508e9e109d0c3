package accounting

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/platform/httpx"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// Handler exposes the chart of accounts and integration endpoints.
type Handler struct {
	logger    *slog.Logger
	coa       *COAService
	factory   *ClientFactory
	store     ConnectionStore
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, coa *COAService, factory *ClientFactory, store ConnectionStore) *Handler {
	return &Handler{
		logger:    logger,
		coa:       coa,
		factory:   factory,
		store:     store,
		validator: validator.New(),
	}
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.accounts)
	r.Get("/accounts/expense", h.expenseAccounts)
	r.Get("/accounts/payment", h.paymentAccounts)
	r.Get("/accounts/{externalID}", h.accountByID)
	r.Post("/cache/invalidate", h.invalidateCache)
	r.Get("/connection", h.connection)
	r.Put("/connection", h.saveConnection)
	r.Post("/connection/test", h.testConnection)
}

func (h *Handler) accounts(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	q := r.URL.Query()
	var accounts []Account
	switch {
	case q.Get("search") != "":
		accounts = h.coa.SearchAccounts(r.Context(), ident.CompanyID, q.Get("search"))
	case q.Get("type") != "":
		accounts = h.coa.GetAccountsByType(r.Context(), ident.CompanyID, AccountType(q.Get("type")))
	default:
		accounts = h.coa.GetAllAccounts(r.Context(), ident.CompanyID)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) expenseAccounts(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	accounts := h.coa.GetExpenseAccounts(r.Context(), ident.CompanyID)
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) paymentAccounts(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	accounts := h.coa.GetPaymentAccounts(r.Context(), ident.CompanyID)
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) accountByID(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	account := h.coa.GetAccountByID(r.Context(), ident.CompanyID, chi.URLParam(r, "externalID"))
	if account == nil {
		httpx.RespondError(w, shared.NotFoundf("account %s", chi.URLParam(r, "externalID")))
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) invalidateCache(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	h.coa.InvalidateCache(r.Context(), ident.CompanyID)
	w.WriteHeader(http.StatusNoContent)
}

// connectionView hides the access token from API responses.
type connectionView struct {
	Provider   Provider `json:"provider"`
	BaseURL    string   `json:"base_url,omitempty"`
	RealmID    string   `json:"realm_id,omitempty"`
	Configured bool     `json:"configured"`
}

func (h *Handler) connection(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	conn, err := h.store.GetConnection(r.Context(), ident.CompanyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, connectionView{
		Provider:   conn.Provider,
		BaseURL:    conn.BaseURL,
		RealmID:    conn.RealmID,
		Configured: conn.Provider != ProviderNone && conn.Provider != "",
	})
}

type connectionRequest struct {
	Provider    Provider `json:"provider" validate:"required,oneof=NONE ENDRAAJ QUICKBOOKS"`
	BaseURL     string   `json:"base_url" validate:"omitempty,url"`
	AccessToken string   `json:"access_token"`
	RealmID     string   `json:"realm_id"`
}

func (h *Handler) saveConnection(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	var req connectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid body: %v", err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	err := h.store.SaveConnection(r.Context(), Connection{
		CompanyID:   ident.CompanyID,
		Provider:    req.Provider,
		BaseURL:     req.BaseURL,
		AccessToken: req.AccessToken,
		RealmID:     req.RealmID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.coa.InvalidateCache(r.Context(), ident.CompanyID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) testConnection(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	client, err := h.factory.ClientFor(r.Context(), ident.CompanyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	alive, err := client.TestConnection(r.Context())
	if err != nil {
		h.logger.Warn("accounting connection test failed", "company_id", ident.CompanyID, "error", err)
		httpx.JSON(w, http.StatusOK, map[string]any{"connected": false, "error": err.Error()})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"connected": alive})
}

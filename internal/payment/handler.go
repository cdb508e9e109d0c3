package payment

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/platform/httpx"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// Handler exposes payment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pending", h.pending)
	r.Get("/statistics", h.statistics)
	r.Post("/preview", h.preview)
	r.Post("/invoices/{invoiceID}/schedule", h.schedule)
	r.Post("/{id}/execute", h.execute)
	r.Delete("/{id}", h.cancel)
}

type scheduleRequest struct {
	PaymentAccountID string     `json:"payment_account_id" validate:"required"`
	Method           string     `json:"method"`
	ScheduledDate    *time.Time `json:"scheduled_date"`
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	invoiceID, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid invoice id"))
		return
	}

	var req scheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid body: %v", err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}

	input := ScheduleInput{
		PaymentAccountID: req.PaymentAccountID,
		Method:           req.Method,
	}
	if req.ScheduledDate != nil {
		input.ScheduledDate = *req.ScheduledDate
	}

	p, err := h.service.Schedule(r.Context(), invoiceID, ident.UserID, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid payment id"))
		return
	}
	p, err := h.service.Execute(r.Context(), id, ident.UserID)
	if err != nil {
		h.logger.Error("payment execution failed", "payment_id", id, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid payment id"))
		return
	}
	if err := h.service.Cancel(r.Context(), id, ident.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type previewRequest struct {
	InvoiceID        uuid.UUID `json:"invoice_id" validate:"required"`
	PaymentAccountID string    `json:"payment_account_id" validate:"required"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid body: %v", err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	entry, err := h.service.PreviewJournalEntry(r.Context(), req.InvoiceID, req.PaymentAccountID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	payments, err := h.service.Pending(r.Context(), ident.CompanyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	stats, err := h.service.Statistics(r.Context(), ident.CompanyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

package invoice

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/platform/httpx"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// maxUploadSize caps multipart invoice uploads (25MB).
const maxUploadSize = 25 << 20

// Handler exposes invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.upload)
	r.Get("/", h.list)
	r.Get("/statistics", h.statistics)
	r.Get("/{id}", h.get)
	r.Get("/{id}/document", h.document)
	r.Put("/{id}", h.update)
	r.Put("/{id}/items", h.updateItems)
	r.Post("/{id}/submit", h.submit)
	r.Delete("/{id}", h.remove)
}

func identity(r *http.Request) (shared.Identity, bool) {
	return shared.IdentityFromContext(r.Context())
}

func invoiceID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, shared.Validationf("invalid invoice id")
	}
	return id, nil
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid multipart body: %v", err))
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		httpx.RespondError(w, shared.Validationf("document field is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("unreadable document: %v", err))
		return
	}

	d, err := h.service.Upload(r.Context(), UploadInput{
		CompanyID:    ident.CompanyID,
		UploadedByID: ident.UserID,
		FileName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Content:      content,
	})
	if err != nil {
		h.logger.Error("invoice upload failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}

	q := r.URL.Query()
	filter := ListFilter{
		CompanyID: ident.CompanyID,
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortDir:   q.Get("sort_dir"),
	}
	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		filter.Status = &status
	}
	if raw := q.Get("vendor_id"); raw != "" {
		vendorID, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("invalid vendor id"))
			return
		}
		filter.VendorID = &vendorID
	}
	filter.Page = intQuery(q.Get("page"))
	filter.PageSize = intQuery(q.Get("page_size"))

	invoices, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   invoices,
		"pagination": shared.NewPagination(filter.Page, filter.PageSize, total),
	})
}

func intQuery(raw string) int {
	n := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
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

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	url, err := h.service.DocumentURL(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if url != "" {
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}
	content, contentType, fileName, err := h.service.Document(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+fileName+`"`)
	_, _ = w.Write(content)
}

type updateRequest struct {
	VendorID      *uuid.UUID `json:"vendor_id"`
	InvoiceNumber string     `json:"invoice_number" validate:"required,max=100"`
	InvoiceDate   time.Time  `json:"invoice_date" validate:"required"`
	DueDate       *time.Time `json:"due_date"`
	Currency      string     `json:"currency" validate:"omitempty,len=3"`
	Notes         *string    `json:"notes"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid body: %v", err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}

	d, err := h.service.Update(r.Context(), id, ident.UserID, UpdateInput{
		VendorID:      req.VendorID,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceDate:   req.InvoiceDate,
		DueDate:       req.DueDate,
		Currency:      req.Currency,
		Notes:         req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

type itemRequest struct {
	ExpenseAccountID string    `json:"expense_account_id"`
	Description      string    `json:"description" validate:"required"`
	Quantity         float64   `json:"quantity" validate:"gte=0"`
	Unit             string    `json:"unit"`
	UnitPrice        float64   `json:"unit_price" validate:"gte=0"`
	TaxAmount        float64   `json:"tax_amount" validate:"gte=0"`
	Amount           float64   `json:"amount" validate:"gt=0"`
	MatchType        MatchType `json:"match_type"`
}

type updateItemsRequest struct {
	Items []itemRequest `json:"items" validate:"required,dive"`
}

func (h *Handler) updateItems(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req updateItemsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid body: %v", err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}

	inputs := make([]ItemInput, len(req.Items))
	for i, item := range req.Items {
		inputs[i] = ItemInput{
			ExpenseAccountID: item.ExpenseAccountID,
			Description:      item.Description,
			Quantity:         item.Quantity,
			Unit:             item.Unit,
			UnitPrice:        item.UnitPrice,
			TaxAmount:        item.TaxAmount,
			Amount:           item.Amount,
			MatchType:        item.MatchType,
		}
	}

	d, err := h.service.UpdateLineItems(r.Context(), id, ident.UserID, inputs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.SubmitForApproval(r.Context(), id, ident.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, ident.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package approval

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/platform/httpx"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// Handler exposes the approval workflow endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	roles   RoleResolver
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roles RoleResolver) *Handler {
	return &Handler{logger: logger, service: service, roles: roles}
}

// MountRoutes registers approval routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pending", h.pending)
	r.Get("/pending/count", h.pendingCount)
	r.Get("/rules", h.rules)
	r.Get("/{id}/history", h.history)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
}

type decisionRequest struct {
	Comments string `json:"comments"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid invoice id"))
		return
	}
	var req decisionRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, shared.Validationf("invalid body: %v", err))
			return
		}
	}
	d, err := h.service.Approve(r.Context(), id, ident.UserID, req.Comments)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid invoice id"))
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid body: %v", err))
		return
	}
	d, err := h.service.Reject(r.Context(), id, ident.UserID, req.Comments)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid invoice id"))
		return
	}
	records, err := h.service.History(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": records})
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	role, err := h.roles.MemberRole(r.Context(), ident.CompanyID, ident.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	queue, err := h.service.PendingQueue(r.Context(), ident.CompanyID, role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": queue})
}

func (h *Handler) pendingCount(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	role, err := h.roles.MemberRole(r.Context(), ident.CompanyID, ident.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	count, err := h.service.PendingCount(r.Context(), ident.CompanyID, role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) rules(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	rules, err := h.service.Rules(r.Context(), ident.CompanyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rules": rules})
}

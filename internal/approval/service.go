package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/invoice"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// RoleResolver looks up a user's role within a company.
type RoleResolver interface {
	MemberRole(ctx context.Context, companyID, userID uuid.UUID) (shared.Role, error)
}

// Service decides which tier an invoice needs, walks it through the tiers and
// records every decision.
type Service struct {
	invoices invoice.Repository
	roles    RoleResolver
	config   ConfigStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the approval service.
func NewService(invoices invoice.Repository, roles RoleResolver, config ConfigStore, logger *slog.Logger) *Service {
	return &Service{
		invoices: invoices,
		roles:    roles,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// RoleSatisfies reports whether a role carries enough authority for a tier.
// The top tier is reserved for super admins.
func RoleSatisfies(level invoice.ApprovalLevel, role shared.Role) bool {
	switch level {
	case invoice.LevelManager:
		return role.AtLeast(shared.RoleManager)
	case invoice.LevelAdmin:
		return role.AtLeast(shared.RoleAdmin)
	case invoice.LevelCFO:
		return role.AtLeast(shared.RoleSuperAdmin)
	}
	return false
}

// RoleLevel returns the highest tier a role may decide, or 0 for none.
func RoleLevel(role shared.Role) invoice.ApprovalLevel {
	switch {
	case role.AtLeast(shared.RoleSuperAdmin):
		return invoice.LevelCFO
	case role.AtLeast(shared.RoleAdmin):
		return invoice.LevelAdmin
	case role.AtLeast(shared.RoleManager):
		return invoice.LevelManager
	}
	return 0
}

// RequiredLevel computes the tier an invoice must ultimately clear from its
// total amount and the vendor's history. A vendor's first invoice always goes
// at least to an admin, whatever the amount.
func (s *Service) RequiredLevel(ctx context.Context, inv invoice.Invoice) (invoice.ApprovalLevel, error) {
	t, err := s.config.Thresholds(ctx, inv.CompanyID)
	if err != nil {
		return 0, err
	}

	level := invoice.LevelAdmin
	switch {
	case inv.TotalAmount <= t.ManagerMax:
		level = invoice.LevelManager
	case inv.TotalAmount > t.CFOMax:
		level = invoice.LevelCFO
	}

	if level < invoice.LevelAdmin && inv.VendorID != nil {
		prior, err := s.invoices.CountByVendor(ctx, *inv.VendorID, inv.ID)
		if err != nil {
			return 0, err
		}
		if prior == 0 {
			level = invoice.LevelAdmin
		}
	}
	return level, nil
}

// CurrentLevel derives the tier the invoice is waiting at from its status and
// pending records. Every status is accounted for; non-pending statuses are a
// state conflict.
func CurrentLevel(d invoice.WithDetails) (invoice.ApprovalLevel, error) {
	switch d.Status {
	case invoice.StatusPendingManagerReview:
		return invoice.LevelManager, nil
	case invoice.StatusPendingAdminApproval:
		if d.PendingApprovalAt(invoice.LevelCFO) != nil {
			return invoice.LevelCFO, nil
		}
		return invoice.LevelAdmin, nil
	case invoice.StatusDraft,
		invoice.StatusRejectedByManager,
		invoice.StatusRejectedByAdmin,
		invoice.StatusApproved,
		invoice.StatusPaymentPending,
		invoice.StatusPaymentProcessing,
		invoice.StatusCompleted:
		return 0, shared.StateConflictf("invoice %s is not awaiting approval (status %s)", d.ID, d.Status)
	}
	return 0, shared.StateConflictf("invoice %s has unknown status %q", d.ID, d.Status)
}

// CanApprove reports whether the role may decide the invoice as it stands
// right now. It never returns an error; any irregular state is simply "no".
func CanApprove(role shared.Role, d invoice.WithDetails) bool {
	level, err := CurrentLevel(d)
	if err != nil {
		return false
	}
	return RoleSatisfies(level, role)
}

// Approve records a decision at the invoice's current tier. If the tier
// satisfies the required level the invoice becomes Approved; otherwise it
// escalates and a pending record for the next tier is opened.
func (s *Service) Approve(ctx context.Context, invoiceID, actorID uuid.UUID, comments string) (invoice.WithDetails, error) {
	d, err := s.invoices.GetWithDetails(ctx, invoiceID)
	if err != nil {
		return invoice.WithDetails{}, err
	}

	// Membership before anything else; outsiders must not learn the
	// invoice's state from the error.
	role, err := s.roles.MemberRole(ctx, d.CompanyID, actorID)
	if err != nil {
		return invoice.WithDetails{}, err
	}

	level, err := CurrentLevel(d)
	if err != nil {
		return invoice.WithDetails{}, err
	}
	if !RoleSatisfies(level, role) {
		return invoice.WithDetails{}, shared.Unauthorizedf("role %s cannot approve at level %s", role, level)
	}

	required, err := s.RequiredLevel(ctx, d.Invoice)
	if err != nil {
		return invoice.WithDetails{}, err
	}

	rec := d.PendingApprovalAt(level)
	if rec == nil {
		return invoice.WithDetails{}, shared.StateConflictf("invoice %s has no pending approval at level %s", d.ID, level)
	}

	now := s.now()
	err = s.invoices.WithTx(ctx, func(ctx context.Context, tx invoice.TxRepository) error {
		decided := *rec
		decided.ApproverID = &actorID
		decided.Status = invoice.ApprovalApproved
		decided.DecidedAt = &now
		if c := strings.TrimSpace(comments); c != "" {
			decided.Comments = &c
		}
		if err := tx.UpdateApproval(ctx, decided); err != nil {
			return err
		}

		if level >= required {
			return tx.UpdateStatus(ctx, d.ID, invoice.StatusApproved)
		}

		next := level + 1
		if err := tx.UpdateStatus(ctx, d.ID, invoice.StatusPendingAdminApproval); err != nil {
			return err
		}
		// An earlier escalation may already have opened the record; at most
		// one pending record exists per level.
		if d.PendingApprovalAt(next) != nil {
			return nil
		}
		return tx.CreateApproval(ctx, invoice.ApprovalRecord{
			ID:        uuid.New(),
			InvoiceID: d.ID,
			Level:     next,
			Status:    invoice.ApprovalPending,
			CreatedAt: now,
		})
	})
	if err != nil {
		return invoice.WithDetails{}, err
	}

	s.logger.Info("invoice approval recorded",
		"invoice_id", d.ID,
		"level", level.String(),
		"required", required.String(),
		"approver_id", actorID,
		"final", level >= required,
	)
	return s.invoices.GetWithDetails(ctx, invoiceID)
}

// Reject records a rejection at the invoice's current tier. Rejections always
// need a comment; the uploader has to know what to fix.
func (s *Service) Reject(ctx context.Context, invoiceID, actorID uuid.UUID, comments string) (invoice.WithDetails, error) {
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return invoice.WithDetails{}, shared.Validationf("rejection comments are required")
	}

	d, err := s.invoices.GetWithDetails(ctx, invoiceID)
	if err != nil {
		return invoice.WithDetails{}, err
	}

	role, err := s.roles.MemberRole(ctx, d.CompanyID, actorID)
	if err != nil {
		return invoice.WithDetails{}, err
	}

	level, err := CurrentLevel(d)
	if err != nil {
		return invoice.WithDetails{}, err
	}
	if !RoleSatisfies(level, role) {
		return invoice.WithDetails{}, shared.Unauthorizedf("role %s cannot reject at level %s", role, level)
	}

	rec := d.PendingApprovalAt(level)
	if rec == nil {
		return invoice.WithDetails{}, shared.StateConflictf("invoice %s has no pending approval at level %s", d.ID, level)
	}

	rejectedStatus := invoice.StatusRejectedByAdmin
	if level == invoice.LevelManager {
		rejectedStatus = invoice.StatusRejectedByManager
	}

	now := s.now()
	err = s.invoices.WithTx(ctx, func(ctx context.Context, tx invoice.TxRepository) error {
		decided := *rec
		decided.ApproverID = &actorID
		decided.Status = invoice.ApprovalRejected
		decided.Comments = &comments
		decided.DecidedAt = &now
		if err := tx.UpdateApproval(ctx, decided); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, d.ID, rejectedStatus)
	})
	if err != nil {
		return invoice.WithDetails{}, err
	}

	s.logger.Info("invoice rejected",
		"invoice_id", d.ID,
		"level", level.String(),
		"approver_id", actorID,
	)
	return s.invoices.GetWithDetails(ctx, invoiceID)
}

// History returns the full approval trail for an invoice, oldest first.
func (s *Service) History(ctx context.Context, invoiceID uuid.UUID) ([]invoice.ApprovalRecord, error) {
	d, err := s.invoices.GetWithDetails(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return d.Approvals, nil
}

// PendingQueue lists the invoices a role can decide right now.
func (s *Service) PendingQueue(ctx context.Context, companyID uuid.UUID, role shared.Role) ([]invoice.WithDetails, error) {
	level := RoleLevel(role)
	if level == 0 {
		return nil, nil
	}
	pending, err := s.invoices.ListPendingAtLevel(ctx, companyID, level)
	if err != nil {
		return nil, err
	}
	queue := make([]invoice.WithDetails, 0, len(pending))
	for _, d := range pending {
		if CanApprove(role, d) {
			queue = append(queue, d)
		}
	}
	return queue, nil
}

// PendingCount reports how many invoices wait on a role's tier.
func (s *Service) PendingCount(ctx context.Context, companyID uuid.UUID, role shared.Role) (int, error) {
	level := RoleLevel(role)
	if level == 0 {
		return 0, nil
	}
	return s.invoices.CountPendingAtLevel(ctx, companyID, level)
}

// Rule describes one amount band for display.
type Rule struct {
	Level       invoice.ApprovalLevel `json:"level"`
	LevelName   string                `json:"level_name"`
	Description string                `json:"description"`
}

// Rules renders a company's effective approval bands.
func (s *Service) Rules(ctx context.Context, companyID uuid.UUID) ([]Rule, error) {
	t, err := s.config.Thresholds(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return []Rule{
		{
			Level:       invoice.LevelManager,
			LevelName:   invoice.LevelManager.String(),
			Description: fmt.Sprintf("Invoices up to %.0f", t.ManagerMax),
		},
		{
			Level:       invoice.LevelAdmin,
			LevelName:   invoice.LevelAdmin.String(),
			Description: fmt.Sprintf("Invoices up to %.0f, and every vendor's first invoice", t.CFOMax),
		},
		{
			Level:       invoice.LevelCFO,
			LevelName:   invoice.LevelCFO.String(),
			Description: fmt.Sprintf("Invoices above %.0f", t.CFOMax),
		},
	}, nil
}

package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/accounting"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/audit"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/invoice"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// executeTimeout bounds the single external posting call. The ledger provider
// is slow on large entries; anything past this is treated as failed.
const executeTimeout = 30 * time.Second

// AccountLookup resolves external accounts through the cached chart of
// accounts.
type AccountLookup interface {
	GetAccountByID(ctx context.Context, companyID uuid.UUID, externalID string) *accounting.Account
	GetAllAccounts(ctx context.Context, companyID uuid.UUID) []accounting.Account
	InvalidateCache(ctx context.Context, companyID uuid.UUID)
}

// ClientResolver yields the posting client for a company.
type ClientResolver interface {
	ClientFor(ctx context.Context, companyID uuid.UUID) (accounting.Client, error)
}

// RoleResolver looks up a user's role within a company.
type RoleResolver interface {
	MemberRole(ctx context.Context, companyID, userID uuid.UUID) (shared.Role, error)
}

// Service schedules and executes payments against approved invoices and
// posts the matching journal entries.
type Service struct {
	invoices invoice.Repository
	accounts AccountLookup
	clients  ClientResolver
	roles    RoleResolver
	auditor  audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the payment service.
func NewService(invoices invoice.Repository, accounts AccountLookup, clients ClientResolver, roles RoleResolver, auditor audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		invoices: invoices,
		accounts: accounts,
		clients:  clients,
		roles:    roles,
		auditor:  auditor,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// ScheduleInput describes a payment to be queued.
type ScheduleInput struct {
	PaymentAccountID string
	Method           string
	ScheduledDate    time.Time
}

// Schedule queues a payment for an approved invoice. The funding account must
// be a Bank or Cash asset, the amount is always the full invoice total, and
// an invoice carries at most one live payment at a time.
func (s *Service) Schedule(ctx context.Context, invoiceID, actorID uuid.UUID, input ScheduleInput) (invoice.Payment, error) {
	d, err := s.invoices.GetWithDetails(ctx, invoiceID)
	if err != nil {
		return invoice.Payment{}, err
	}
	if d.Status != invoice.StatusApproved {
		return invoice.Payment{}, shared.StateConflictf("invoice %s is not approved for payment (status %s)", invoiceID, d.Status)
	}
	if p := d.ActivePayment(); p != nil {
		return invoice.Payment{}, shared.StateConflictf("invoice %s already has a %s payment", invoiceID, p.Status)
	}

	role, err := s.roles.MemberRole(ctx, d.CompanyID, actorID)
	if err != nil {
		return invoice.Payment{}, err
	}
	if !role.AtLeast(shared.RoleAccountant) {
		return invoice.Payment{}, shared.Unauthorizedf("role %s cannot schedule payments", role)
	}

	account := s.accounts.GetAccountByID(ctx, d.CompanyID, input.PaymentAccountID)
	if account == nil {
		return invoice.Payment{}, shared.Validationf("payment account %s not found", input.PaymentAccountID)
	}
	if !account.IsPaymentAccount() {
		return invoice.Payment{}, shared.Validationf("account %s (%s) cannot fund payments", account.Name, account.Type)
	}

	method := input.Method
	if method == "" {
		method = "BANK_TRANSFER"
	}
	scheduledDate := input.ScheduledDate
	if scheduledDate.IsZero() {
		scheduledDate = s.now()
	}

	p := invoice.Payment{
		ID:                 uuid.New(),
		InvoiceID:          invoiceID,
		PaymentAccountID:   account.ExternalID,
		PaymentAccountName: account.Name,
		Amount:             d.TotalAmount,
		Method:             method,
		ReferenceNumber:    "PAY-" + d.InvoiceNumber,
		Status:             invoice.PaymentScheduled,
		ScheduledDate:      scheduledDate,
		CreatedAt:          s.now(),
	}

	err = s.invoices.WithTx(ctx, func(ctx context.Context, tx invoice.TxRepository) error {
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, invoiceID, invoice.StatusPaymentPending)
	})
	if err != nil {
		return invoice.Payment{}, err
	}

	audit.Try(ctx, s.auditor, s.logger, audit.Entry{
		CompanyID:  d.CompanyID,
		ActorID:    actorID,
		Action:     "payment.scheduled",
		EntityType: "payment",
		EntityID:   p.ID,
		Metadata:   map[string]any{"invoice_id": invoiceID.String(), "amount": p.Amount, "account": account.Name},
	})
	s.logger.Info("payment scheduled", "payment_id", p.ID, "invoice_id", invoiceID, "amount", p.Amount)
	return p, nil
}

// Execute runs a scheduled payment: claim it, post the journal entry to the
// ledger provider, then finalize. The claim is a conditional state flip, so
// two concurrent executions of the same payment cannot both post. On any
// posting failure the claim is rolled back and the invoice returns to
// Approved so payment can be rescheduled.
func (s *Service) Execute(ctx context.Context, paymentID, actorID uuid.UUID) (invoice.Payment, error) {
	p, err := s.invoices.GetPayment(ctx, paymentID)
	if err != nil {
		return invoice.Payment{}, err
	}
	if p.Status != invoice.PaymentScheduled {
		return invoice.Payment{}, shared.StateConflictf("payment %s is not scheduled (status %s)", paymentID, p.Status)
	}

	d, err := s.invoices.GetWithDetails(ctx, p.InvoiceID)
	if err != nil {
		return invoice.Payment{}, err
	}
	if d.Status != invoice.StatusPaymentPending {
		return invoice.Payment{}, shared.StateConflictf("invoice %s is not awaiting payment (status %s)", d.ID, d.Status)
	}

	role, err := s.roles.MemberRole(ctx, d.CompanyID, actorID)
	if err != nil {
		return invoice.Payment{}, err
	}
	if !role.AtLeast(shared.RoleAccountant) {
		return invoice.Payment{}, shared.Unauthorizedf("role %s cannot execute payments", role)
	}

	entry, err := s.buildEntry(ctx, d, p.PaymentAccountID)
	if err != nil {
		return invoice.Payment{}, err
	}
	client, err := s.clients.ClientFor(ctx, d.CompanyID)
	if err != nil {
		return invoice.Payment{}, err
	}

	// Claim the payment before touching the provider. Losing the claim means
	// someone else is already executing.
	var claimed bool
	err = s.invoices.WithTx(ctx, func(ctx context.Context, tx invoice.TxRepository) error {
		won, err := tx.MarkPaymentProcessing(ctx, paymentID)
		if err != nil {
			return err
		}
		claimed = won
		if !won {
			return nil
		}
		return tx.UpdateStatus(ctx, d.ID, invoice.StatusPaymentProcessing)
	})
	if err != nil {
		return invoice.Payment{}, err
	}
	if !claimed {
		return invoice.Payment{}, shared.StateConflictf("payment %s is already being executed", paymentID)
	}

	postCtx, cancel := context.WithTimeout(ctx, executeTimeout)
	result, postErr := client.CreateJournalEntry(postCtx, entry)
	cancel()

	if postErr != nil || !result.Success {
		if postErr == nil {
			postErr = shared.Externalf("journal entry rejected: %s", result.ErrorMessage)
		}
		s.compensate(ctx, d, p, postErr)
		return invoice.Payment{}, postErr
	}

	now := s.now()
	p.Status = invoice.PaymentCompleted
	p.ExecutedByID = &actorID
	p.ExecutedAt = &now
	p.FailureReason = nil
	if result.ExternalID != "" {
		ref := result.ExternalID
		p.ExternalRef = &ref
	}
	if result.ReferenceNumber != "" {
		jref := result.ReferenceNumber
		p.JournalEntryRef = &jref
	}

	err = s.invoices.WithTx(ctx, func(ctx context.Context, tx invoice.TxRepository) error {
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, d.ID, invoice.StatusCompleted)
	})
	if err != nil {
		// The entry is in the ledger but local state still says processing.
		// This needs an operator; surface it loudly.
		s.logger.Error("CONSISTENCY RISK: journal posted but payment not finalized",
			"payment_id", paymentID,
			"invoice_id", d.ID,
			"journal_ref", result.ReferenceNumber,
			"error", err,
		)
		return invoice.Payment{}, err
	}

	s.accounts.InvalidateCache(ctx, d.CompanyID)
	audit.Try(ctx, s.auditor, s.logger, audit.Entry{
		CompanyID:  d.CompanyID,
		ActorID:    actorID,
		Action:     "payment.completed",
		EntityType: "payment",
		EntityID:   paymentID,
		Metadata:   map[string]any{"invoice_id": d.ID.String(), "journal_ref": result.ReferenceNumber},
	})
	s.logger.Info("payment completed", "payment_id", paymentID, "invoice_id", d.ID, "journal_ref", result.ReferenceNumber)
	return p, nil
}

// compensate rolls the claim back after a failed posting: the payment is
// marked failed and the invoice returns to Approved.
func (s *Service) compensate(ctx context.Context, d invoice.WithDetails, p invoice.Payment, cause error) {
	reason := cause.Error()
	p.Status = invoice.PaymentFailed
	p.FailureReason = &reason

	err := s.invoices.WithTx(ctx, func(ctx context.Context, tx invoice.TxRepository) error {
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, d.ID, invoice.StatusApproved)
	})
	if err != nil {
		s.logger.Error("CONSISTENCY RISK: payment rollback failed",
			"payment_id", p.ID,
			"invoice_id", d.ID,
			"posting_error", cause,
			"rollback_error", err,
		)
		return
	}
	s.logger.Warn("payment failed and rolled back", "payment_id", p.ID, "invoice_id", d.ID, "error", cause)
}

// Cancel removes a scheduled payment and frees the invoice for rescheduling.
// Only scheduled payments can be cancelled; anything past the claim has
// touched the ledger.
func (s *Service) Cancel(ctx context.Context, paymentID, actorID uuid.UUID) error {
	p, err := s.invoices.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status != invoice.PaymentScheduled {
		return shared.StateConflictf("payment %s cannot be cancelled (status %s)", paymentID, p.Status)
	}

	inv, err := s.invoices.GetByID(ctx, p.InvoiceID)
	if err != nil {
		return err
	}
	role, err := s.roles.MemberRole(ctx, inv.CompanyID, actorID)
	if err != nil {
		return err
	}
	if !role.AtLeast(shared.RoleAccountant) {
		return shared.Unauthorizedf("role %s cannot cancel payments", role)
	}

	err = s.invoices.WithTx(ctx, func(ctx context.Context, tx invoice.TxRepository) error {
		if err := tx.DeletePayment(ctx, paymentID); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, p.InvoiceID, invoice.StatusApproved)
	})
	if err != nil {
		return err
	}

	audit.Try(ctx, s.auditor, s.logger, audit.Entry{
		CompanyID:  inv.CompanyID,
		ActorID:    actorID,
		Action:     "payment.cancelled",
		EntityType: "payment",
		EntityID:   paymentID,
		Metadata:   map[string]any{"invoice_id": p.InvoiceID.String()},
	})
	return nil
}

// PreviewJournalEntry builds the entry that executing a payment from the
// given account would post, without posting it.
func (s *Service) PreviewJournalEntry(ctx context.Context, invoiceID uuid.UUID, paymentAccountID string) (accounting.JournalEntry, error) {
	d, err := s.invoices.GetWithDetails(ctx, invoiceID)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	return s.buildEntry(ctx, d, paymentAccountID)
}

func (s *Service) buildEntry(ctx context.Context, d invoice.WithDetails, paymentAccountID string) (accounting.JournalEntry, error) {
	account := s.accounts.GetAccountByID(ctx, d.CompanyID, paymentAccountID)
	if account == nil {
		return accounting.JournalEntry{}, shared.Validationf("payment account %s not found", paymentAccountID)
	}
	if !account.IsPaymentAccount() {
		return accounting.JournalEntry{}, shared.Validationf("account %s (%s) cannot fund payments", account.Name, account.Type)
	}

	lookup := make(map[string]accounting.Account)
	for _, acc := range s.accounts.GetAllAccounts(ctx, d.CompanyID) {
		lookup[acc.ExternalID] = acc
	}
	return BuildJournalEntry(d, *account, lookup, s.now())
}

// Pending lists scheduled payments across a company.
func (s *Service) Pending(ctx context.Context, companyID uuid.UUID) ([]invoice.Payment, error) {
	return s.invoices.ListPendingPayments(ctx, companyID)
}

// Statistics summarises a company's payments by outcome.
func (s *Service) Statistics(ctx context.Context, companyID uuid.UUID) (invoice.PaymentStatistics, error) {
	return s.invoices.PaymentStatistics(ctx, companyID)
}

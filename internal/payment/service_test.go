package payment

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/accounting"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/audit"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/invoice"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/invoice/invoicetest"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

type stubAccounts struct {
	accounts    []accounting.Account
	invalidated int
}

func (s *stubAccounts) GetAccountByID(_ context.Context, _ uuid.UUID, externalID string) *accounting.Account {
	for _, acc := range s.accounts {
		if acc.ExternalID == externalID {
			found := acc
			return &found
		}
	}
	return nil
}

func (s *stubAccounts) GetAllAccounts(context.Context, uuid.UUID) []accounting.Account {
	return s.accounts
}

func (s *stubAccounts) InvalidateCache(context.Context, uuid.UUID) {
	s.invalidated++
}

type recordingClient struct {
	entries []accounting.JournalEntry
	result  accounting.JournalResult
	err     error
}

func (c *recordingClient) GetAccounts(context.Context) ([]accounting.Account, error) { return nil, nil }
func (c *recordingClient) GetAccountsByType(context.Context, accounting.AccountType) ([]accounting.Account, error) {
	return nil, nil
}
func (c *recordingClient) GetAccountByID(context.Context, string) (*accounting.Account, error) {
	return nil, nil
}
func (c *recordingClient) TestConnection(context.Context) (bool, error) { return true, nil }
func (c *recordingClient) CreateJournalEntry(_ context.Context, entry accounting.JournalEntry) (accounting.JournalResult, error) {
	c.entries = append(c.entries, entry)
	if c.err != nil {
		return accounting.JournalResult{}, c.err
	}
	return c.result, nil
}

type stubClients struct {
	client accounting.Client
}

func (s stubClients) ClientFor(context.Context, uuid.UUID) (accounting.Client, error) {
	return s.client, nil
}

type stubRoles map[uuid.UUID]shared.Role

func (s stubRoles) MemberRole(_ context.Context, _, userID uuid.UUID) (shared.Role, error) {
	role, ok := s[userID]
	if !ok {
		return shared.RoleViewer, shared.Unauthorizedf("user %s is not a member", userID)
	}
	return role, nil
}

type paymentFixture struct {
	repo       *invoicetest.MemoryRepo
	accounts   *stubAccounts
	client     *recordingClient
	svc        *Service
	companyID  uuid.UUID
	accountant uuid.UUID
	viewer     uuid.UUID
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		repo:       invoicetest.NewMemoryRepo(),
		companyID:  uuid.New(),
		accountant: uuid.New(),
		viewer:     uuid.New(),
	}
	f.accounts = &stubAccounts{accounts: []accounting.Account{
		{ExternalID: "1001", Code: "1001", Name: "Cash in Hand", Type: accounting.AccountTypeAsset, SubType: accounting.SubTypeCash},
		{ExternalID: "1002", Code: "1002", Name: "HBL Current Account", Type: accounting.AccountTypeAsset, SubType: accounting.SubTypeBank},
		{ExternalID: "5001", Code: "5001", Name: "Office Supplies", Type: accounting.AccountTypeExpense},
		{ExternalID: "5002", Code: "5002", Name: "Utilities", Type: accounting.AccountTypeExpense},
	}}
	f.client = &recordingClient{result: accounting.JournalResult{
		Success:         true,
		ExternalID:      "JE-abc123",
		ReferenceNumber: "JE-20250602",
	}}
	roles := stubRoles{f.accountant: shared.RoleAccountant, f.viewer: shared.RoleViewer}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.repo, f.accounts, stubClients{client: f.client}, roles, audit.Nop{}, logger).
		WithNow(func() time.Time { return time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) })
	return f
}

// seedApproved creates an approved invoice with expense-coded items.
func (f *paymentFixture) seedApproved(amount float64) uuid.UUID {
	id := uuid.New()
	f.repo.Seed(invoice.Invoice{
		ID:            id,
		CompanyID:     f.companyID,
		InvoiceNumber: "INV-7",
		TotalAmount:   amount,
		Subtotal:      amount,
		Currency:      "PKR",
		Status:        invoice.StatusApproved,
	}, invoice.Item{
		ID:               uuid.New(),
		InvoiceID:        id,
		ExpenseAccountID: "5001",
		Description:      "Paper",
		Quantity:         1,
		Amount:           amount,
		LineNumber:       1,
	})
	return id
}

func TestScheduleHappyPath(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)

	p, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{
		PaymentAccountID: "1002",
	})
	require.NoError(t, err)
	require.Equal(t, invoice.PaymentScheduled, p.Status)
	require.InDelta(t, 40_000, p.Amount, 0.001)
	require.Equal(t, "PAY-INV-7", p.ReferenceNumber)
	require.Equal(t, "HBL Current Account", p.PaymentAccountName)
	require.Equal(t, "BANK_TRANSFER", p.Method)

	inv, err := f.repo.GetByID(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, invoice.StatusPaymentPending, inv.Status)
}

func TestScheduleRequiresApprovedInvoice(t *testing.T) {
	f := newPaymentFixture(t)
	id := uuid.New()
	f.repo.Seed(invoice.Invoice{ID: id, CompanyID: f.companyID, Status: invoice.StatusDraft})

	_, err := f.svc.Schedule(context.Background(), id, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestScheduleRejectsNonPaymentAccount(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)

	_, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "5001"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "9999"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestScheduleRejectsSecondActivePayment(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)

	_, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)

	// Force the invoice back to approved; the live payment must still block.
	err = f.repo.WithTx(context.Background(), func(ctx context.Context, tx invoice.TxRepository) error {
		return tx.UpdateStatus(ctx, invoiceID, invoice.StatusApproved)
	})
	require.NoError(t, err)

	_, err = f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1001"})
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestScheduleAuthorization(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)

	_, err := f.svc.Schedule(context.Background(), invoiceID, f.viewer, ScheduleInput{PaymentAccountID: "1002"})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestExecuteHappyPath(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)
	p, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)

	executed, err := f.svc.Execute(context.Background(), p.ID, f.accountant)
	require.NoError(t, err)
	require.Equal(t, invoice.PaymentCompleted, executed.Status)
	require.NotNil(t, executed.ExecutedAt)
	require.NotNil(t, executed.ExternalRef)
	require.Equal(t, "JE-abc123", *executed.ExternalRef)
	require.NotNil(t, executed.JournalEntryRef)
	require.Equal(t, "JE-20250602", *executed.JournalEntryRef)

	inv, err := f.repo.GetByID(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, invoice.StatusCompleted, inv.Status)

	require.Len(t, f.client.entries, 1)
	entry := f.client.entries[0]
	require.InDelta(t, entry.TotalDebits(), entry.TotalCredits(), 0.001)
	credit := entry.Lines[len(entry.Lines)-1]
	require.Equal(t, "1002", credit.AccountID)
	require.InDelta(t, 40_000, credit.Credit, 0.001)

	// Balances changed in the ledger, so the cached chart is stale.
	require.Equal(t, 1, f.accounts.invalidated)
}

func TestExecuteFailureRollsBack(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)
	p, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)

	f.client.err = shared.Externalf("ledger unavailable")

	_, err = f.svc.Execute(context.Background(), p.ID, f.accountant)
	require.ErrorIs(t, err, shared.ErrExternal)

	failed, err := f.repo.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.PaymentFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	require.Contains(t, *failed.FailureReason, "ledger unavailable")

	inv, err := f.repo.GetByID(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, invoice.StatusApproved, inv.Status)

	// A failed payment no longer blocks a new schedule.
	_, err = f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1001"})
	require.NoError(t, err)
}

func TestExecuteRejectedResultRollsBack(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)
	p, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)

	f.client.result = accounting.JournalResult{Success: false, ErrorMessage: "period closed"}

	_, err = f.svc.Execute(context.Background(), p.ID, f.accountant)
	require.ErrorIs(t, err, shared.ErrExternal)

	inv, err := f.repo.GetByID(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, invoice.StatusApproved, inv.Status)
}

func TestExecuteOnlyScheduledPayments(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)
	p, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)

	_, err = f.svc.Execute(context.Background(), p.ID, f.accountant)
	require.NoError(t, err)

	// Executing again must not post a second entry.
	_, err = f.svc.Execute(context.Background(), p.ID, f.accountant)
	require.ErrorIs(t, err, shared.ErrStateConflict)
	require.Len(t, f.client.entries, 1)
}

func TestCancelScheduledPayment(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)
	p, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), p.ID, f.accountant)
	require.NoError(t, err)

	_, err = f.repo.GetPayment(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	inv, err := f.repo.GetByID(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, invoice.StatusApproved, inv.Status)
}

func TestCancelCompletedPaymentFails(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)
	p, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)
	_, err = f.svc.Execute(context.Background(), p.ID, f.accountant)
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), p.ID, f.accountant)
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestPreviewMatchesPostedEntry(t *testing.T) {
	f := newPaymentFixture(t)
	invoiceID := f.seedApproved(40_000)

	preview, err := f.svc.PreviewJournalEntry(context.Background(), invoiceID, "1002")
	require.NoError(t, err)

	p, err := f.svc.Schedule(context.Background(), invoiceID, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)
	_, err = f.svc.Execute(context.Background(), p.ID, f.accountant)
	require.NoError(t, err)

	require.Len(t, f.client.entries, 1)
	require.Equal(t, preview, f.client.entries[0])
}

func TestPendingPayments(t *testing.T) {
	f := newPaymentFixture(t)
	first := f.seedApproved(40_000)
	second := f.seedApproved(10_000)

	_, err := f.svc.Schedule(context.Background(), first, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)
	p2, err := f.svc.Schedule(context.Background(), second, f.accountant, ScheduleInput{PaymentAccountID: "1001"})
	require.NoError(t, err)

	pending, err := f.svc.Pending(context.Background(), f.companyID)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	_, err = f.svc.Execute(context.Background(), p2.ID, f.accountant)
	require.NoError(t, err)

	pending, err = f.svc.Pending(context.Background(), f.companyID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestPaymentStatistics(t *testing.T) {
	f := newPaymentFixture(t)
	first := f.seedApproved(40_000)
	second := f.seedApproved(10_000)
	third := f.seedApproved(5_000)

	p1, err := f.svc.Schedule(context.Background(), first, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)
	_, err = f.svc.Schedule(context.Background(), second, f.accountant, ScheduleInput{PaymentAccountID: "1001"})
	require.NoError(t, err)
	p3, err := f.svc.Schedule(context.Background(), third, f.accountant, ScheduleInput{PaymentAccountID: "1002"})
	require.NoError(t, err)

	_, err = f.svc.Execute(context.Background(), p1.ID, f.accountant)
	require.NoError(t, err)

	f.client.err = shared.Externalf("ledger unavailable")
	_, err = f.svc.Execute(context.Background(), p3.ID, f.accountant)
	require.ErrorIs(t, err, shared.ErrExternal)

	stats, err := f.svc.Statistics(context.Background(), f.companyID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.ScheduledCount)
	require.InDelta(t, 10_000, stats.ScheduledAmount, 0.001)
	require.Equal(t, 1, stats.CompletedCount)
	require.InDelta(t, 40_000, stats.CompletedAmount, 0.001)
	require.Equal(t, 1, stats.FailedCount)
}

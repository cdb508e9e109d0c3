// Package invoicetest provides an in-memory invoice repository for service
// tests.
package invoicetest

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/invoice"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// MemoryRepo implements invoice.Repository over maps. Transactions are plain
// function calls; there is no rollback.
type MemoryRepo struct {
	mu          sync.Mutex
	Invoices    map[uuid.UUID]invoice.Invoice
	Items       map[uuid.UUID][]invoice.Item
	Approvals   map[uuid.UUID][]invoice.ApprovalRecord
	Payments    map[uuid.UUID]invoice.Payment
	VendorNames map[uuid.UUID]string
}

// NewMemoryRepo creates an empty repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		Invoices:    make(map[uuid.UUID]invoice.Invoice),
		Items:       make(map[uuid.UUID][]invoice.Item),
		Approvals:   make(map[uuid.UUID][]invoice.ApprovalRecord),
		Payments:    make(map[uuid.UUID]invoice.Payment),
		VendorNames: make(map[uuid.UUID]string),
	}
}

var _ invoice.Repository = (*MemoryRepo)(nil)

// Seed stores an invoice with its items, bypassing the transaction API.
func (r *MemoryRepo) Seed(inv invoice.Invoice, items ...invoice.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Invoices[inv.ID] = inv
	r.Items[inv.ID] = append([]invoice.Item(nil), items...)
}

func (r *MemoryRepo) WithTx(ctx context.Context, fn func(context.Context, invoice.TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.Invoices[id]
	if !ok {
		return invoice.Invoice{}, shared.NotFoundf("invoice %s", id)
	}
	return inv, nil
}

func (r *MemoryRepo) GetWithDetails(ctx context.Context, id uuid.UUID) (invoice.WithDetails, error) {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return invoice.WithDetails{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d := invoice.WithDetails{
		Invoice:   inv,
		Items:     append([]invoice.Item(nil), r.Items[id]...),
		Approvals: append([]invoice.ApprovalRecord(nil), r.Approvals[id]...),
	}
	if inv.VendorID != nil {
		d.VendorName = r.VendorNames[*inv.VendorID]
	}
	for _, p := range r.Payments {
		if p.InvoiceID == id {
			d.Payments = append(d.Payments, p)
		}
	}
	return d, nil
}

func (r *MemoryRepo) List(ctx context.Context, filter invoice.ListFilter) ([]invoice.WithDetails, int, error) {
	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.Invoices))
	for id, inv := range r.Invoices {
		if inv.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		if filter.VendorID != nil && (inv.VendorID == nil || *inv.VendorID != *filter.VendorID) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(inv.InvoiceNumber), strings.ToLower(filter.Search)) {
			continue
		}
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var out []invoice.WithDetails
	for _, id := range ids {
		d, err := r.GetWithDetails(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

func pendingStatus(level invoice.ApprovalLevel) invoice.Status {
	if level >= invoice.LevelAdmin {
		return invoice.StatusPendingAdminApproval
	}
	return invoice.StatusPendingManagerReview
}

func (r *MemoryRepo) ListPendingAtLevel(ctx context.Context, companyID uuid.UUID, level invoice.ApprovalLevel) ([]invoice.WithDetails, error) {
	status := pendingStatus(level)
	r.mu.Lock()
	var ids []uuid.UUID
	for id, inv := range r.Invoices {
		if inv.CompanyID == companyID && inv.Status == status {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	var out []invoice.WithDetails
	for _, id := range ids {
		d, err := r.GetWithDetails(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *MemoryRepo) CountPendingAtLevel(_ context.Context, companyID uuid.UUID, level invoice.ApprovalLevel) (int, error) {
	status := pendingStatus(level)
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, inv := range r.Invoices {
		if inv.CompanyID == companyID && inv.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepo) CountByVendor(_ context.Context, vendorID, excludeInvoiceID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, inv := range r.Invoices {
		if id != excludeInvoiceID && inv.VendorID != nil && *inv.VendorID == vendorID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepo) Statistics(_ context.Context, companyID uuid.UUID) (invoice.Statistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := invoice.Statistics{AmountByMonth: make(map[string]float64)}
	for _, inv := range r.Invoices {
		if inv.CompanyID != companyID {
			continue
		}
		stats.TotalCount++
		stats.TotalAmount += inv.TotalAmount
		stats.AmountByMonth[inv.InvoiceDate.Format("2006-01")] += inv.TotalAmount
		switch inv.Status {
		case invoice.StatusDraft:
			stats.DraftCount++
		case invoice.StatusPendingManagerReview, invoice.StatusPendingAdminApproval:
			stats.PendingApprovalCount++
			stats.PendingAmount += inv.TotalAmount
		case invoice.StatusApproved, invoice.StatusPaymentPending, invoice.StatusPaymentProcessing:
			stats.ApprovedCount++
		case invoice.StatusCompleted:
			stats.CompletedCount++
			stats.PaidAmount += inv.TotalAmount
		case invoice.StatusRejectedByManager, invoice.StatusRejectedByAdmin:
			stats.RejectedCount++
		}
	}
	return stats, nil
}

func (r *MemoryRepo) GetPayment(_ context.Context, id uuid.UUID) (invoice.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Payments[id]
	if !ok {
		return invoice.Payment{}, shared.NotFoundf("payment %s", id)
	}
	return p, nil
}

func (r *MemoryRepo) ListPendingPayments(_ context.Context, companyID uuid.UUID) ([]invoice.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []invoice.Payment
	for _, p := range r.Payments {
		inv, ok := r.Invoices[p.InvoiceID]
		if ok && inv.CompanyID == companyID && p.Status == invoice.PaymentScheduled {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepo) PaymentStatistics(_ context.Context, companyID uuid.UUID) (invoice.PaymentStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats invoice.PaymentStatistics
	for _, p := range r.Payments {
		inv, ok := r.Invoices[p.InvoiceID]
		if !ok || inv.CompanyID != companyID {
			continue
		}
		switch p.Status {
		case invoice.PaymentScheduled:
			stats.ScheduledCount++
			stats.ScheduledAmount += p.Amount
		case invoice.PaymentCompleted:
			stats.CompletedCount++
			stats.CompletedAmount += p.Amount
		case invoice.PaymentFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

type memoryTx struct {
	repo *MemoryRepo
}

func (t *memoryTx) CreateInvoice(_ context.Context, inv invoice.Invoice) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.Invoices[inv.ID] = inv
	return nil
}

func (t *memoryTx) UpdateInvoice(_ context.Context, inv invoice.Invoice) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if _, ok := t.repo.Invoices[inv.ID]; !ok {
		return shared.NotFoundf("invoice %s", inv.ID)
	}
	t.repo.Invoices[inv.ID] = inv
	return nil
}

func (t *memoryTx) UpdateStatus(_ context.Context, id uuid.UUID, status invoice.Status) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	inv, ok := t.repo.Invoices[id]
	if !ok {
		return shared.NotFoundf("invoice %s", id)
	}
	inv.Status = status
	t.repo.Invoices[id] = inv
	return nil
}

func (t *memoryTx) DeleteInvoice(_ context.Context, id uuid.UUID) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if _, ok := t.repo.Invoices[id]; !ok {
		return shared.NotFoundf("invoice %s", id)
	}
	delete(t.repo.Invoices, id)
	delete(t.repo.Items, id)
	delete(t.repo.Approvals, id)
	for pid, p := range t.repo.Payments {
		if p.InvoiceID == id {
			delete(t.repo.Payments, pid)
		}
	}
	return nil
}

func (t *memoryTx) ReplaceItems(_ context.Context, invoiceID uuid.UUID, items []invoice.Item) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.Items[invoiceID] = append([]invoice.Item(nil), items...)
	return nil
}

func (t *memoryTx) CreateApproval(_ context.Context, rec invoice.ApprovalRecord) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.Approvals[rec.InvoiceID] = append(t.repo.Approvals[rec.InvoiceID], rec)
	return nil
}

func (t *memoryTx) UpdateApproval(_ context.Context, rec invoice.ApprovalRecord) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	recs := t.repo.Approvals[rec.InvoiceID]
	for i := range recs {
		if recs[i].ID == rec.ID {
			recs[i] = rec
			return nil
		}
	}
	return shared.NotFoundf("approval %s", rec.ID)
}

func (t *memoryTx) CreatePayment(_ context.Context, p invoice.Payment) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.Payments[p.ID] = p
	return nil
}

func (t *memoryTx) UpdatePayment(_ context.Context, p invoice.Payment) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if _, ok := t.repo.Payments[p.ID]; !ok {
		return shared.NotFoundf("payment %s", p.ID)
	}
	t.repo.Payments[p.ID] = p
	return nil
}

func (t *memoryTx) DeletePayment(_ context.Context, id uuid.UUID) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if _, ok := t.repo.Payments[id]; !ok {
		return shared.NotFoundf("payment %s", id)
	}
	delete(t.repo.Payments, id)
	return nil
}

func (t *memoryTx) MarkPaymentProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	p, ok := t.repo.Payments[id]
	if !ok {
		return false, shared.NotFoundf("payment %s", id)
	}
	if p.Status != invoice.PaymentScheduled {
		return false, nil
	}
	p.Status = invoice.PaymentProcessing
	t.repo.Payments[id] = p
	return true, nil
}

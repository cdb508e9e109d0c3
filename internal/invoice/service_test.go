package invoice

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/audit"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/ocr"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/vendor"
)

type memoryRepo struct {
	invoices  map[uuid.UUID]Invoice
	items     map[uuid.UUID][]Item
	approvals map[uuid.UUID][]ApprovalRecord
	payments  map[uuid.UUID]Payment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices:  make(map[uuid.UUID]Invoice),
		items:     make(map[uuid.UUID][]Item),
		approvals: make(map[uuid.UUID][]ApprovalRecord),
		payments:  make(map[uuid.UUID]Payment),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFoundf("invoice %s", id)
	}
	return inv, nil
}

func (r *memoryRepo) GetWithDetails(ctx context.Context, id uuid.UUID) (WithDetails, error) {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return WithDetails{}, err
	}
	d := WithDetails{
		Invoice:   inv,
		Items:     append([]Item(nil), r.items[id]...),
		Approvals: append([]ApprovalRecord(nil), r.approvals[id]...),
	}
	for _, p := range r.payments {
		if p.InvoiceID == id {
			d.Payments = append(d.Payments, p)
		}
	}
	return d, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]WithDetails, int, error) {
	var out []WithDetails
	for id, inv := range r.invoices {
		if inv.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		d, err := r.GetWithDetails(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListPendingAtLevel(context.Context, uuid.UUID, ApprovalLevel) ([]WithDetails, error) {
	return nil, nil
}

func (r *memoryRepo) CountPendingAtLevel(context.Context, uuid.UUID, ApprovalLevel) (int, error) {
	return 0, nil
}

func (r *memoryRepo) CountByVendor(_ context.Context, vendorID, excludeInvoiceID uuid.UUID) (int, error) {
	count := 0
	for id, inv := range r.invoices {
		if id != excludeInvoiceID && inv.VendorID != nil && *inv.VendorID == vendorID {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) Statistics(context.Context, uuid.UUID) (Statistics, error) {
	return Statistics{}, nil
}

func (r *memoryRepo) PaymentStatistics(context.Context, uuid.UUID) (PaymentStatistics, error) {
	return PaymentStatistics{}, nil
}

func (r *memoryRepo) GetPayment(_ context.Context, id uuid.UUID) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, shared.NotFoundf("payment %s", id)
	}
	return p, nil
}

func (r *memoryRepo) ListPendingPayments(context.Context, uuid.UUID) ([]Payment, error) {
	return nil, nil
}

func (r *memoryRepo) CreateInvoice(_ context.Context, inv Invoice) error {
	r.invoices[inv.ID] = inv
	return nil
}

func (r *memoryRepo) UpdateInvoice(_ context.Context, inv Invoice) error {
	if _, ok := r.invoices[inv.ID]; !ok {
		return shared.NotFoundf("invoice %s", inv.ID)
	}
	r.invoices[inv.ID] = inv
	return nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	inv, ok := r.invoices[id]
	if !ok {
		return shared.NotFoundf("invoice %s", id)
	}
	inv.Status = status
	r.invoices[id] = inv
	return nil
}

func (r *memoryRepo) DeleteInvoice(_ context.Context, id uuid.UUID) error {
	delete(r.invoices, id)
	delete(r.items, id)
	delete(r.approvals, id)
	return nil
}

func (r *memoryRepo) ReplaceItems(_ context.Context, invoiceID uuid.UUID, items []Item) error {
	r.items[invoiceID] = append([]Item(nil), items...)
	return nil
}

func (r *memoryRepo) CreateApproval(_ context.Context, rec ApprovalRecord) error {
	r.approvals[rec.InvoiceID] = append(r.approvals[rec.InvoiceID], rec)
	return nil
}

func (r *memoryRepo) UpdateApproval(_ context.Context, rec ApprovalRecord) error {
	recs := r.approvals[rec.InvoiceID]
	for i := range recs {
		if recs[i].ID == rec.ID {
			recs[i] = rec
			return nil
		}
	}
	return shared.NotFoundf("approval %s", rec.ID)
}

func (r *memoryRepo) CreatePayment(_ context.Context, p Payment) error {
	r.payments[p.ID] = p
	return nil
}

func (r *memoryRepo) UpdatePayment(_ context.Context, p Payment) error {
	r.payments[p.ID] = p
	return nil
}

func (r *memoryRepo) DeletePayment(_ context.Context, id uuid.UUID) error {
	delete(r.payments, id)
	return nil
}

func (r *memoryRepo) MarkPaymentProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := r.payments[id]
	if !ok || p.Status != PaymentScheduled {
		return false, nil
	}
	p.Status = PaymentProcessing
	r.payments[id] = p
	return true, nil
}

type stubEngine struct {
	result ocr.Result
	err    error
}

func (s stubEngine) Process(context.Context, []byte, string) (ocr.Result, error) {
	return s.result, s.err
}

type memStore struct {
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) Save(_ context.Context, key, _ string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	s.files[key] = data
	return nil
}

func (s *memStore) Open(_ context.Context, key string) ([]byte, error) {
	data, ok := s.files[key]
	if !ok {
		return nil, shared.NotFoundf("file %s", key)
	}
	return data, nil
}

func (s *memStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.files[key]
	return ok, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	delete(s.files, key)
	return nil
}

func (s *memStore) URL(context.Context, string) (string, error) { return "", nil }

type stubVendors struct {
	byNTN map[string]vendor.Vendor
}

func (s stubVendors) FindByNTN(_ context.Context, _ uuid.UUID, ntn string) (*vendor.Vendor, error) {
	v, ok := s.byNTN[vendor.NormalizeNTN(ntn)]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s stubVendors) Get(_ context.Context, id uuid.UUID) (vendor.Vendor, error) {
	for _, v := range s.byNTN {
		if v.ID == id {
			return v, nil
		}
	}
	return vendor.Vendor{}, shared.NotFoundf("vendor %s", id)
}

func testService(repo Repository, engine ocr.Engine, vendors VendorMatcher, store *memStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, vendors, engine, store, audit.Nop{}, logger).
		WithNow(func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) })
}

func TestUploadCreatesDraftFromExtraction(t *testing.T) {
	repo := newMemoryRepo()
	store := newMemStore()
	companyID := uuid.New()

	expense := "5001"
	knownVendor := vendor.Vendor{
		ID:                      uuid.New(),
		CompanyID:               companyID,
		Name:                    "Paper Supplies Ltd",
		NTN:                     "12345678",
		DefaultExpenseAccountID: &expense,
	}
	invoiceDate := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	engine := stubEngine{result: ocr.Result{
		VendorName:    "Paper Supplies Ltd",
		VendorNTN:     "1234567-8",
		InvoiceNumber: "INV-55",
		InvoiceDate:   &invoiceDate,
		Currency:      "PKR",
		Confidence:    91,
		LineItems: []ocr.LineItem{
			{Description: "A4 Paper", Quantity: 10, UnitPrice: 500, Amount: 5000, Confidence: 90},
			{Description: "Toner", Quantity: 1, UnitPrice: 12000, Amount: 12000, Confidence: 80},
		},
	}}
	vendors := stubVendors{byNTN: map[string]vendor.Vendor{"12345678": knownVendor}}
	svc := testService(repo, engine, vendors, store)

	d, err := svc.Upload(context.Background(), UploadInput{
		CompanyID:    companyID,
		UploadedByID: uuid.New(),
		FileName:     "scan.pdf",
		ContentType:  "application/pdf",
		Content:      bytes.Repeat([]byte{0x25}, 64),
	})
	require.NoError(t, err)

	require.Equal(t, StatusDraft, d.Status)
	require.Equal(t, "INV-55", d.InvoiceNumber)
	require.Equal(t, invoiceDate, d.InvoiceDate)
	require.NotNil(t, d.VendorID)
	require.Equal(t, knownVendor.ID, *d.VendorID)
	require.InDelta(t, 17_000, d.TotalAmount, 0.001)
	require.NotNil(t, d.OCRConfidence)
	require.InDelta(t, 91, *d.OCRConfidence, 0.001)

	require.Len(t, d.Items, 2)
	require.Equal(t, 1, d.Items[0].LineNumber)
	require.Equal(t, 2, d.Items[1].LineNumber)
	for _, item := range d.Items {
		require.Equal(t, "5001", item.ExpenseAccountID)
		require.Equal(t, MatchVendorDefault, item.MatchType)
	}

	require.Len(t, store.files, 1)
}

func TestUploadDegradesWhenOCRFails(t *testing.T) {
	repo := newMemoryRepo()
	store := newMemStore()
	engine := stubEngine{err: shared.Externalf("ocr down")}
	svc := testService(repo, engine, stubVendors{}, store)

	d, err := svc.Upload(context.Background(), UploadInput{
		CompanyID:    uuid.New(),
		UploadedByID: uuid.New(),
		FileName:     "scan.pdf",
		ContentType:  "application/pdf",
		Content:      []byte("%PDF-1.4"),
	})
	require.NoError(t, err)

	require.Equal(t, StatusDraft, d.Status)
	require.Equal(t, "PENDING", d.InvoiceNumber)
	require.Empty(t, d.Items)
	require.Nil(t, d.VendorID)
	require.Len(t, store.files, 1)
}

func TestUploadValidation(t *testing.T) {
	svc := testService(newMemoryRepo(), stubEngine{}, stubVendors{}, newMemStore())

	_, err := svc.Upload(context.Background(), UploadInput{ContentType: "application/pdf"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Upload(context.Background(), UploadInput{
		ContentType: "application/zip",
		Content:     []byte("x"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func seedEditable(repo *memoryRepo, number string, amount float64, expenseAccount string) uuid.UUID {
	id := uuid.New()
	repo.invoices[id] = Invoice{
		ID:            id,
		CompanyID:     uuid.New(),
		InvoiceNumber: number,
		InvoiceDate:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount:   amount,
		Subtotal:      amount,
		Currency:      "PKR",
		Status:        StatusDraft,
		FilePath:      "invoices/x/scan.pdf",
	}
	if amount > 0 {
		repo.items[id] = []Item{{
			ID:               uuid.New(),
			InvoiceID:        id,
			ExpenseAccountID: expenseAccount,
			Description:      "Services",
			Quantity:         1,
			Amount:           amount,
			LineNumber:       1,
		}}
	}
	return id
}

func TestSubmitForApproval(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
	id := seedEditable(repo, "INV-9", 40_000, "5001")

	d, err := svc.SubmitForApproval(context.Background(), id, uuid.New())
	require.NoError(t, err)
	require.Equal(t, StatusPendingManagerReview, d.Status)
	require.NotNil(t, d.PendingApprovalAt(LevelManager))
	require.Len(t, d.Approvals, 1)
}

func TestSubmitGuards(t *testing.T) {
	actor := uuid.New()

	t.Run("placeholder number", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
		id := seedEditable(repo, "PENDING", 40_000, "5001")
		_, err := svc.SubmitForApproval(context.Background(), id, actor)
		require.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("zero total", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
		id := seedEditable(repo, "INV-9", 0, "5001")
		_, err := svc.SubmitForApproval(context.Background(), id, actor)
		require.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("missing expense account", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
		id := seedEditable(repo, "INV-9", 40_000, "")
		_, err := svc.SubmitForApproval(context.Background(), id, actor)
		require.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("already submitted", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
		id := seedEditable(repo, "INV-9", 40_000, "5001")
		_, err := svc.SubmitForApproval(context.Background(), id, actor)
		require.NoError(t, err)
		_, err = svc.SubmitForApproval(context.Background(), id, actor)
		require.ErrorIs(t, err, shared.ErrStateConflict)
	})
}

func TestResubmitAfterRejectionOpensNewRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
	id := seedEditable(repo, "INV-9", 40_000, "5001")

	_, err := svc.SubmitForApproval(context.Background(), id, uuid.New())
	require.NoError(t, err)

	// Reject by hand: decide the record, park the invoice.
	recs := repo.approvals[id]
	recs[0].Status = ApprovalRejected
	now := time.Now()
	recs[0].DecidedAt = &now
	inv := repo.invoices[id]
	inv.Status = StatusRejectedByManager
	repo.invoices[id] = inv

	d, err := svc.SubmitForApproval(context.Background(), id, uuid.New())
	require.NoError(t, err)
	require.Equal(t, StatusPendingManagerReview, d.Status)
	require.Len(t, d.Approvals, 2)
	require.NotNil(t, d.PendingApprovalAt(LevelManager))
}

func TestUpdateLineItemsRecalculatesTotals(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
	id := seedEditable(repo, "INV-9", 40_000, "5001")

	d, err := svc.UpdateLineItems(context.Background(), id, uuid.New(), []ItemInput{
		{ExpenseAccountID: "5001", Description: "Paper", Quantity: 2, UnitPrice: 1000, Amount: 2000, TaxAmount: 300},
		{ExpenseAccountID: "5002", Description: "Toner", Quantity: 1, UnitPrice: 8000, Amount: 8000, TaxAmount: 1200},
	})
	require.NoError(t, err)

	require.InDelta(t, 10_000, d.TotalAmount, 0.001)
	require.InDelta(t, 1_500, d.TaxAmount, 0.001)
	require.InDelta(t, 8_500, d.Subtotal, 0.001)
	require.Equal(t, 1, d.Items[0].LineNumber)
	require.Equal(t, 2, d.Items[1].LineNumber)
}

func TestUpdateLineItemsValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
	id := seedEditable(repo, "INV-9", 40_000, "5001")

	_, err := svc.UpdateLineItems(context.Background(), id, uuid.New(), []ItemInput{
		{Description: "   ", Amount: 100},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateLineItems(context.Background(), id, uuid.New(), []ItemInput{
		{Description: "Paper", Amount: 0},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestEditBlockedAfterSubmission(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
	id := seedEditable(repo, "INV-9", 40_000, "5001")

	_, err := svc.SubmitForApproval(context.Background(), id, uuid.New())
	require.NoError(t, err)

	_, err = svc.UpdateLineItems(context.Background(), id, uuid.New(), []ItemInput{
		{ExpenseAccountID: "5001", Description: "Paper", Amount: 100},
	})
	require.ErrorIs(t, err, shared.ErrStateConflict)

	_, err = svc.Update(context.Background(), id, uuid.New(), UpdateInput{InvoiceNumber: "INV-10", InvoiceDate: time.Now()})
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestDeleteDraftRemovesDocument(t *testing.T) {
	repo := newMemoryRepo()
	store := newMemStore()
	svc := testService(repo, stubEngine{}, stubVendors{}, store)
	id := seedEditable(repo, "INV-9", 40_000, "5001")
	store.files["invoices/x/scan.pdf"] = []byte("doc")

	err := svc.Delete(context.Background(), id, uuid.New())
	require.NoError(t, err)
	require.Empty(t, store.files)

	_, err = svc.Get(context.Background(), id)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteSubmittedInvoiceFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, stubEngine{}, stubVendors{}, newMemStore())
	id := seedEditable(repo, "INV-9", 40_000, "5001")

	_, err := svc.SubmitForApproval(context.Background(), id, uuid.New())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), id, uuid.New())
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

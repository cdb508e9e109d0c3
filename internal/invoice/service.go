package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/audit"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/filestore"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/ocr"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/vendor"
)

// placeholderNumber marks an invoice whose number has not been captured yet,
// by OCR or by hand. Such invoices cannot be submitted.
const placeholderNumber = "PENDING"

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// VendorMatcher resolves OCR-extracted tax numbers against the vendor
// registry and fetches vendor defaults.
type VendorMatcher interface {
	FindByNTN(ctx context.Context, companyID uuid.UUID, ntn string) (*vendor.Vendor, error)
	Get(ctx context.Context, id uuid.UUID) (vendor.Vendor, error)
}

// Service owns the invoice lifecycle up to submission, plus listings.
type Service struct {
	repo    Repository
	vendors VendorMatcher
	engine  ocr.Engine
	files   filestore.Store
	auditor audit.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the invoice service.
func NewService(repo Repository, vendors VendorMatcher, engine ocr.Engine, files filestore.Store, auditor audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		vendors: vendors,
		engine:  engine,
		files:   files,
		auditor: auditor,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// UploadInput is a document handed in for processing.
type UploadInput struct {
	CompanyID    uuid.UUID
	UploadedByID uuid.UUID
	FileName     string
	ContentType  string
	Content      []byte
}

// Upload stores the document, runs extraction and creates a draft. Extraction
// failure is not fatal: the draft comes back empty for manual entry.
func (s *Service) Upload(ctx context.Context, input UploadInput) (WithDetails, error) {
	if len(input.Content) == 0 {
		return WithDetails{}, shared.Validationf("document is empty")
	}
	if !allowedContentTypes[input.ContentType] {
		return WithDetails{}, shared.Validationf("unsupported content type %q", input.ContentType)
	}

	id := uuid.New()
	now := s.now()
	key := fmt.Sprintf("invoices/%s/%s/%s%s",
		input.CompanyID, now.Format("2006/01"), id, path.Ext(input.FileName))
	if err := s.files.Save(ctx, key, input.ContentType, bytes.NewReader(input.Content)); err != nil {
		return WithDetails{}, err
	}

	inv := Invoice{
		ID:            id,
		CompanyID:     input.CompanyID,
		UploadedByID:  input.UploadedByID,
		InvoiceNumber: placeholderNumber,
		InvoiceDate:   now,
		Currency:      "PKR",
		Status:        StatusDraft,
		FilePath:      key,
		FileName:      input.FileName,
		ContentType:   input.ContentType,
		FileSize:      int64(len(input.Content)),
		CreatedAt:     now,
	}

	var items []Item
	result, ocrErr := s.engine.Process(ctx, input.Content, input.ContentType)
	if ocrErr != nil {
		s.logger.Warn("ocr failed, creating empty draft", "invoice_id", id, "error", ocrErr)
	} else {
		items = s.applyExtraction(ctx, &inv, result)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return WithDetails{}, err
	}

	audit.Try(ctx, s.auditor, s.logger, audit.Entry{
		CompanyID:  inv.CompanyID,
		ActorID:    input.UploadedByID,
		Action:     "invoice.uploaded",
		EntityType: "invoice",
		EntityID:   id,
		Metadata:   map[string]any{"file_name": input.FileName, "ocr_ok": ocrErr == nil},
	})
	s.logger.Info("invoice uploaded", "invoice_id", id, "company_id", inv.CompanyID, "file", input.FileName)
	return s.repo.GetWithDetails(ctx, id)
}

// applyExtraction copies OCR output onto the draft and seeds line items.
// When the tax number matches a known vendor, the vendor is linked and its
// default expense account pre-fills every line.
func (s *Service) applyExtraction(ctx context.Context, inv *Invoice, result ocr.Result) []Item {
	if n := strings.TrimSpace(result.InvoiceNumber); n != "" {
		inv.InvoiceNumber = n
	}
	if result.InvoiceDate != nil {
		inv.InvoiceDate = *result.InvoiceDate
	}
	inv.DueDate = result.DueDate
	if result.Currency != "" {
		inv.Currency = result.Currency
	}
	conf := result.Confidence
	inv.OCRConfidence = &conf
	if raw, err := json.Marshal(result); err == nil {
		data := string(raw)
		inv.OCRData = &data
	}

	var defaultExpense string
	if result.VendorNTN != "" {
		matched, err := s.vendors.FindByNTN(ctx, inv.CompanyID, result.VendorNTN)
		if err != nil {
			s.logger.Warn("vendor match failed", "invoice_id", inv.ID, "error", err)
		} else if matched != nil {
			vendorID := matched.ID
			inv.VendorID = &vendorID
			if matched.DefaultExpenseAccountID != nil {
				defaultExpense = *matched.DefaultExpenseAccountID
			}
		}
	}

	items := make([]Item, 0, len(result.LineItems))
	for _, li := range result.LineItems {
		itemConf := li.Confidence
		item := Item{
			ID:              uuid.New(),
			InvoiceID:       inv.ID,
			Description:     li.Description,
			Quantity:        li.Quantity,
			Unit:            li.Unit,
			UnitPrice:       li.UnitPrice,
			Amount:          li.Amount,
			MatchType:       MatchManual,
			MatchConfidence: &itemConf,
		}
		if defaultExpense != "" {
			item.ExpenseAccountID = defaultExpense
			item.MatchType = MatchVendorDefault
		}
		items = append(items, item)
	}
	RenumberItems(items)
	if len(items) > 0 {
		RecalculateTotals(inv, items)
	} else {
		inv.TotalAmount = result.TotalAmount
		inv.TaxAmount = result.TaxAmount
		inv.Subtotal = result.TotalAmount - result.TaxAmount
	}
	return items
}

// Get returns the invoice with items, approvals and payments.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (WithDetails, error) {
	return s.repo.GetWithDetails(ctx, id)
}

// DocumentURL returns a link to the stored document, or empty when the store
// cannot mint one.
func (s *Service) DocumentURL(ctx context.Context, id uuid.UUID) (string, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.files.URL(ctx, inv.FilePath)
}

// Document streams the stored document for stores that cannot mint URLs.
func (s *Service) Document(ctx context.Context, id uuid.UUID) ([]byte, string, string, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	content, err := s.files.Open(ctx, inv.FilePath)
	if err != nil {
		return nil, "", "", shared.Externalf("open invoice document: %v", err)
	}
	return content, inv.ContentType, inv.FileName, nil
}

// UpdateInput carries editable header fields.
type UpdateInput struct {
	VendorID      *uuid.UUID
	InvoiceNumber string
	InvoiceDate   time.Time
	DueDate       *time.Time
	Currency      string
	Notes         *string
}

// Update replaces header fields on an editable invoice.
func (s *Service) Update(ctx context.Context, id, actorID uuid.UUID, input UpdateInput) (WithDetails, error) {
	d, err := s.repo.GetWithDetails(ctx, id)
	if err != nil {
		return WithDetails{}, err
	}
	if !d.CanEdit() {
		return WithDetails{}, shared.StateConflictf("invoice %s cannot be edited (status %s)", id, d.Status)
	}

	inv := d.Invoice
	inv.VendorID = input.VendorID
	inv.InvoiceNumber = strings.TrimSpace(input.InvoiceNumber)
	inv.InvoiceDate = input.InvoiceDate
	inv.DueDate = input.DueDate
	if input.Currency != "" {
		inv.Currency = input.Currency
	}
	inv.Notes = input.Notes

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return WithDetails{}, err
	}
	audit.Try(ctx, s.auditor, s.logger, audit.Entry{
		CompanyID:  inv.CompanyID,
		ActorID:    actorID,
		Action:     "invoice.updated",
		EntityType: "invoice",
		EntityID:   id,
	})
	return s.repo.GetWithDetails(ctx, id)
}

// ItemInput is one line as edited by the user.
type ItemInput struct {
	ExpenseAccountID string
	Description      string
	Quantity         float64
	Unit             string
	UnitPrice        float64
	TaxAmount        float64
	Amount           float64
	MatchType        MatchType
}

// UpdateLineItems replaces the full item set. Lines are renumbered and the
// invoice totals re-derived; partial line edits are not supported.
func (s *Service) UpdateLineItems(ctx context.Context, id, actorID uuid.UUID, inputs []ItemInput) (WithDetails, error) {
	d, err := s.repo.GetWithDetails(ctx, id)
	if err != nil {
		return WithDetails{}, err
	}
	if !d.CanEdit() {
		return WithDetails{}, shared.StateConflictf("invoice %s cannot be edited (status %s)", id, d.Status)
	}

	items := make([]Item, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in.Description) == "" {
			return WithDetails{}, shared.Validationf("line item description is required")
		}
		if in.Amount <= 0 {
			return WithDetails{}, shared.Validationf("line item amount must be positive")
		}
		matchType := in.MatchType
		if matchType == "" {
			matchType = MatchManual
		}
		items = append(items, Item{
			ID:               uuid.New(),
			InvoiceID:        id,
			ExpenseAccountID: strings.TrimSpace(in.ExpenseAccountID),
			Description:      strings.TrimSpace(in.Description),
			Quantity:         in.Quantity,
			Unit:             in.Unit,
			UnitPrice:        in.UnitPrice,
			TaxAmount:        in.TaxAmount,
			Amount:           in.Amount,
			MatchType:        matchType,
		})
	}
	RenumberItems(items)

	inv := d.Invoice
	RecalculateTotals(&inv, items)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReplaceItems(ctx, id, items); err != nil {
			return err
		}
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return WithDetails{}, err
	}
	audit.Try(ctx, s.auditor, s.logger, audit.Entry{
		CompanyID:  inv.CompanyID,
		ActorID:    actorID,
		Action:     "invoice.items_updated",
		EntityType: "invoice",
		EntityID:   id,
		Metadata:   map[string]any{"item_count": len(items), "total_amount": inv.TotalAmount},
	})
	return s.repo.GetWithDetails(ctx, id)
}

// SubmitForApproval moves a complete draft into the manager's queue. Every
// chain starts at the manager tier regardless of where it must end.
func (s *Service) SubmitForApproval(ctx context.Context, id, actorID uuid.UUID) (WithDetails, error) {
	d, err := s.repo.GetWithDetails(ctx, id)
	if err != nil {
		return WithDetails{}, err
	}
	if !d.CanSubmit() {
		return WithDetails{}, shared.StateConflictf("invoice %s cannot be submitted (status %s)", id, d.Status)
	}

	number := strings.TrimSpace(d.InvoiceNumber)
	if number == "" || strings.EqualFold(number, placeholderNumber) {
		return WithDetails{}, shared.Validationf("invoice number is required before submission")
	}
	if d.TotalAmount <= 0 {
		return WithDetails{}, shared.Validationf("invoice total must be positive")
	}
	if len(d.Items) == 0 {
		return WithDetails{}, shared.Validationf("invoice needs at least one line item")
	}
	for _, item := range d.Items {
		if item.ExpenseAccountID == "" {
			return WithDetails{}, shared.Validationf("line %d has no expense account", item.LineNumber)
		}
	}

	now := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, StatusPendingManagerReview); err != nil {
			return err
		}
		// Resubmission after rejection opens a fresh record; decided records
		// stay behind as history.
		if d.PendingApprovalAt(LevelManager) != nil {
			return nil
		}
		return tx.CreateApproval(ctx, ApprovalRecord{
			ID:        uuid.New(),
			InvoiceID: id,
			Level:     LevelManager,
			Status:    ApprovalPending,
			CreatedAt: now,
		})
	})
	if err != nil {
		return WithDetails{}, err
	}
	audit.Try(ctx, s.auditor, s.logger, audit.Entry{
		CompanyID:  d.CompanyID,
		ActorID:    actorID,
		Action:     "invoice.submitted",
		EntityType: "invoice",
		EntityID:   id,
		Metadata:   map[string]any{"total_amount": d.TotalAmount},
	})
	s.logger.Info("invoice submitted for approval", "invoice_id", id, "total", d.TotalAmount)
	return s.repo.GetWithDetails(ctx, id)
}

// Delete removes a draft and its document. Anything past draft is history and
// stays.
func (s *Service) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !inv.CanDelete() {
		return shared.StateConflictf("invoice %s cannot be deleted (status %s)", id, inv.Status)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteInvoice(ctx, id)
	})
	if err != nil {
		return err
	}
	// The row is already gone; a missing or undeletable document is only
	// worth a warning.
	ok, err := s.files.Exists(ctx, inv.FilePath)
	if err != nil {
		s.logger.Warn("stored document not checked", "invoice_id", id, "path", inv.FilePath, "error", err)
	} else if ok {
		if err := s.files.Delete(ctx, inv.FilePath); err != nil {
			s.logger.Warn("stored document not deleted", "invoice_id", id, "path", inv.FilePath, "error", err)
		}
	}
	audit.Try(ctx, s.auditor, s.logger, audit.Entry{
		CompanyID:  inv.CompanyID,
		ActorID:    actorID,
		Action:     "invoice.deleted",
		EntityType: "invoice",
		EntityID:   id,
	})
	return nil
}

// List returns a filtered, paginated page of invoices plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]WithDetails, int, error) {
	return s.repo.List(ctx, filter)
}

// Statistics summarises a company's invoices.
func (s *Service) Statistics(ctx context.Context, companyID uuid.UUID) (Statistics, error) {
	return s.repo.Statistics(ctx, companyID)
}

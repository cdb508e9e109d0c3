package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates the invoice lifecycle.
type Status string

const (
	StatusDraft                Status = "DRAFT"
	StatusPendingManagerReview Status = "PENDING_MANAGER_REVIEW"
	StatusRejectedByManager    Status = "REJECTED_BY_MANAGER"
	StatusPendingAdminApproval Status = "PENDING_ADMIN_APPROVAL"
	StatusRejectedByAdmin      Status = "REJECTED_BY_ADMIN"
	StatusApproved             Status = "APPROVED"
	StatusPaymentPending       Status = "PAYMENT_PENDING"
	StatusPaymentProcessing    Status = "PAYMENT_PROCESSING"
	StatusCompleted            Status = "COMPLETED"
)

// IsPendingApproval reports whether the invoice sits in an approval queue.
func (s Status) IsPendingApproval() bool {
	return s == StatusPendingManagerReview || s == StatusPendingAdminApproval
}

// MatchType records how a line item's expense account was assigned.
type MatchType string

const (
	MatchManual        MatchType = "MANUAL"
	MatchVendorDefault MatchType = "VENDOR_DEFAULT"
	MatchAI            MatchType = "AI_MATCH"
)

// ApprovalLevel is the ordinal authority tier an invoice must clear.
type ApprovalLevel int

const (
	LevelManager ApprovalLevel = 1
	LevelAdmin   ApprovalLevel = 2
	LevelCFO     ApprovalLevel = 3
)

func (l ApprovalLevel) String() string {
	switch l {
	case LevelManager:
		return "MANAGER"
	case LevelAdmin:
		return "ADMIN"
	case LevelCFO:
		return "CFO"
	}
	return "UNKNOWN"
}

// ApprovalStatus is the state of one approval record.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// PaymentStatus is the state of one payment record. Scheduled is the initial
// state; there is no separate "pending" state.
type PaymentStatus string

const (
	PaymentScheduled  PaymentStatus = "SCHEDULED"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
)

// Invoice is the uploaded document plus its extracted financials.
type Invoice struct {
	ID            uuid.UUID  `json:"id"`
	CompanyID     uuid.UUID  `json:"company_id"`
	VendorID      *uuid.UUID `json:"vendor_id,omitempty"`
	UploadedByID  uuid.UUID  `json:"uploaded_by_id"`
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   time.Time  `json:"invoice_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Subtotal      float64    `json:"subtotal"`
	TaxAmount     float64    `json:"tax_amount"`
	TotalAmount   float64    `json:"total_amount"`
	Currency      string     `json:"currency"`
	Status        Status     `json:"status"`
	FilePath      string     `json:"-"`
	FileName      string     `json:"file_name"`
	ContentType   string     `json:"content_type"`
	FileSize      int64      `json:"file_size"`
	OCRData       *string    `json:"-"`
	OCRConfidence *float64   `json:"ocr_confidence,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	ExternalRef   *string    `json:"external_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// CanEdit reports whether fields and line items may still be changed.
func (i Invoice) CanEdit() bool {
	return i.Status == StatusDraft || i.Status == StatusRejectedByManager || i.Status == StatusRejectedByAdmin
}

// CanDelete reports whether the invoice may be removed. Once submitted past
// Draft the record is part of the audit trail and is never hard-deleted.
func (i Invoice) CanDelete() bool {
	return i.Status == StatusDraft
}

// CanSubmit reports whether the invoice may be sent into approval. Rejected
// invoices go back through the full chain from the start.
func (i Invoice) CanSubmit() bool {
	return i.Status == StatusDraft || i.Status == StatusRejectedByManager || i.Status == StatusRejectedByAdmin
}

// Item is one billed line, exclusively owned by its invoice.
type Item struct {
	ID        uuid.UUID `json:"id"`
	InvoiceID uuid.UUID `json:"invoice_id"`
	// ExpenseAccountID is an opaque key into the external chart of accounts,
	// not a foreign key into local storage.
	ExpenseAccountID string    `json:"expense_account_id"`
	Description      string    `json:"description"`
	Quantity         float64   `json:"quantity"`
	Unit             string    `json:"unit,omitempty"`
	UnitPrice        float64   `json:"unit_price"`
	TaxAmount        float64   `json:"tax_amount"`
	Amount           float64   `json:"amount"`
	LineNumber       int       `json:"line_number"`
	MatchType        MatchType `json:"match_type"`
	MatchConfidence  *float64  `json:"match_confidence,omitempty"`
}

// ApprovalRecord is one decision at one approval tier. Records are append-only
// history; a record is mutated exactly once, from Pending to a decision.
type ApprovalRecord struct {
	ID         uuid.UUID      `json:"id"`
	InvoiceID  uuid.UUID      `json:"invoice_id"`
	ApproverID *uuid.UUID     `json:"approver_id,omitempty"`
	Level      ApprovalLevel  `json:"level"`
	Status     ApprovalStatus `json:"status"`
	Comments   *string        `json:"comments,omitempty"`
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Payment is a scheduled or executed disbursement against an approved invoice.
type Payment struct {
	ID        uuid.UUID `json:"id"`
	InvoiceID uuid.UUID `json:"invoice_id"`
	// PaymentAccountID is an external Bank/Cash account id; the name is
	// denormalized for display only.
	PaymentAccountID   string        `json:"payment_account_id"`
	PaymentAccountName string        `json:"payment_account_name"`
	ExecutedByID       *uuid.UUID    `json:"executed_by_id,omitempty"`
	Amount             float64       `json:"amount"`
	Method             string        `json:"method"`
	ReferenceNumber    string        `json:"reference_number"`
	Status             PaymentStatus `json:"status"`
	ScheduledDate      time.Time     `json:"scheduled_date"`
	ExecutedAt         *time.Time    `json:"executed_at,omitempty"`
	ExternalRef        *string       `json:"external_ref,omitempty"`
	JournalEntryRef    *string       `json:"journal_entry_ref,omitempty"`
	FailureReason      *string       `json:"failure_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          *time.Time    `json:"updated_at,omitempty"`
}

// Active reports whether the payment blocks scheduling another one.
func (p Payment) Active() bool {
	return p.Status != PaymentFailed
}

// WithDetails bundles an invoice with its owned collections and display names.
type WithDetails struct {
	Invoice
	VendorName string           `json:"vendor_name,omitempty"`
	Items      []Item           `json:"items"`
	Approvals  []ApprovalRecord `json:"approvals"`
	Payments   []Payment        `json:"payments"`
}

// RecalculateTotals re-derives invoice amounts from line items. Totals are
// never trusted independently once items exist.
func RecalculateTotals(inv *Invoice, items []Item) {
	var total, tax float64
	for _, item := range items {
		total += item.Amount
		tax += item.TaxAmount
	}
	inv.TotalAmount = total
	inv.TaxAmount = tax
	inv.Subtotal = total - tax
}

// RenumberItems assigns contiguous 1-based line numbers.
func RenumberItems(items []Item) {
	for idx := range items {
		items[idx].LineNumber = idx + 1
	}
}

// ActivePayment returns the single non-failed payment, if any.
func (d WithDetails) ActivePayment() *Payment {
	for idx := range d.Payments {
		if d.Payments[idx].Active() {
			return &d.Payments[idx]
		}
	}
	return nil
}

// PendingApprovalAt returns the pending record at the given level, if any.
func (d WithDetails) PendingApprovalAt(level ApprovalLevel) *ApprovalRecord {
	for idx := range d.Approvals {
		if d.Approvals[idx].Level == level && d.Approvals[idx].Status == ApprovalPending {
			return &d.Approvals[idx]
		}
	}
	return nil
}

// Statistics summarises a company's invoices for the dashboard.
type Statistics struct {
	TotalCount           int                `json:"total_count"`
	DraftCount           int                `json:"draft_count"`
	PendingApprovalCount int                `json:"pending_approval_count"`
	ApprovedCount        int                `json:"approved_count"`
	CompletedCount       int                `json:"completed_count"`
	RejectedCount        int                `json:"rejected_count"`
	TotalAmount          float64            `json:"total_amount"`
	PendingAmount        float64            `json:"pending_amount"`
	PaidAmount           float64            `json:"paid_amount"`
	AmountByMonth        map[string]float64 `json:"amount_by_month"`
}

// PaymentStatistics summarises a company's payments by outcome.
type PaymentStatistics struct {
	ScheduledCount  int     `json:"scheduled_count"`
	ScheduledAmount float64 `json:"scheduled_amount"`
	CompletedCount  int     `json:"completed_count"`
	CompletedAmount float64 `json:"completed_amount"`
	FailedCount     int     `json:"failed_count"`
}

package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/platform/db"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// ListFilter narrows and orders invoice listings.
type ListFilter struct {
	CompanyID uuid.UUID
	Status    *Status
	VendorID  *uuid.UUID
	Search    string
	SortBy    string
	SortDir   string
	Page      int
	PageSize  int
}

// Repository defines invoice persistence, covering the whole aggregate:
// the invoice, its line items, approval records and payments.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Invoice, error)
	GetWithDetails(ctx context.Context, id uuid.UUID) (WithDetails, error)
	List(ctx context.Context, filter ListFilter) ([]WithDetails, int, error)
	ListPendingAtLevel(ctx context.Context, companyID uuid.UUID, level ApprovalLevel) ([]WithDetails, error)
	CountPendingAtLevel(ctx context.Context, companyID uuid.UUID, level ApprovalLevel) (int, error)
	CountByVendor(ctx context.Context, vendorID, excludeInvoiceID uuid.UUID) (int, error)
	Statistics(ctx context.Context, companyID uuid.UUID) (Statistics, error)

	GetPayment(ctx context.Context, id uuid.UUID) (Payment, error)
	ListPendingPayments(ctx context.Context, companyID uuid.UUID) ([]Payment, error)
	PaymentStatistics(ctx context.Context, companyID uuid.UUID) (PaymentStatistics, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	CreateInvoice(ctx context.Context, inv Invoice) error
	UpdateInvoice(ctx context.Context, inv Invoice) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	DeleteInvoice(ctx context.Context, id uuid.UUID) error

	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []Item) error

	CreateApproval(ctx context.Context, rec ApprovalRecord) error
	UpdateApproval(ctx context.Context, rec ApprovalRecord) error

	CreatePayment(ctx context.Context, p Payment) error
	UpdatePayment(ctx context.Context, p Payment) error
	DeletePayment(ctx context.Context, id uuid.UUID) error
	// MarkPaymentProcessing flips a scheduled payment to processing and
	// reports whether this call won the transition.
	MarkPaymentProcessing(ctx context.Context, id uuid.UUID) (bool, error)
}

var _ Repository = (*repository)(nil)
var _ TxRepository = (*txRepository)(nil)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const invoiceColumns = `id, company_id, vendor_id, uploaded_by_id, invoice_number, invoice_date,
       due_date, subtotal, tax_amount, total_amount, currency, status,
       file_path, file_name, content_type, file_size, ocr_data, ocr_confidence,
       notes, external_ref, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.VendorID, &inv.UploadedByID, &inv.InvoiceNumber,
		&inv.InvoiceDate, &inv.DueDate, &inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount,
		&inv.Currency, &inv.Status, &inv.FilePath, &inv.FileName, &inv.ContentType,
		&inv.FileSize, &inv.OCRData, &inv.OCRConfidence, &inv.Notes, &inv.ExternalRef,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	return inv, err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.NotFoundf("invoice %s", id)
		}
		return Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (r *repository) GetWithDetails(ctx context.Context, id uuid.UUID) (WithDetails, error) {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return WithDetails{}, err
	}
	detail := WithDetails{Invoice: inv}

	if inv.VendorID != nil {
		err = r.pool.QueryRow(ctx, `SELECT name FROM vendors WHERE id = $1`, *inv.VendorID).Scan(&detail.VendorName)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return WithDetails{}, fmt.Errorf("get invoice vendor: %w", err)
		}
	}

	detail.Items, err = r.listItems(ctx, id)
	if err != nil {
		return WithDetails{}, err
	}
	detail.Approvals, err = r.listApprovals(ctx, id)
	if err != nil {
		return WithDetails{}, err
	}
	detail.Payments, err = r.listPayments(ctx, id)
	if err != nil {
		return WithDetails{}, err
	}
	return detail, nil
}

func (r *repository) listItems(ctx context.Context, invoiceID uuid.UUID) ([]Item, error) {
	query := `
		SELECT id, invoice_id, expense_account_id, description, quantity, unit,
		       unit_price, tax_amount, amount, line_number, match_type, match_confidence
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY line_number
	`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.ID, &item.InvoiceID, &item.ExpenseAccountID, &item.Description,
			&item.Quantity, &item.Unit, &item.UnitPrice, &item.TaxAmount,
			&item.Amount, &item.LineNumber, &item.MatchType, &item.MatchConfidence,
		); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) listApprovals(ctx context.Context, invoiceID uuid.UUID) ([]ApprovalRecord, error) {
	query := `
		SELECT id, invoice_id, approver_id, level, status, comments, decided_at, created_at
		FROM invoice_approvals
		WHERE invoice_id = $1
		ORDER BY level, created_at
	`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var recs []ApprovalRecord
	for rows.Next() {
		var rec ApprovalRecord
		if err := rows.Scan(
			&rec.ID, &rec.InvoiceID, &rec.ApproverID, &rec.Level, &rec.Status,
			&rec.Comments, &rec.DecidedAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

const paymentColumns = `id, invoice_id, payment_account_id, payment_account_name, executed_by_id,
       amount, method, reference_number, status, scheduled_date, executed_at,
       external_ref, journal_entry_ref, failure_reason, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.InvoiceID, &p.PaymentAccountID, &p.PaymentAccountName, &p.ExecutedByID,
		&p.Amount, &p.Method, &p.ReferenceNumber, &p.Status, &p.ScheduledDate,
		&p.ExecutedAt, &p.ExternalRef, &p.JournalEntryRef, &p.FailureReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *repository) listPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

var sortColumns = map[string]string{
	"invoice_date": "i.invoice_date",
	"due_date":     "i.due_date",
	"total_amount": "i.total_amount",
	"status":       "i.status",
	"created_at":   "i.created_at",
	"vendor":       "v.name",
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]WithDetails, int, error) {
	where := []string{"i.company_id = $1"}
	args := []any{filter.CompanyID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if filter.VendorID != nil {
		args = append(args, *filter.VendorID)
		where = append(where, fmt.Sprintf("i.vendor_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(i.invoice_number ILIKE $%d OR v.name ILIKE $%d)", len(args), len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	countQuery := `
		SELECT COUNT(*)
		FROM invoices i
		LEFT JOIN vendors v ON v.id = i.vendor_id
		WHERE ` + whereClause
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "i.created_at"
	}
	dir := "DESC"
	if strings.EqualFold(filter.SortDir, "asc") {
		dir = "ASC"
	}

	page := shared.NewPagination(filter.Page, filter.PageSize, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`
		SELECT i.id, i.company_id, i.vendor_id, i.uploaded_by_id, i.invoice_number, i.invoice_date,
		       i.due_date, i.subtotal, i.tax_amount, i.total_amount, i.currency, i.status,
		       i.file_path, i.file_name, i.content_type, i.file_size, i.ocr_data, i.ocr_confidence,
		       i.notes, i.external_ref, i.created_at, i.updated_at,
		       COALESCE(v.name, '')
		FROM invoices i
		LEFT JOIN vendors v ON v.id = i.vendor_id
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, dir, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var results []WithDetails
	for rows.Next() {
		var d WithDetails
		if err := rows.Scan(
			&d.ID, &d.CompanyID, &d.VendorID, &d.UploadedByID, &d.InvoiceNumber,
			&d.InvoiceDate, &d.DueDate, &d.Subtotal, &d.TaxAmount, &d.TotalAmount,
			&d.Currency, &d.Status, &d.FilePath, &d.FileName, &d.ContentType,
			&d.FileSize, &d.OCRData, &d.OCRConfidence, &d.Notes, &d.ExternalRef,
			&d.CreatedAt, &d.UpdatedAt, &d.VendorName,
		); err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		results = append(results, d)
	}
	return results, total, rows.Err()
}

func statusAtLevel(level ApprovalLevel) Status {
	if level >= LevelAdmin {
		return StatusPendingAdminApproval
	}
	return StatusPendingManagerReview
}

func (r *repository) ListPendingAtLevel(ctx context.Context, companyID uuid.UUID, level ApprovalLevel) ([]WithDetails, error) {
	query := `
		SELECT i.id, i.company_id, i.vendor_id, i.uploaded_by_id, i.invoice_number, i.invoice_date,
		       i.due_date, i.subtotal, i.tax_amount, i.total_amount, i.currency, i.status,
		       i.file_path, i.file_name, i.content_type, i.file_size, i.ocr_data, i.ocr_confidence,
		       i.notes, i.external_ref, i.created_at, i.updated_at,
		       COALESCE(v.name, '')
		FROM invoices i
		LEFT JOIN vendors v ON v.id = i.vendor_id
		WHERE i.company_id = $1 AND i.status = $2
		ORDER BY i.invoice_date
	`
	rows, err := r.pool.Query(ctx, query, companyID, statusAtLevel(level))
	if err != nil {
		return nil, fmt.Errorf("list pending invoices: %w", err)
	}
	defer rows.Close()

	var results []WithDetails
	for rows.Next() {
		var d WithDetails
		if err := rows.Scan(
			&d.ID, &d.CompanyID, &d.VendorID, &d.UploadedByID, &d.InvoiceNumber,
			&d.InvoiceDate, &d.DueDate, &d.Subtotal, &d.TaxAmount, &d.TotalAmount,
			&d.Currency, &d.Status, &d.FilePath, &d.FileName, &d.ContentType,
			&d.FileSize, &d.OCRData, &d.OCRConfidence, &d.Notes, &d.ExternalRef,
			&d.CreatedAt, &d.UpdatedAt, &d.VendorName,
		); err != nil {
			return nil, fmt.Errorf("scan pending invoice: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

func (r *repository) CountPendingAtLevel(ctx context.Context, companyID uuid.UUID, level ApprovalLevel) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE company_id = $1 AND status = $2`,
		companyID, statusAtLevel(level),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending invoices: %w", err)
	}
	return count, nil
}

func (r *repository) CountByVendor(ctx context.Context, vendorID, excludeInvoiceID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE vendor_id = $1 AND id <> $2`,
		vendorID, excludeInvoiceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count vendor invoices: %w", err)
	}
	return count, nil
}

func (r *repository) Statistics(ctx context.Context, companyID uuid.UUID) (Statistics, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'DRAFT'),
			COUNT(*) FILTER (WHERE status IN ('PENDING_MANAGER_REVIEW', 'PENDING_ADMIN_APPROVAL')),
			COUNT(*) FILTER (WHERE status IN ('APPROVED', 'PAYMENT_PENDING', 'PAYMENT_PROCESSING')),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status IN ('REJECTED_BY_MANAGER', 'REJECTED_BY_ADMIN')),
			COALESCE(SUM(total_amount), 0),
			COALESCE(SUM(total_amount) FILTER (WHERE status IN ('PENDING_MANAGER_REVIEW', 'PENDING_ADMIN_APPROVAL')), 0),
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'COMPLETED'), 0)
		FROM invoices
		WHERE company_id = $1
	`
	var stats Statistics
	err := r.pool.QueryRow(ctx, query, companyID).Scan(
		&stats.TotalCount, &stats.DraftCount, &stats.PendingApprovalCount,
		&stats.ApprovedCount, &stats.CompletedCount, &stats.RejectedCount,
		&stats.TotalAmount, &stats.PendingAmount, &stats.PaidAmount,
	)
	if err != nil {
		return Statistics{}, fmt.Errorf("invoice statistics: %w", err)
	}

	monthQuery := `
		SELECT to_char(invoice_date, 'YYYY-MM'), COALESCE(SUM(total_amount), 0)
		FROM invoices
		WHERE company_id = $1 AND invoice_date >= now() - interval '12 months'
		GROUP BY 1
		ORDER BY 1
	`
	rows, err := r.pool.Query(ctx, monthQuery, companyID)
	if err != nil {
		return Statistics{}, fmt.Errorf("invoice statistics by month: %w", err)
	}
	defer rows.Close()

	stats.AmountByMonth = make(map[string]float64)
	for rows.Next() {
		var month string
		var amount float64
		if err := rows.Scan(&month, &amount); err != nil {
			return Statistics{}, fmt.Errorf("scan monthly amount: %w", err)
		}
		stats.AmountByMonth[month] = amount
	}
	return stats, rows.Err()
}

func (r *repository) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.NotFoundf("payment %s", id)
		}
		return Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *repository) ListPendingPayments(ctx context.Context, companyID uuid.UUID) ([]Payment, error) {
	query := `
		SELECT p.id, p.invoice_id, p.payment_account_id, p.payment_account_name, p.executed_by_id,
		       p.amount, p.method, p.reference_number, p.status, p.scheduled_date, p.executed_at,
		       p.external_ref, p.journal_entry_ref, p.failure_reason, p.created_at, p.updated_at
		FROM payments p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE i.company_id = $1 AND p.status = 'SCHEDULED'
		ORDER BY p.scheduled_date
	`
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) PaymentStatistics(ctx context.Context, companyID uuid.UUID) (PaymentStatistics, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE p.status = 'SCHEDULED'),
			COALESCE(SUM(p.amount) FILTER (WHERE p.status = 'SCHEDULED'), 0),
			COUNT(*) FILTER (WHERE p.status = 'COMPLETED'),
			COALESCE(SUM(p.amount) FILTER (WHERE p.status = 'COMPLETED'), 0),
			COUNT(*) FILTER (WHERE p.status = 'FAILED')
		FROM payments p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE i.company_id = $1
	`
	var stats PaymentStatistics
	err := r.pool.QueryRow(ctx, query, companyID).Scan(
		&stats.ScheduledCount, &stats.ScheduledAmount,
		&stats.CompletedCount, &stats.CompletedAmount,
		&stats.FailedCount,
	)
	if err != nil {
		return PaymentStatistics{}, fmt.Errorf("payment statistics: %w", err)
	}
	return stats, nil
}

// ============================================================================
// TRANSACTIONAL WRITES
// ============================================================================

func (t *txRepository) CreateInvoice(ctx context.Context, inv Invoice) error {
	query := `
		INSERT INTO invoices (id, company_id, vendor_id, uploaded_by_id, invoice_number, invoice_date,
		                      due_date, subtotal, tax_amount, total_amount, currency, status,
		                      file_path, file_name, content_type, file_size, ocr_data, ocr_confidence,
		                      notes, external_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err := t.tx.Exec(ctx, query,
		inv.ID, inv.CompanyID, inv.VendorID, inv.UploadedByID, inv.InvoiceNumber, inv.InvoiceDate,
		inv.DueDate, inv.Subtotal, inv.TaxAmount, inv.TotalAmount, inv.Currency, inv.Status,
		inv.FilePath, inv.FileName, inv.ContentType, inv.FileSize, inv.OCRData, inv.OCRConfidence,
		inv.Notes, inv.ExternalRef, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

func (t *txRepository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	query := `
		UPDATE invoices SET
			vendor_id = $2, invoice_number = $3, invoice_date = $4, due_date = $5,
			subtotal = $6, tax_amount = $7, total_amount = $8, currency = $9, status = $10,
			notes = $11, external_ref = $12, updated_at = now()
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query,
		inv.ID, inv.VendorID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate,
		inv.Subtotal, inv.TaxAmount, inv.TotalAmount, inv.Currency, inv.Status,
		inv.Notes, inv.ExternalRef,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %s", inv.ID)
	}
	return nil
}

func (t *txRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %s", id)
	}
	return nil
}

func (t *txRepository) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	// Items, approvals and payments cascade.
	tag, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %s", id)
	}
	return nil
}

func (t *txRepository) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("delete invoice items: %w", err)
	}
	query := `
		INSERT INTO invoice_items (id, invoice_id, expense_account_id, description, quantity, unit,
		                           unit_price, tax_amount, amount, line_number, match_type, match_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, item := range items {
		_, err := t.tx.Exec(ctx, query,
			item.ID, invoiceID, item.ExpenseAccountID, item.Description, item.Quantity, item.Unit,
			item.UnitPrice, item.TaxAmount, item.Amount, item.LineNumber, item.MatchType, item.MatchConfidence,
		)
		if err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}
	return nil
}

func (t *txRepository) CreateApproval(ctx context.Context, rec ApprovalRecord) error {
	query := `
		INSERT INTO invoice_approvals (id, invoice_id, approver_id, level, status, comments, decided_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.tx.Exec(ctx, query,
		rec.ID, rec.InvoiceID, rec.ApproverID, rec.Level, rec.Status, rec.Comments, rec.DecidedAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

func (t *txRepository) UpdateApproval(ctx context.Context, rec ApprovalRecord) error {
	query := `
		UPDATE invoice_approvals
		SET approver_id = $2, status = $3, comments = $4, decided_at = $5
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, rec.ID, rec.ApproverID, rec.Status, rec.Comments, rec.DecidedAt)
	if err != nil {
		return fmt.Errorf("update approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("approval %s", rec.ID)
	}
	return nil
}

func (t *txRepository) CreatePayment(ctx context.Context, p Payment) error {
	query := `
		INSERT INTO payments (id, invoice_id, payment_account_id, payment_account_name, executed_by_id,
		                      amount, method, reference_number, status, scheduled_date, executed_at,
		                      external_ref, journal_entry_ref, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := t.tx.Exec(ctx, query,
		p.ID, p.InvoiceID, p.PaymentAccountID, p.PaymentAccountName, p.ExecutedByID,
		p.Amount, p.Method, p.ReferenceNumber, p.Status, p.ScheduledDate, p.ExecutedAt,
		p.ExternalRef, p.JournalEntryRef, p.FailureReason, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (t *txRepository) UpdatePayment(ctx context.Context, p Payment) error {
	query := `
		UPDATE payments SET
			executed_by_id = $2, status = $3, executed_at = $4, external_ref = $5,
			journal_entry_ref = $6, failure_reason = $7, updated_at = now()
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query,
		p.ID, p.ExecutedByID, p.Status, p.ExecutedAt, p.ExternalRef, p.JournalEntryRef, p.FailureReason)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("payment %s", p.ID)
	}
	return nil
}

func (t *txRepository) DeletePayment(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("payment %s", id)
	}
	return nil
}

func (t *txRepository) MarkPaymentProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		id, PaymentProcessing, PaymentScheduled)
	if err != nil {
		return false, fmt.Errorf("mark payment processing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

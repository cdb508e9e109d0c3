// Package ocr extracts structured invoice data from uploaded documents.
package ocr

import (
	"context"
	"time"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// LineItem is one extracted billing line.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
	Confidence  float64 `json:"confidence"`
}

// Result is what an engine could read off a document. Every field is best
// effort; callers must treat the whole struct as a draft for human review.
// Confidence values are percentages on a 0-100 scale.
type Result struct {
	VendorName    string     `json:"vendor_name"`
	VendorNTN     string     `json:"vendor_ntn"`
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   *time.Time `json:"invoice_date"`
	DueDate       *time.Time `json:"due_date"`
	Subtotal      float64    `json:"subtotal"`
	TaxAmount     float64    `json:"tax_amount"`
	TotalAmount   float64    `json:"total_amount"`
	Currency      string     `json:"currency"`
	Confidence    float64    `json:"confidence"`
	LineItems     []LineItem `json:"line_items"`
	RawText       string     `json:"raw_text,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
}

// Engine reads a document and produces a Result.
type Engine interface {
	Process(ctx context.Context, content []byte, contentType string) (Result, error)
}

// Disabled is an Engine for deployments without an extraction provider.
// Every call fails with the external-service error so uploads degrade to
// manual entry.
type Disabled struct{}

func (Disabled) Process(context.Context, []byte, string) (Result, error) {
	return Result{}, shared.Externalf("ocr is not configured")
}

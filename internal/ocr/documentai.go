package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// maxDocumentSize is the largest document Document AI accepts inline (20MB).
const maxDocumentSize = 20 * 1024 * 1024

const processTimeout = 60 * time.Second

// DocumentAIConfig locates an invoice processor.
type DocumentAIConfig struct {
	ProjectID       string
	Location        string
	ProcessorID     string
	CredentialsFile string
}

// DocumentAI is an Engine backed by Google Document AI's invoice parser.
type DocumentAI struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	logger *slog.Logger
}

var _ Engine = (*DocumentAI)(nil)

// NewDocumentAI opens a Document AI client against the configured region.
func NewDocumentAI(ctx context.Context, cfg DocumentAIConfig, logger *slog.Logger) (*DocumentAI, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("ocr: project id and processor id are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}

	var opts []option.ClientOption
	if cfg.Location != "us" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ocr: create document ai client: %w", err)
	}
	return &DocumentAI{client: client, config: cfg, logger: logger}, nil
}

// Close releases the underlying gRPC connection.
func (e *DocumentAI) Close() error {
	return e.client.Close()
}

func (e *DocumentAI) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		e.config.ProjectID, e.config.Location, e.config.ProcessorID)
}

// Process sends the document inline and maps the returned entities.
func (e *DocumentAI) Process(ctx context.Context, content []byte, contentType string) (Result, error) {
	if len(content) > maxDocumentSize {
		return Result{}, shared.Validationf("document exceeds %d bytes", maxDocumentSize)
	}

	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	resp, err := e.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: e.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: contentType,
			},
		},
	})
	if err != nil {
		return Result{}, shared.Externalf("document ai: %v", err)
	}
	if resp.Document == nil {
		return Result{}, shared.Externalf("document ai returned no document")
	}

	result := e.extract(resp.Document)
	e.logger.Info("document processed",
		"invoice_number", result.InvoiceNumber,
		"vendor", result.VendorName,
		"total", result.TotalAmount,
		"confidence", result.Confidence,
		"line_items", len(result.LineItems),
	)
	return result, nil
}

func (e *DocumentAI) extract(doc *documentaipb.Document) Result {
	result := Result{Currency: "PKR", RawText: doc.Text}

	var confSum float64
	var confCount int
	for _, entity := range doc.Entities {
		value := strings.TrimSpace(entity.MentionText)
		confSum += float64(entity.Confidence)
		confCount++

		switch entity.Type {
		case "invoice_id", "invoice_number":
			result.InvoiceNumber = value
		case "supplier_name", "vendor_name":
			result.VendorName = value
		case "supplier_tax_id", "supplier_registration":
			result.VendorNTN = value
		case "invoice_date":
			if date, ok := extractDate(entity); ok {
				result.InvoiceDate = &date
			} else if value != "" {
				result.Warnings = append(result.Warnings, fmt.Sprintf("unparseable invoice date %q", value))
			}
		case "due_date":
			if date, ok := extractDate(entity); ok {
				result.DueDate = &date
			} else if value != "" {
				result.Warnings = append(result.Warnings, fmt.Sprintf("unparseable due date %q", value))
			}
		case "net_amount":
			result.Subtotal = extractMoney(entity)
		case "total_tax_amount", "vat_amount":
			result.TaxAmount = extractMoney(entity)
		case "total_amount":
			result.TotalAmount = extractMoney(entity)
		case "currency":
			if value != "" {
				result.Currency = strings.ToUpper(value)
			}
		case "line_item":
			if item, ok := extractLineItem(entity); ok {
				result.LineItems = append(result.LineItems, item)
			}
		}
	}

	// Document AI reports confidence on 0-1; the stored scale is 0-100.
	if confCount > 0 {
		result.Confidence = confSum / float64(confCount) * 100
	}
	if result.TotalAmount == 0 && result.Subtotal > 0 {
		result.TotalAmount = result.Subtotal + result.TaxAmount
		result.Warnings = append(result.Warnings, "total amount derived from subtotal and tax")
	}
	return result
}

func extractLineItem(entity *documentaipb.Document_Entity) (LineItem, bool) {
	item := LineItem{
		Quantity:   1,
		Confidence: float64(entity.Confidence) * 100,
	}
	for _, prop := range entity.Properties {
		value := strings.TrimSpace(prop.MentionText)
		switch prop.Type {
		case "line_item/description":
			item.Description = value
		case "line_item/quantity":
			if q := parseNumber(value); q > 0 {
				item.Quantity = q
			}
		case "line_item/unit":
			item.Unit = value
		case "line_item/unit_price":
			item.UnitPrice = extractMoney(prop)
		case "line_item/amount":
			item.Amount = extractMoney(prop)
		}
	}
	if item.Description == "" && item.Amount == 0 {
		return LineItem{}, false
	}
	if item.Amount == 0 && item.UnitPrice > 0 {
		item.Amount = item.UnitPrice * item.Quantity
	}
	return item, true
}

func extractDate(entity *documentaipb.Document_Entity) (time.Time, bool) {
	if nv := entity.NormalizedValue; nv != nil {
		if dv := nv.GetDateValue(); dv != nil {
			return time.Date(int(dv.Year), time.Month(dv.Month), int(dv.Day), 0, 0, 0, 0, time.UTC), true
		}
	}
	dateStr := strings.TrimSpace(entity.MentionText)
	for _, format := range []string{"2006-01-02", "02/01/2006", "02-01-2006", "January 2, 2006", "Jan 2, 2006"} {
		if date, err := time.Parse(format, dateStr); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}

func extractMoney(entity *documentaipb.Document_Entity) float64 {
	if nv := entity.NormalizedValue; nv != nil {
		if mv := nv.GetMoneyValue(); mv != nil {
			return float64(mv.Units) + float64(mv.Nanos)/1e9
		}
	}
	return parseNumber(entity.MentionText)
}

func parseNumber(raw string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return 0
	}
	var n float64
	if _, err := fmt.Sscanf(cleaned, "%f", &n); err != nil {
		return 0
	}
	return n
}

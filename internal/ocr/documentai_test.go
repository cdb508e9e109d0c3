package ocr

import (
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/require"
)

func entity(entityType, text string, confidence float32) *documentaipb.Document_Entity {
	return &documentaipb.Document_Entity{
		Type:        entityType,
		MentionText: text,
		Confidence:  confidence,
	}
}

func TestExtractScalesConfidenceToPercent(t *testing.T) {
	doc := &documentaipb.Document{
		Entities: []*documentaipb.Document_Entity{
			entity("invoice_id", "INV-42", 0.90),
			entity("total_amount", "40000", 0.94),
			{
				Type:       "line_item",
				Confidence: 0.80,
				Properties: []*documentaipb.Document_Entity{
					entity("line_item/description", "Paper", 0.80),
					entity("line_item/amount", "40000", 0.80),
				},
			},
		},
	}

	result := (&DocumentAI{}).extract(doc)

	// Three entities at 0.90, 0.94 and 0.80 average to 0.88 of 1.
	require.InDelta(t, 88, result.Confidence, 0.5)
	require.Len(t, result.LineItems, 1)
	require.InDelta(t, 80, result.LineItems[0].Confidence, 0.5)
}

func TestExtractMapsEntities(t *testing.T) {
	doc := &documentaipb.Document{
		Text: "Invoice INV-42 from PTCL",
		Entities: []*documentaipb.Document_Entity{
			entity("invoice_id", "INV-42", 0.9),
			entity("supplier_name", "PTCL", 0.9),
			entity("supplier_tax_id", "1234567-8", 0.9),
			entity("invoice_date", "2025-05-20", 0.9),
			entity("net_amount", "40000", 0.9),
			entity("total_tax_amount", "7200", 0.9),
		},
	}

	result := (&DocumentAI{}).extract(doc)

	require.Equal(t, "INV-42", result.InvoiceNumber)
	require.Equal(t, "PTCL", result.VendorName)
	require.Equal(t, "1234567-8", result.VendorNTN)
	require.NotNil(t, result.InvoiceDate)
	require.Equal(t, "Invoice INV-42 from PTCL", result.RawText)

	// No total entity: derived from subtotal plus tax, with a warning.
	require.InDelta(t, 47200, result.TotalAmount, 0.001)
	require.Contains(t, result.Warnings, "total amount derived from subtotal and tax")
}

func TestExtractWarnsOnUnparseableDate(t *testing.T) {
	doc := &documentaipb.Document{
		Entities: []*documentaipb.Document_Entity{
			entity("due_date", "end of Ramadan", 0.4),
			entity("total_amount", "500", 0.9),
		},
	}

	result := (&DocumentAI{}).extract(doc)

	require.Nil(t, result.DueDate)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "due date")
}

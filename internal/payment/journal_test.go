package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/accounting"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/invoice"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

var journalDate = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func bankAccount() accounting.Account {
	return accounting.Account{
		ExternalID: "1002",
		Code:       "1002",
		Name:       "HBL Current Account",
		Type:       accounting.AccountTypeAsset,
		SubType:    accounting.SubTypeBank,
	}
}

func detailsWithItems(number string, items ...invoice.Item) invoice.WithDetails {
	var total float64
	for _, item := range items {
		total += item.Amount
	}
	return invoice.WithDetails{
		Invoice: invoice.Invoice{
			ID:            uuid.New(),
			InvoiceNumber: number,
			TotalAmount:   total,
		},
		VendorName: "Paper Supplies Ltd",
		Items:      items,
	}
}

func TestJournalEntryBalances(t *testing.T) {
	cases := []struct {
		name    string
		amounts map[string]float64
	}{
		{"one account", map[string]float64{"5001": 40_000}},
		{"two accounts", map[string]float64{"5001": 12_000, "5002": 28_000}},
		{"three accounts", map[string]float64{"5001": 12_000, "5002": 8_000, "5003": 20_000}},
		{"five accounts", map[string]float64{
			"5001": 7_500, "5002": 9_250.50, "5003": 11_000, "5004": 6_249.50, "5005": 6_000,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var items []invoice.Item
			for accountID, amount := range tc.amounts {
				items = append(items, invoice.Item{ExpenseAccountID: accountID, Amount: amount})
			}
			d := detailsWithItems("INV-42", items...)

			entry, err := BuildJournalEntry(d, bankAccount(), nil, journalDate)
			require.NoError(t, err)
			require.Len(t, entry.Lines, len(tc.amounts)+1)
			require.InDelta(t, entry.TotalDebits(), entry.TotalCredits(), 0.001)
			require.InDelta(t, 40_000, entry.TotalCredits(), 0.001)
		})
	}
}

func TestJournalEntryGroupsItemsByAccount(t *testing.T) {
	d := detailsWithItems("INV-42",
		invoice.Item{ExpenseAccountID: "5001", Amount: 10_000},
		invoice.Item{ExpenseAccountID: "5001", Amount: 5_000},
		invoice.Item{ExpenseAccountID: "5002", Amount: 25_000},
	)

	entry, err := BuildJournalEntry(d, bankAccount(), nil, journalDate)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 3)

	require.Equal(t, "5001", entry.Lines[0].AccountID)
	require.InDelta(t, 15_000, entry.Lines[0].Debit, 0.001)
	require.Equal(t, "5002", entry.Lines[1].AccountID)
	require.InDelta(t, 25_000, entry.Lines[1].Debit, 0.001)

	credit := entry.Lines[2]
	require.Equal(t, "1002", credit.AccountID)
	require.InDelta(t, 40_000, credit.Credit, 0.001)
	require.Zero(t, credit.Debit)
}

func TestJournalEntryDeterministicOrdering(t *testing.T) {
	d := detailsWithItems("INV-42",
		invoice.Item{ExpenseAccountID: "5009", Amount: 100},
		invoice.Item{ExpenseAccountID: "5001", Amount: 100},
		invoice.Item{ExpenseAccountID: "5005", Amount: 100},
	)

	first, err := BuildJournalEntry(d, bankAccount(), nil, journalDate)
	require.NoError(t, err)
	second, err := BuildJournalEntry(d, bankAccount(), nil, journalDate)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, "5001", first.Lines[0].AccountID)
	require.Equal(t, "5005", first.Lines[1].AccountID)
	require.Equal(t, "5009", first.Lines[2].AccountID)
}

func TestJournalEntryMemoAndReference(t *testing.T) {
	d := detailsWithItems("INV-42", invoice.Item{ExpenseAccountID: "5001", Amount: 500})

	entry, err := BuildJournalEntry(d, bankAccount(), nil, journalDate)
	require.NoError(t, err)
	require.Equal(t, "Payment for Invoice INV-42 - Paper Supplies Ltd", entry.Memo)
	require.Equal(t, "PAY-INV-42", entry.ReferenceNumber)
	require.Equal(t, journalDate, entry.Date)
}

func TestJournalEntryUnknownVendorPlaceholder(t *testing.T) {
	d := detailsWithItems("INV-42", invoice.Item{ExpenseAccountID: "5001", Amount: 500})
	d.VendorName = ""

	entry, err := BuildJournalEntry(d, bankAccount(), nil, journalDate)
	require.NoError(t, err)
	require.Equal(t, "Payment for Invoice INV-42 - Unknown Vendor", entry.Memo)
}

func TestJournalEntryFillsAccountNamesFromLookup(t *testing.T) {
	d := detailsWithItems("INV-42", invoice.Item{ExpenseAccountID: "5001", Amount: 500})
	lookup := map[string]accounting.Account{
		"5001": {ExternalID: "5001", Code: "5001", Name: "Office Supplies", Type: accounting.AccountTypeExpense},
	}

	entry, err := BuildJournalEntry(d, bankAccount(), lookup, journalDate)
	require.NoError(t, err)
	require.Equal(t, "Office Supplies", entry.Lines[0].AccountName)
	require.Equal(t, accounting.AccountTypeExpense, entry.Lines[0].AccountType)
}

func TestJournalEntryDebitsDefaultToExpenseType(t *testing.T) {
	d := detailsWithItems("INV-42", invoice.Item{ExpenseAccountID: "5099", Amount: 500})

	// No chart lookup at all: the debit still books as an expense.
	entry, err := BuildJournalEntry(d, bankAccount(), nil, journalDate)
	require.NoError(t, err)
	require.Equal(t, accounting.AccountTypeExpense, entry.Lines[0].AccountType)
	require.Empty(t, entry.Lines[0].AccountName)
}

func TestJournalEntryRejectsNoExpenseLines(t *testing.T) {
	d := detailsWithItems("INV-42", invoice.Item{ExpenseAccountID: "", Amount: 500})

	_, err := BuildJournalEntry(d, bankAccount(), nil, journalDate)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestJournalEntryRejectsMismatchedTotal(t *testing.T) {
	d := detailsWithItems("INV-42", invoice.Item{ExpenseAccountID: "5001", Amount: 500})
	d.TotalAmount = 600

	_, err := BuildJournalEntry(d, bankAccount(), nil, journalDate)
	require.ErrorIs(t, err, shared.ErrValidation)
}

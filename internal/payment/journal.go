package payment

import (
	"fmt"
	"sort"
	"time"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/accounting"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/invoice"
	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// BuildJournalEntry derives the balanced ledger entry for paying an invoice:
// one debit line per distinct expense account, one credit line of the full
// invoice total against the funding account. Line items sharing an expense
// account collapse into a single debit. The function is pure, so previewing
// and posting produce the same entry for the same inputs.
func BuildJournalEntry(d invoice.WithDetails, paymentAccount accounting.Account, lookup map[string]accounting.Account, date time.Time) (accounting.JournalEntry, error) {
	type group struct {
		amount float64
		count  int
	}
	groups := make(map[string]*group)
	for _, item := range d.Items {
		if item.ExpenseAccountID == "" {
			continue
		}
		g, ok := groups[item.ExpenseAccountID]
		if !ok {
			g = &group{}
			groups[item.ExpenseAccountID] = g
		}
		g.amount += item.Amount
		g.count++
	}
	if len(groups) == 0 {
		return accounting.JournalEntry{}, shared.Validationf("invoice %s has no line items with expense accounts", d.ID)
	}

	accountIDs := make([]string, 0, len(groups))
	for id := range groups {
		accountIDs = append(accountIDs, id)
	}
	sort.Strings(accountIDs)

	vendorName := d.VendorName
	if vendorName == "" {
		vendorName = "Unknown Vendor"
	}

	lines := make([]accounting.JournalLine, 0, len(accountIDs)+1)
	for _, id := range accountIDs {
		g := groups[id]
		line := accounting.JournalLine{
			AccountID: id,
			// Debits come from invoice line items, which only ever carry
			// expense accounts; a chart miss still books as an expense.
			AccountType: accounting.AccountTypeExpense,
			Debit:       g.amount,
			Description: fmt.Sprintf("%d item(s) from invoice %s", g.count, d.InvoiceNumber),
		}
		if acc, ok := lookup[id]; ok {
			line.AccountName = acc.Name
			line.AccountCode = acc.Code
			line.AccountType = acc.Type
		}
		lines = append(lines, line)
	}
	lines = append(lines, accounting.JournalLine{
		AccountID:   paymentAccount.ExternalID,
		AccountName: paymentAccount.Name,
		AccountCode: paymentAccount.Code,
		AccountType: paymentAccount.Type,
		Credit:      d.TotalAmount,
		Description: fmt.Sprintf("Payment to %s", vendorName),
	})

	entry := accounting.JournalEntry{
		Date:            date,
		Memo:            fmt.Sprintf("Payment for Invoice %s - %s", d.InvoiceNumber, vendorName),
		ReferenceNumber: "PAY-" + d.InvoiceNumber,
		Lines:           lines,
	}
	if !entry.Balanced() {
		return accounting.JournalEntry{}, shared.Validationf(
			"journal entry for invoice %s does not balance: debits %.2f, credits %.2f",
			d.InvoiceNumber, entry.TotalDebits(), entry.TotalCredits())
	}
	return entry, nil
}

package accounting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SampleClient serves a fixed PKR chart of accounts and accepts every journal
// entry. It stands in when no accounting system is connected, so demo
// companies can run the whole approval-to-payment flow.
type SampleClient struct {
	accounts []Account
	now      func() time.Time
}

// NewSampleClient constructs the sample client.
func NewSampleClient() *SampleClient {
	return &SampleClient{accounts: sampleAccounts(), now: time.Now}
}

func (c *SampleClient) GetAccounts(ctx context.Context) ([]Account, error) {
	out := make([]Account, len(c.accounts))
	copy(out, c.accounts)
	return out, nil
}

func (c *SampleClient) GetAccountsByType(ctx context.Context, accountType AccountType) ([]Account, error) {
	var out []Account
	for _, acc := range c.accounts {
		if acc.Type == accountType {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (c *SampleClient) GetAccountByID(ctx context.Context, accountID string) (*Account, error) {
	for _, acc := range c.accounts {
		if acc.ExternalID == accountID {
			found := acc
			return &found, nil
		}
	}
	return nil, nil
}

func (c *SampleClient) CreateJournalEntry(ctx context.Context, entry JournalEntry) (JournalResult, error) {
	externalID := "JE-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	return JournalResult{
		Success:         true,
		ExternalID:      externalID,
		ReferenceNumber: fmt.Sprintf("JE-%s", c.now().Format("20060102150405")),
	}, nil
}

func (c *SampleClient) TestConnection(ctx context.Context) (bool, error) {
	return true, nil
}

func sampleAccounts() []Account {
	return []Account{
		{ExternalID: "1001", Code: "1001", Name: "Cash in Hand", Type: AccountTypeAsset, SubType: SubTypeCash, Currency: "PKR", IsActive: true},
		{ExternalID: "1002", Code: "1002", Name: "HBL Current Account", Type: AccountTypeAsset, SubType: SubTypeBank, Currency: "PKR", IsActive: true},
		{ExternalID: "1003", Code: "1003", Name: "MCB Current Account", Type: AccountTypeAsset, SubType: SubTypeBank, Currency: "PKR", IsActive: true},
		{ExternalID: "1004", Code: "1004", Name: "Allied Bank Account", Type: AccountTypeAsset, SubType: SubTypeBank, Currency: "PKR", IsActive: true},
		{ExternalID: "1101", Code: "1101", Name: "Accounts Receivable", Type: AccountTypeAsset, SubType: SubTypeAccountsReceivable, Currency: "PKR", IsActive: true},
		{ExternalID: "1201", Code: "1201", Name: "Inventory", Type: AccountTypeAsset, SubType: SubTypeOtherCurrentAsset, Currency: "PKR", IsActive: true},
		{ExternalID: "1301", Code: "1301", Name: "Furniture & Fixtures", Type: AccountTypeAsset, SubType: SubTypeFixedAsset, Currency: "PKR", IsActive: true},
		{ExternalID: "2001", Code: "2001", Name: "Accounts Payable", Type: AccountTypeLiability, SubType: SubTypeAccountsPayable, Currency: "PKR", IsActive: true},
		{ExternalID: "2201", Code: "2201", Name: "GST Payable", Type: AccountTypeLiability, SubType: SubTypeOtherCurrentLiability, Currency: "PKR", IsActive: true},
		{ExternalID: "2301", Code: "2301", Name: "Bank Loan", Type: AccountTypeLiability, SubType: SubTypeLongTermLiability, Currency: "PKR", IsActive: true},
		{ExternalID: "4001", Code: "4001", Name: "Sales Revenue", Type: AccountTypeRevenue, SubType: SubTypeIncome, Currency: "PKR", IsActive: true},
		{ExternalID: "4101", Code: "4101", Name: "Interest Income", Type: AccountTypeRevenue, SubType: SubTypeOtherIncome, Currency: "PKR", IsActive: true},
		{ExternalID: "5001", Code: "5001", Name: "Cost of Goods Sold", Type: AccountTypeExpense, SubType: SubTypeCostOfGoodsSold, Currency: "PKR", IsActive: true},
		{ExternalID: "5101", Code: "5101", Name: "Office Supplies", Type: AccountTypeExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5102", Code: "5102", Name: "Utilities", Type: AccountTypeExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5103", Code: "5103", Name: "Telephone & Internet", Type: AccountTypeExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5104", Code: "5104", Name: "Rent Expense", Type: AccountTypeExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5105", Code: "5105", Name: "Salaries & Wages", Type: AccountTypeExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5107", Code: "5107", Name: "Repairs & Maintenance", Type: AccountTypeExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5108", Code: "5108", Name: "Travel & Transportation", Type: AccountTypeExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5110", Code: "5110", Name: "Professional Fees", Type: AccountTypeExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5111", Code: "5111", Name: "Bank Charges", Type: AccountTypeExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5201", Code: "5201", Name: "Interest Expense", Type: AccountTypeExpense, SubType: SubTypeOtherExpense, Currency: "PKR", IsActive: true},
		{ExternalID: "5202", Code: "5202", Name: "Miscellaneous Expense", Type: AccountTypeExpense, SubType: SubTypeOtherExpense, Currency: "PKR", IsActive: true},
	}
}

package accounting

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates CoA categories in the external ledger.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountSubType narrows an account type for filtering; only Bank and Cash
// matter to payment scheduling.
type AccountSubType string

const (
	SubTypeBank                  AccountSubType = "BANK"
	SubTypeCash                  AccountSubType = "CASH"
	SubTypeAccountsReceivable    AccountSubType = "ACCOUNTS_RECEIVABLE"
	SubTypeAccountsPayable       AccountSubType = "ACCOUNTS_PAYABLE"
	SubTypeOtherCurrentAsset     AccountSubType = "OTHER_CURRENT_ASSET"
	SubTypeFixedAsset            AccountSubType = "FIXED_ASSET"
	SubTypeOtherCurrentLiability AccountSubType = "OTHER_CURRENT_LIABILITY"
	SubTypeLongTermLiability     AccountSubType = "LONG_TERM_LIABILITY"
	SubTypeCostOfGoodsSold       AccountSubType = "COST_OF_GOODS_SOLD"
	SubTypeIncome                AccountSubType = "INCOME"
	SubTypeOtherIncome           AccountSubType = "OTHER_INCOME"
	SubTypeOtherExpense          AccountSubType = "OTHER_EXPENSE"
)

// Account is an external chart-of-accounts entry. It is never persisted
// locally; the external system stays the source of truth and this struct only
// lives in the short-term cache.
type Account struct {
	ExternalID string         `json:"external_id"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	Type       AccountType    `json:"type"`
	SubType    AccountSubType `json:"sub_type,omitempty"`
	Balance    float64        `json:"balance"`
	Currency   string         `json:"currency,omitempty"`
	IsActive   bool           `json:"is_active"`
}

// IsPaymentAccount reports whether the account can fund a disbursement.
func (a Account) IsPaymentAccount() bool {
	return a.Type == AccountTypeAsset && (a.SubType == SubTypeBank || a.SubType == SubTypeCash)
}

// JournalEntry is a balanced set of debit/credit lines posted to the external
// ledger for one payment event.
type JournalEntry struct {
	Date            time.Time     `json:"date"`
	Memo            string        `json:"memo"`
	ReferenceNumber string        `json:"reference_number"`
	Lines           []JournalLine `json:"lines"`
}

// JournalLine is one side of a journal entry against one external account.
type JournalLine struct {
	AccountID   string      `json:"account_id"`
	AccountName string      `json:"account_name"`
	AccountCode string      `json:"account_code"`
	AccountType AccountType `json:"account_type"`
	Debit       float64     `json:"debit"`
	Credit      float64     `json:"credit"`
	Description string      `json:"description"`
}

// TotalDebits sums the debit side.
func (e JournalEntry) TotalDebits() float64 {
	var sum float64
	for _, line := range e.Lines {
		sum += line.Debit
	}
	return sum
}

// TotalCredits sums the credit side.
func (e JournalEntry) TotalCredits() float64 {
	var sum float64
	for _, line := range e.Lines {
		sum += line.Credit
	}
	return sum
}

// Balanced reports whether debits and credits agree to the cent.
func (e JournalEntry) Balanced() bool {
	return math.Abs(e.TotalDebits()-e.TotalCredits()) < 0.01
}

// JournalResult is the external system's answer to a posting attempt.
type JournalResult struct {
	Success         bool
	ExternalID      string
	ReferenceNumber string
	ErrorMessage    string
}

// Provider enumerates supported accounting integrations.
type Provider string

const (
	ProviderNone       Provider = "NONE"
	ProviderEndraaj    Provider = "ENDRAAJ"
	ProviderQuickBooks Provider = "QUICKBOOKS"
)

// Connection holds a company's integration settings. Loaded by the factory;
// the zero value selects the sample client.
type Connection struct {
	CompanyID   uuid.UUID
	Provider    Provider
	BaseURL     string
	AccessToken string
	RealmID     string
}

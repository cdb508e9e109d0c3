package accounting

import (
	"context"

	"github.com/google/uuid"
)

// Client talks to one external accounting system on behalf of one company.
// Implementations must treat account ids as opaque strings; the ledger owns
// them and no referential integrity is enforced locally.
type Client interface {
	GetAccounts(ctx context.Context) ([]Account, error)
	GetAccountsByType(ctx context.Context, accountType AccountType) ([]Account, error)
	GetAccountByID(ctx context.Context, accountID string) (*Account, error)
	CreateJournalEntry(ctx context.Context, entry JournalEntry) (JournalResult, error)
	TestConnection(ctx context.Context) (bool, error)
}

// ConnectionStore persists a company's integration settings.
type ConnectionStore interface {
	GetConnection(ctx context.Context, companyID uuid.UUID) (Connection, error)
	SaveConnection(ctx context.Context, conn Connection) error
}

// ClientFactory builds a Client for a company based on its stored connection.
// Companies without a configured provider get the deterministic sample client
// so the approval and payment flow stays fully exercisable.
type ClientFactory struct {
	store ConnectionStore
}

// NewClientFactory constructs the factory.
func NewClientFactory(store ConnectionStore) *ClientFactory {
	return &ClientFactory{store: store}
}

// ClientFor resolves the client for a company.
func (f *ClientFactory) ClientFor(ctx context.Context, companyID uuid.UUID) (Client, error) {
	if f.store == nil {
		return NewSampleClient(), nil
	}
	conn, err := f.store.GetConnection(ctx, companyID)
	if err != nil {
		return nil, err
	}
	switch conn.Provider {
	case ProviderEndraaj, ProviderQuickBooks:
		return NewHTTPClient(conn), nil
	default:
		return NewSampleClient(), nil
	}
}

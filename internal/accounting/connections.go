package accounting

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ ConnectionStore = (*pgConnectionStore)(nil)

type pgConnectionStore struct {
	pool *pgxpool.Pool
}

// NewConnectionStore creates a PostgreSQL backed connection store.
func NewConnectionStore(pool *pgxpool.Pool) ConnectionStore {
	return &pgConnectionStore{pool: pool}
}

// GetConnection loads a company's integration settings. A company without a
// row gets the zero connection, which selects the sample client.
func (s *pgConnectionStore) GetConnection(ctx context.Context, companyID uuid.UUID) (Connection, error) {
	query := `
		SELECT company_id, provider, base_url, access_token, realm_id
		FROM accounting_connections
		WHERE company_id = $1
	`
	var conn Connection
	err := s.pool.QueryRow(ctx, query, companyID).Scan(
		&conn.CompanyID, &conn.Provider, &conn.BaseURL, &conn.AccessToken, &conn.RealmID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Connection{CompanyID: companyID, Provider: ProviderNone}, nil
		}
		return Connection{}, fmt.Errorf("get accounting connection: %w", err)
	}
	return conn, nil
}

// SaveConnection upserts a company's integration settings.
func (s *pgConnectionStore) SaveConnection(ctx context.Context, conn Connection) error {
	query := `
		INSERT INTO accounting_connections (company_id, provider, base_url, access_token, realm_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			base_url = EXCLUDED.base_url,
			access_token = EXCLUDED.access_token,
			realm_id = EXCLUDED.realm_id,
			updated_at = now()
	`
	_, err := s.pool.Exec(ctx, query,
		conn.CompanyID, conn.Provider, conn.BaseURL, conn.AccessToken, conn.RealmID,
	)
	if err != nil {
		return fmt.Errorf("save accounting connection: %w", err)
	}
	return nil
}

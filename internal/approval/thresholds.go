package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Thresholds carries the per-company amount bands, in the invoice currency.
// Amounts at or below ManagerMax clear with a manager; amounts above CFOMax
// need the top tier; everything between goes to an admin.
type Thresholds struct {
	ManagerMax float64
	AdminMax   float64
	CFOMax     float64
}

// DefaultThresholds applies when a company has not configured its own bands.
var DefaultThresholds = Thresholds{
	ManagerMax: 50_000,
	AdminMax:   500_000,
	CFOMax:     1_000_000,
}

// ConfigStore resolves a company's approval thresholds.
type ConfigStore interface {
	Thresholds(ctx context.Context, companyID uuid.UUID) (Thresholds, error)
}

type pgConfigStore struct {
	pool *pgxpool.Pool
}

// NewConfigStore creates a PostgreSQL backed threshold store. Companies
// without a row fall back to DefaultThresholds.
func NewConfigStore(pool *pgxpool.Pool) ConfigStore {
	return &pgConfigStore{pool: pool}
}

func (s *pgConfigStore) Thresholds(ctx context.Context, companyID uuid.UUID) (Thresholds, error) {
	var t Thresholds
	err := s.pool.QueryRow(ctx,
		`SELECT manager_max, admin_max, cfo_max FROM approval_thresholds WHERE company_id = $1`,
		companyID,
	).Scan(&t.ManagerMax, &t.AdminMax, &t.CFOMax)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultThresholds, nil
		}
		return Thresholds{}, fmt.Errorf("get approval thresholds: %w", err)
	}
	return t, nil
}

// StaticThresholds is a ConfigStore that always returns the same bands.
type StaticThresholds Thresholds

func (s StaticThresholds) Thresholds(context.Context, uuid.UUID) (Thresholds, error) {
	return Thresholds(s), nil
}

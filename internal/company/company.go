package company

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NomanMediaMonitors/Invoice-automation/internal/shared"
)

// Company is a tenant. All invoices, vendors and accounting connections hang
// off a company.
type Company struct {
	ID        uuid.UUID
	Name      string
	NTN       *string
	Address   *string
	Currency  string
	IsActive  bool
	CreatedAt time.Time
}

// Member ties a user to a company with a role.
type Member struct {
	CompanyID uuid.UUID
	UserID    uuid.UUID
	Role      shared.Role
	JoinedAt  time.Time
}

// Repository defines company and membership lookups.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Company, error)
	// MemberRole resolves a user's role within a company. A user who is not
	// a member gets shared.ErrUnauthorized.
	MemberRole(ctx context.Context, companyID, userID uuid.UUID) (shared.Role, error)
	ListMembers(ctx context.Context, companyID uuid.UUID) ([]Member, error)
}

var _ Repository = (*repository)(nil)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (Company, error) {
	query := `SELECT id, name, ntn, address, currency, is_active, created_at FROM companies WHERE id = $1`
	var c Company
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.NTN, &c.Address, &c.Currency, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, shared.NotFoundf("company %s", id)
		}
		return Company{}, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

func (r *repository) MemberRole(ctx context.Context, companyID, userID uuid.UUID) (shared.Role, error) {
	var role string
	err := r.pool.QueryRow(ctx,
		`SELECT role FROM company_members WHERE company_id = $1 AND user_id = $2`,
		companyID, userID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.RoleViewer, shared.Unauthorizedf("user %s is not a member of company %s", userID, companyID)
		}
		return shared.RoleViewer, fmt.Errorf("get member role: %w", err)
	}
	return shared.ParseRole(role), nil
}

func (r *repository) ListMembers(ctx context.Context, companyID uuid.UUID) ([]Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT company_id, user_id, role, joined_at FROM company_members WHERE company_id = $1 ORDER BY joined_at`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var role string
		if err := rows.Scan(&m.CompanyID, &m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = shared.ParseRole(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

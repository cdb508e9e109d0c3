// Package audit keeps an append-only trail of who did what.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one recorded action.
type Entry struct {
	ID         uuid.UUID
	CompanyID  uuid.UUID
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Recorder persists audit entries. Recording is best effort; callers log
// failures and carry on rather than failing the business operation.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, companyID uuid.UUID, entityType string, entityID uuid.UUID) ([]Entry, error)
}

type pgRecorder struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Recorder = (*pgRecorder)(nil)

// NewRecorder creates a PostgreSQL backed recorder.
func NewRecorder(pool *pgxpool.Pool) Recorder {
	return &pgRecorder{pool: pool, now: time.Now}
}

func (r *pgRecorder) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("audit: marshal metadata: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, company_id, actor_id, action, entity_type, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.CompanyID, e.ActorID, e.Action, e.EntityType, e.EntityID, meta, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

func (r *pgRecorder) List(ctx context.Context, companyID uuid.UUID, entityType string, entityID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_id, actor_id, action, entity_type, entity_id, metadata, created_at
		FROM audit_log
		WHERE company_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at
	`, companyID, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("audit: unmarshal metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Try records an entry and logs instead of failing.
func Try(ctx context.Context, rec Recorder, logger *slog.Logger, e Entry) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, e); err != nil {
		logger.Warn("audit record failed", "action", e.Action, "entity_id", e.EntityID, "error", err)
	}
}

// Nop discards everything, for tests.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
func (Nop) List(context.Context, uuid.UUID, string, uuid.UUID) ([]Entry, error) {
	return nil, nil
}

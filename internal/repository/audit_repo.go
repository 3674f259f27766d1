package repository

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/Domenick1991/appointments/internal/domain"
)

// AuditRepository is append-only: there is no update or delete.
type AuditRepository interface {
	Insert(ctx context.Context, entry *domain.AuditEntry) error
	ListForBooking(ctx context.Context, bookingID int64) ([]domain.AuditEntry, error)
	ListRecent(ctx context.Context, workspaceID int64, limit int) ([]domain.AuditEntry, error)
}

type SQLAuditRepository struct {
	sqlRepo
}

func (r *SQLAuditRepository) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.Details == nil {
		entry.Details = domain.AuditDetails{}
	}
	entry.CreatedAt = r.now()
	const query = `INSERT INTO audit_logs (workspace_id, booking_id, actor_id, action, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.get(ctx, &entry.ID, query,
		entry.WorkspaceID, entry.BookingID, entry.ActorID, entry.Action, entry.Details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry %s: %w", entry.Action, err)
	}
	return nil
}

func (r *SQLAuditRepository) ListForBooking(ctx context.Context, bookingID int64) ([]domain.AuditEntry, error) {
	return r.list(ctx, goqu.Ex{"booking_id": bookingID}, 0)
}

func (r *SQLAuditRepository) ListRecent(ctx context.Context, workspaceID int64, limit int) ([]domain.AuditEntry, error) {
	return r.list(ctx, goqu.Ex{"workspace_id": workspaceID}, limit)
}

// list orders newest first; id breaks ties between entries written in the same instant.
func (r *SQLAuditRepository) list(ctx context.Context, where goqu.Ex, limit int) ([]domain.AuditEntry, error) {
	ds := r.dialect.builder().
		From("audit_logs").
		Prepared(true).
		Select("id", "workspace_id", "booking_id", "actor_id", "action", "details", "created_at").
		Where(where).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}
	var entries []domain.AuditEntry
	if err := sqlx.SelectContext(ctx, r.q, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/Domenick1991/appointments/internal/domain"
)

// OverlapQuery is the one place the half-open interval test and its scoping live.
// With StaffID set the scope is the staff member inside the workspace, otherwise the service.
type OverlapQuery struct {
	WorkspaceID      int64
	ServiceID        int64
	StaffID          *int64
	ExcludeBookingID int64
	Interval         domain.Interval
	Statuses         []domain.BookingStatus
}

func (q OverlapQuery) where() []exp.Expression {
	conds := []exp.Expression{
		goqu.C("start_time").Lt(dbTime(q.Interval.End)),
		goqu.C("end_time").Gt(dbTime(q.Interval.Start)),
	}
	if q.StaffID != nil {
		conds = append(conds,
			goqu.C("workspace_id").Eq(q.WorkspaceID),
			goqu.C("staff_id").Eq(*q.StaffID),
		)
	} else {
		conds = append(conds, goqu.C("service_id").Eq(q.ServiceID))
	}
	if q.ExcludeBookingID != 0 {
		conds = append(conds, goqu.C("id").Neq(q.ExcludeBookingID))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]any, 0, len(q.Statuses))
		for _, s := range q.Statuses {
			statuses = append(statuses, string(s))
		}
		conds = append(conds, goqu.C("status").In(statuses...))
	}
	return conds
}

func (r sqlRepo) overlapSelect(q OverlapQuery) *goqu.SelectDataset {
	return r.dialect.builder().
		From("bookings").
		Prepared(true).
		Select(bookingColumnsAny()...).
		Where(q.where()...).
		Order(goqu.C("start_time").Asc(), goqu.C("id").Asc())
}

// FindOverlap returns the earliest booking matching q, or nil when the window is free.
func (r *SQLBookingRepository) FindOverlap(ctx context.Context, q OverlapQuery) (*domain.Booking, error) {
	found, err := r.queryOverlap(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// ListOverlapping returns every booking matching q ordered by start time.
func (r *SQLBookingRepository) ListOverlapping(ctx context.Context, q OverlapQuery) ([]domain.Booking, error) {
	return r.queryOverlap(ctx, q, 0)
}

func (r *SQLBookingRepository) queryOverlap(ctx context.Context, q OverlapQuery, limit uint) ([]domain.Booking, error) {
	ds := r.overlapSelect(q)
	if limit > 0 {
		ds = ds.Limit(limit)
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build overlap query: %w", err)
	}
	var bookings []domain.Booking
	// goqu already emits dialect placeholders.
	if err := sqlx.SelectContext(ctx, r.q, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("overlap query: %w", err)
	}
	return bookings, nil
}

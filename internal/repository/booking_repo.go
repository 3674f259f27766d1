package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
)

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	// GetForUpdate reads the booking and holds its row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	// Update writes b if its version is unchanged since it was read and bumps the version.
	Update(ctx context.Context, b *domain.Booking) error
	FindOverlap(ctx context.Context, q OverlapQuery) (*domain.Booking, error)
	ListOverlapping(ctx context.Context, q OverlapQuery) ([]domain.Booking, error)
	ListByWorkspace(ctx context.Context, workspaceID int64, limit int) ([]domain.Booking, error)
	ListDueReminders(ctx context.Context, from, until time.Time, limit int) ([]domain.Booking, error)
	ListDueFollowUps(ctx context.Context, endedBefore time.Time, limit int) ([]domain.Booking, error)
}

var bookingColumns = []string{
	"id", "workspace_id", "service_id", "contact_id", "staff_id", "start_time", "end_time", "status",
	"reminder_sent", "follow_up_sent", "version", "created_at", "updated_at",
}

var bookingSelect = "SELECT " + strings.Join(bookingColumns, ", ") + " FROM bookings"

func bookingColumnsAny() []any {
	cols := make([]any, len(bookingColumns))
	for i, c := range bookingColumns {
		cols[i] = c
	}
	return cols
}

type SQLBookingRepository struct {
	sqlRepo
}

func (r *SQLBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	now := r.now()
	b.StartTime = dbTime(b.StartTime)
	b.EndTime = dbTime(b.EndTime)
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now

	const query = `INSERT INTO bookings
		(workspace_id, service_id, contact_id, staff_id, start_time, end_time, status,
		 reminder_sent, follow_up_sent, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.get(ctx, &b.ID, query,
		b.WorkspaceID, b.ServiceID, b.ContactID, b.StaffID, b.StartTime, b.EndTime, string(b.Status),
		b.ReminderSent, b.FollowUpSent, b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *SQLBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.getBooking(ctx, id, "")
}

func (r *SQLBookingRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.getBooking(ctx, id, r.dialect.lockClause())
}

func (r *SQLBookingRepository) getBooking(ctx context.Context, id int64, lock string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.get(ctx, &b, bookingSelect+" WHERE id = ?"+lock, id); err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

func (r *SQLBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	now := r.now()
	const query = `UPDATE bookings
		SET staff_id = ?, start_time = ?, end_time = ?, status = ?, reminder_sent = ?, follow_up_sent = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	n, err := r.exec(ctx, query,
		b.StaffID, dbTime(b.StartTime), dbTime(b.EndTime), string(b.Status), b.ReminderSent, b.FollowUpSent,
		now, b.ID, b.Version,
	)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", b.ID, err)
	}
	if n == 0 {
		return apperr.Newf(apperr.CodeConflict, "booking %d was modified concurrently", b.ID)
	}
	b.Version++
	b.UpdatedAt = now
	return nil
}

func (r *SQLBookingRepository) ListByWorkspace(ctx context.Context, workspaceID int64, limit int) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.selectAll(ctx, &bookings,
		bookingSelect+" WHERE workspace_id = ? ORDER BY start_time DESC, id DESC LIMIT ?", workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ListDueReminders returns active bookings starting in [from, until] that have not been reminded.
func (r *SQLBookingRepository) ListDueReminders(ctx context.Context, from, until time.Time, limit int) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.selectAll(ctx, &bookings,
		bookingSelect+` WHERE reminder_sent = ? AND status IN (?, ?) AND start_time >= ? AND start_time <= ?
		ORDER BY start_time, id LIMIT ?`,
		false, string(domain.BookingStatusPending), string(domain.BookingStatusConfirmed),
		dbTime(from), dbTime(until), limit)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return bookings, nil
}

// ListDueFollowUps returns completed bookings that ended before endedBefore without a follow-up.
func (r *SQLBookingRepository) ListDueFollowUps(ctx context.Context, endedBefore time.Time, limit int) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.selectAll(ctx, &bookings,
		bookingSelect+` WHERE follow_up_sent = ? AND status = ? AND end_time <= ?
		ORDER BY end_time, id LIMIT ?`,
		false, string(domain.BookingStatusCompleted), dbTime(endedBefore), limit)
	if err != nil {
		return nil, fmt.Errorf("list due follow-ups: %w", err)
	}
	return bookings, nil
}

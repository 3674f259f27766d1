package repository

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/Domenick1991/appointments/internal/domain"
)

// NotificationLogRepository stores delivery attempts of notifications.
type NotificationLogRepository interface {
	Insert(ctx context.Context, log *domain.NotificationLog) error
	ListForBooking(ctx context.Context, bookingID int64) ([]domain.NotificationLog, error)
	ListRecent(ctx context.Context, workspaceID int64, limit int) ([]domain.NotificationLog, error)
	// ListFailed returns failed deliveries that have been attempted fewer than maxAttempts times.
	ListFailed(ctx context.Context, maxAttempts, limit int) ([]domain.NotificationLog, error)
	// MarkRequeued flips a failed row to requeued; false means it was already picked up.
	MarkRequeued(ctx context.Context, id int64) (bool, error)
}

var notificationColumns = []any{
	"id", "workspace_id", "booking_id", "contact_id", "inventory_item_id", "event_id", "kind",
	"recipient", "status", "error_message", "attempts", "created_at", "sent_at",
}

type SQLNotificationLogRepository struct {
	sqlRepo
}

func (r *SQLNotificationLogRepository) Insert(ctx context.Context, log *domain.NotificationLog) error {
	log.CreatedAt = r.now()
	if log.SentAt != nil {
		sent := dbTime(*log.SentAt)
		log.SentAt = &sent
	}
	const query = `INSERT INTO communication_logs
		(workspace_id, booking_id, contact_id, inventory_item_id, event_id, kind, recipient, status,
		 error_message, attempts, created_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.get(ctx, &log.ID, query,
		log.WorkspaceID, log.BookingID, log.ContactID, log.InventoryItemID, log.EventID, string(log.Kind),
		log.Recipient, string(log.Status), log.ErrorMessage, log.Attempts, log.CreatedAt, log.SentAt)
	if err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}

func (r *SQLNotificationLogRepository) ListForBooking(ctx context.Context, bookingID int64) ([]domain.NotificationLog, error) {
	return r.list(ctx, r.selectLogs().Where(goqu.Ex{"booking_id": bookingID}))
}

func (r *SQLNotificationLogRepository) ListRecent(ctx context.Context, workspaceID int64, limit int) ([]domain.NotificationLog, error) {
	ds := r.selectLogs().Where(goqu.Ex{"workspace_id": workspaceID})
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return r.list(ctx, ds)
}

func (r *SQLNotificationLogRepository) ListFailed(ctx context.Context, maxAttempts, limit int) ([]domain.NotificationLog, error) {
	ds := r.dialect.builder().
		From("communication_logs").
		Prepared(true).
		Select(notificationColumns...).
		Where(
			goqu.C("status").Eq(string(domain.NotificationStatusFailed)),
			goqu.C("attempts").Lt(maxAttempts),
		).
		Order(goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return r.list(ctx, ds)
}

func (r *SQLNotificationLogRepository) MarkRequeued(ctx context.Context, id int64) (bool, error) {
	n, err := r.exec(ctx, "UPDATE communication_logs SET status = ? WHERE id = ? AND status = ?",
		string(domain.NotificationStatusRequeued), id, string(domain.NotificationStatusFailed))
	if err != nil {
		return false, fmt.Errorf("requeue notification log %d: %w", id, err)
	}
	return n == 1, nil
}

func (r *SQLNotificationLogRepository) selectLogs() *goqu.SelectDataset {
	return r.dialect.builder().
		From("communication_logs").
		Prepared(true).
		Select(notificationColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
}

func (r *SQLNotificationLogRepository) list(ctx context.Context, ds *goqu.SelectDataset) ([]domain.NotificationLog, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build notification log query: %w", err)
	}
	var logs []domain.NotificationLog
	if err := sqlx.SelectContext(ctx, r.q, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list notification logs: %w", err)
	}
	return logs, nil
}

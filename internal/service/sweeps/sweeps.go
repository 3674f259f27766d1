// Package sweeps holds the scheduled read-then-act jobs. Each row is handled in
// its own transaction behind an idempotent flag, so a crash mid-sweep only
// leaves unflagged rows for the next run.
package sweeps

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/notify"
	"github.com/Domenick1991/appointments/internal/repository"
	"github.com/Domenick1991/appointments/internal/service/audit"
)

const defaultBatch = 200

type Deps struct {
	Store      *repository.Store
	Trail      *audit.Trail
	Dispatcher notify.Dispatcher
	Logger     *logger.Logger
	Batch      int
}

func (d Deps) batch() int {
	if d.Batch <= 0 {
		return defaultBatch
	}
	return d.Batch
}

func (d Deps) logg() *logger.Logger {
	if d.Logger == nil {
		return logger.Nop()
	}
	return d.Logger
}

// ReminderJob flags bookings starting within Lead and sends one reminder each.
type ReminderJob struct {
	Deps
	Lead time.Duration
}

func (j *ReminderJob) Name() string { return "booking_reminders" }

func (j *ReminderJob) Run(ctx context.Context) error {
	now := j.Store.Now()
	due, err := j.Store.Repos().Bookings.ListDueReminders(ctx, now, now.Add(j.Lead), j.batch())
	if err != nil {
		return err
	}
	var errs error
	for _, candidate := range due {
		b, sent, err := j.flag(ctx, candidate.ID)
		if err != nil {
			j.logg().Error(j.logg().WithBookingID(ctx, candidate.ID), "reminder flag failed", err)
			errs = multierr.Append(errs, err)
			continue
		}
		if sent {
			j.Dispatcher.Dispatch(j.logg().WithBookingID(ctx, b.ID), notify.BookingEvent(domain.NotificationBookingReminder, b))
		}
	}
	return errs
}

func (j *ReminderJob) flag(ctx context.Context, bookingID int64) (*domain.Booking, bool, error) {
	var (
		booking *domain.Booking
		flagged bool
	)
	err := j.Store.InTx(ctx, func(repos repository.Repositories) error {
		b, err := repos.Bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.ReminderSent || !b.Status.IsActive() {
			return nil
		}
		b.ReminderSent = true
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return err
		}
		if _, err := j.Trail.Append(ctx, repos, audit.Entry{
			WorkspaceID: b.WorkspaceID,
			BookingID:   &b.ID,
			Action:      domain.ActionBookingReminderSent,
			Details:     domain.AuditDetails{"start_time": b.StartTime},
		}); err != nil {
			return err
		}
		booking, flagged = b, true
		return nil
	})
	return booking, flagged, err
}

// FollowUpJob thanks contacts of completed visits once Delay has passed since the end.
type FollowUpJob struct {
	Deps
	Delay time.Duration
}

func (j *FollowUpJob) Name() string { return "visit_follow_ups" }

func (j *FollowUpJob) Run(ctx context.Context) error {
	now := j.Store.Now()
	due, err := j.Store.Repos().Bookings.ListDueFollowUps(ctx, now.Add(-j.Delay), j.batch())
	if err != nil {
		return err
	}
	var errs error
	for _, candidate := range due {
		b, sent, err := j.flag(ctx, candidate.ID)
		if err != nil {
			j.logg().Error(j.logg().WithBookingID(ctx, candidate.ID), "follow-up flag failed", err)
			errs = multierr.Append(errs, err)
			continue
		}
		if sent {
			j.Dispatcher.Dispatch(j.logg().WithBookingID(ctx, b.ID), notify.BookingEvent(domain.NotificationVisitFollowUp, b))
		}
	}
	return errs
}

func (j *FollowUpJob) flag(ctx context.Context, bookingID int64) (*domain.Booking, bool, error) {
	var (
		booking *domain.Booking
		flagged bool
	)
	err := j.Store.InTx(ctx, func(repos repository.Repositories) error {
		b, err := repos.Bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.FollowUpSent || b.Status != domain.BookingStatusCompleted {
			return nil
		}
		b.FollowUpSent = true
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return err
		}
		if _, err := j.Trail.Append(ctx, repos, audit.Entry{
			WorkspaceID: b.WorkspaceID,
			BookingID:   &b.ID,
			Action:      domain.ActionBookingFollowUpSent,
			Details:     domain.AuditDetails{"end_time": b.EndTime},
		}); err != nil {
			return err
		}
		booking, flagged = b, true
		return nil
	})
	return booking, flagged, err
}

// LowStockJob alerts owners about items at or below threshold, at most once per Realert.
type LowStockJob struct {
	Deps
	Realert time.Duration
}

func (j *LowStockJob) Name() string { return "low_stock_alerts" }

func (j *LowStockJob) Run(ctx context.Context) error {
	now := j.Store.Now()
	cutoff := now.Add(-j.Realert)
	items, err := j.Store.Repos().Inventory.ListLowStock(ctx, cutoff, j.batch())
	if err != nil {
		return err
	}
	var errs error
	for _, item := range items {
		alerted := false
		err := j.Store.InTx(ctx, func(repos repository.Repositories) error {
			ok, err := repos.Inventory.MarkAlerted(ctx, item.ID, now, cutoff)
			if err != nil || !ok {
				return err
			}
			if _, err := j.Trail.Append(ctx, repos, audit.Entry{
				WorkspaceID: item.WorkspaceID,
				Action:      domain.ActionInventoryLowStock,
				Details: domain.AuditDetails{
					"inventory_item_id": item.ID,
					"item":              item.Name,
					"quantity":          item.Quantity,
					"threshold":         item.Threshold,
				},
			}); err != nil {
				return err
			}
			alerted = true
			return nil
		})
		if err != nil {
			j.logg().Error(j.logg().WithField(ctx, "inventory_item_id", item.ID), "low stock alert failed", err)
			errs = multierr.Append(errs, err)
			continue
		}
		if alerted {
			item := item
			j.Dispatcher.Dispatch(ctx, notify.LowStockEvent(&item))
		}
	}
	return errs
}

// ResendJob republishes failed deliveries that are below MaxAttempts.
type ResendJob struct {
	Deps
	MaxAttempts int
}

func (j *ResendJob) Name() string { return "notification_resend" }

func (j *ResendJob) Run(ctx context.Context) error {
	maxAttempts := j.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	failed, err := j.Store.Repos().Notifications.ListFailed(ctx, maxAttempts, j.batch())
	if err != nil {
		return err
	}
	var errs error
	for _, row := range failed {
		claimed := false
		err := j.Store.InTx(ctx, func(repos repository.Repositories) error {
			ok, err := repos.Notifications.MarkRequeued(ctx, row.ID)
			claimed = ok
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !claimed {
			continue
		}
		j.Dispatcher.Dispatch(ctx, domain.NotificationEvent{
			Kind:            row.Kind,
			WorkspaceID:     row.WorkspaceID,
			BookingID:       row.BookingID,
			ContactID:       row.ContactID,
			InventoryItemID: row.InventoryItemID,
			Attempt:         row.Attempts + 1,
		})
	}
	return errs
}

package audit

import (
	"context"
	"fmt"
	"sort"

	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/repository"
)

// Entry is what a caller records; id and timestamp are assigned on insert.
type Entry struct {
	WorkspaceID int64
	BookingID   *int64
	ActorID     *string
	Action      string
	Details     domain.AuditDetails
}

// Trail is the append-only record of state changes and the history views built on it.
type Trail struct {
	store *repository.Store
}

func NewTrail(store *repository.Store) *Trail {
	return &Trail{store: store}
}

// Append writes e through the caller's transaction so it commits or rolls back with the change it describes.
func (t *Trail) Append(ctx context.Context, repos repository.Repositories, e Entry) (*domain.AuditEntry, error) {
	entry := &domain.AuditEntry{
		WorkspaceID: e.WorkspaceID,
		BookingID:   e.BookingID,
		ActorID:     e.ActorID,
		Action:      e.Action,
		Details:     e.Details,
	}
	if err := repos.Audit.Insert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListForBooking returns the booking's entries newest first.
func (t *Trail) ListForBooking(ctx context.Context, bookingID int64) ([]domain.AuditEntry, error) {
	repos := t.store.Repos()
	if _, err := repos.Bookings.GetByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return repos.Audit.ListForBooking(ctx, bookingID)
}

// History merges the booking's audit entries with its notification log, newest first.
func (t *Trail) History(ctx context.Context, bookingID int64) ([]domain.TimelineEntry, error) {
	entries, err := t.ListForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	logs, err := t.store.Repos().Notifications.ListForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return merge(entries, logs, 0), nil
}

// RecentActivity is the workspace-wide timeline capped at limit rows.
func (t *Trail) RecentActivity(ctx context.Context, workspaceID int64, limit int) ([]domain.TimelineEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	repos := t.store.Repos()
	entries, err := repos.Audit.ListRecent(ctx, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	logs, err := repos.Notifications.ListRecent(ctx, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	return merge(entries, logs, limit), nil
}

func merge(entries []domain.AuditEntry, logs []domain.NotificationLog, limit int) []domain.TimelineEntry {
	timeline := make([]domain.TimelineEntry, 0, len(entries)+len(logs))
	for _, e := range entries {
		timeline = append(timeline, domain.TimelineEntry{
			ID:        fmt.Sprintf("audit-%d", e.ID),
			Type:      domain.TimelineTypeAudit,
			Action:    e.Action,
			ActorID:   e.ActorID,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	for _, l := range logs {
		details := domain.AuditDetails{
			"status":    string(l.Status),
			"recipient": l.Recipient,
			"attempts":  l.Attempts,
		}
		if l.ErrorMessage != nil {
			details["error"] = *l.ErrorMessage
		}
		timeline = append(timeline, domain.TimelineEntry{
			ID:        fmt.Sprintf("communication-%d", l.ID),
			Type:      domain.TimelineTypeCommunication,
			Action:    string(l.Kind),
			Details:   details,
			CreatedAt: l.CreatedAt,
		})
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].CreatedAt.After(timeline[j].CreatedAt)
	})
	if limit > 0 && len(timeline) > limit {
		timeline = timeline[:limit]
	}
	return timeline
}

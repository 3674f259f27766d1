package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/repository"
	"github.com/Domenick1991/appointments/internal/testutil"
)

var monday = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func newBooking(fx testutil.Fixture, svc *domain.Service, start time.Time, status domain.BookingStatus) *domain.Booking {
	return &domain.Booking{
		WorkspaceID: fx.Workspace.ID,
		ServiceID:   svc.ID,
		ContactID:   fx.Contact.ID,
		StartTime:   start,
		EndTime:     start.Add(svc.Duration()),
		Status:      status,
	}
}

func TestBookingRepository_CreateAndGet(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, nil, 0, nil)
	ctx := context.Background()
	repos := store.Repos()

	b := newBooking(fx, svc, monday, domain.BookingStatusPending)
	require.NoError(t, repos.Bookings.Create(ctx, b))
	assert.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := repos.Bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, got.Status)
	assert.True(t, got.StartTime.Equal(monday))
	assert.True(t, got.EndTime.Equal(monday.Add(time.Hour)))
	assert.False(t, got.ReminderSent)
	assert.Nil(t, got.StaffID)

	_, err = repos.Bookings.GetByID(ctx, b.ID+100)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestBookingRepository_UpdateChecksVersion(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, nil, 0, nil)
	ctx := context.Background()
	repos := store.Repos()

	b := newBooking(fx, svc, monday, domain.BookingStatusPending)
	require.NoError(t, repos.Bookings.Create(ctx, b))

	stale := *b
	b.Status = domain.BookingStatusConfirmed
	require.NoError(t, repos.Bookings.Update(ctx, b))
	assert.Equal(t, int64(2), b.Version)

	stale.Status = domain.BookingStatusCancelled
	err := repos.Bookings.Update(ctx, &stale)
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))

	got, err := repos.Bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
}

func TestBookingRepository_FindOverlap(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, nil, 0, nil)
	other := testutil.SeedService(t, store, fx.Workspace.ID, "Facial", 60, nil, 0, nil)
	ctx := context.Background()
	repos := store.Repos()

	existing := newBooking(fx, svc, monday, domain.BookingStatusConfirmed)
	require.NoError(t, repos.Bookings.Create(ctx, existing))
	cancelled := newBooking(fx, svc, monday.Add(2*time.Hour), domain.BookingStatusCancelled)
	require.NoError(t, repos.Bookings.Create(ctx, cancelled))

	tests := []struct {
		name    string
		query   repository.OverlapQuery
		wantHit bool
	}{
		{
			name:    "half hour later overlaps",
			query:   repository.OverlapQuery{ServiceID: svc.ID, Interval: domain.NewInterval(monday.Add(30*time.Minute), time.Hour), Statuses: domain.ActiveStatuses},
			wantHit: true,
		},
		{
			name:  "adjacent window does not overlap",
			query: repository.OverlapQuery{ServiceID: svc.ID, Interval: domain.NewInterval(monday.Add(time.Hour), time.Hour), Statuses: domain.ActiveStatuses},
		},
		{
			name:  "window ending at start does not overlap",
			query: repository.OverlapQuery{ServiceID: svc.ID, Interval: domain.NewInterval(monday.Add(-time.Hour), time.Hour), Statuses: domain.ActiveStatuses},
		},
		{
			name:  "other service is not in scope",
			query: repository.OverlapQuery{ServiceID: other.ID, Interval: domain.NewInterval(monday, time.Hour), Statuses: domain.ActiveStatuses},
		},
		{
			name:  "booking itself is excluded",
			query: repository.OverlapQuery{ServiceID: svc.ID, ExcludeBookingID: existing.ID, Interval: domain.NewInterval(monday, time.Hour), Statuses: domain.ActiveStatuses},
		},
		{
			name:  "cancelled bookings are ignored",
			query: repository.OverlapQuery{ServiceID: svc.ID, Interval: domain.NewInterval(monday.Add(2*time.Hour), time.Hour), Statuses: domain.OccupyingStatuses},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, err := repos.Bookings.FindOverlap(ctx, tt.query)
			require.NoError(t, err)
			if tt.wantHit {
				require.NotNil(t, hit)
				assert.Equal(t, existing.ID, hit.ID)
			} else {
				assert.Nil(t, hit)
			}
		})
	}
}

func TestBookingRepository_FindOverlapStaffScope(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	massage := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, nil, 0, nil)
	facial := testutil.SeedService(t, store, fx.Workspace.ID, "Facial", 60, nil, 0, nil)
	ctx := context.Background()
	repos := store.Repos()

	staff := int64(7)
	b := newBooking(fx, facial, monday, domain.BookingStatusConfirmed)
	b.StaffID = &staff
	require.NoError(t, repos.Bookings.Create(ctx, b))

	hit, err := repos.Bookings.FindOverlap(ctx, repository.OverlapQuery{
		WorkspaceID: fx.Workspace.ID,
		ServiceID:   massage.ID,
		StaffID:     &staff,
		Interval:    domain.NewInterval(monday, time.Hour),
		Statuses:    domain.ActiveStatuses,
	})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, b.ID, hit.ID)

	otherStaff := int64(8)
	hit, err = repos.Bookings.FindOverlap(ctx, repository.OverlapQuery{
		WorkspaceID: fx.Workspace.ID,
		ServiceID:   facial.ID,
		StaffID:     &otherStaff,
		Interval:    domain.NewInterval(monday, time.Hour),
		Statuses:    domain.ActiveStatuses,
	})
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestBookingRepository_DueSweeps(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, nil, 0, nil)
	ctx := context.Background()
	repos := store.Repos()

	soon := newBooking(fx, svc, monday, domain.BookingStatusConfirmed)
	later := newBooking(fx, svc, monday.Add(48*time.Hour), domain.BookingStatusConfirmed)
	cancelled := newBooking(fx, svc, monday.Add(2*time.Hour), domain.BookingStatusCancelled)
	done := newBooking(fx, svc, monday.Add(-5*time.Hour), domain.BookingStatusCompleted)
	for _, b := range []*domain.Booking{soon, later, cancelled, done} {
		require.NoError(t, repos.Bookings.Create(ctx, b))
	}

	now := monday.Add(-2 * time.Hour)
	due, err := repos.Bookings.ListDueReminders(ctx, now, now.Add(24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)

	followUps, err := repos.Bookings.ListDueFollowUps(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, followUps, 1)
	assert.Equal(t, done.ID, followUps[0].ID)
}

func TestInventoryRepository_DecrementNeverGoesNegative(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	item := testutil.SeedInventory(t, store, fx.Workspace.ID, "Oil", 2, 1)
	ctx := context.Background()
	repos := store.Repos()

	left, err := repos.Inventory.Decrement(ctx, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	_, err = repos.Inventory.Decrement(ctx, item.ID, 1)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientInventory))

	level, err := repos.Inventory.Increment(ctx, item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, level)

	_, err = repos.Inventory.Increment(ctx, item.ID+100, 1)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestInventoryRepository_LowStockAlerting(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	low := testutil.SeedInventory(t, store, fx.Workspace.ID, "Oil", 1, 1)
	testutil.SeedInventory(t, store, fx.Workspace.ID, "Towels", 10, 2)
	ctx := context.Background()
	repos := store.Repos()

	now := monday
	items, err := repos.Inventory.ListLowStock(ctx, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, low.ID, items[0].ID)

	marked, err := repos.Inventory.MarkAlerted(ctx, low.ID, now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repos.Inventory.MarkAlerted(ctx, low.ID, now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.False(t, marked)

	items, err = repos.Inventory.ListLowStock(ctx, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	later := now.Add(25 * time.Hour)
	items, err = repos.Inventory.ListLowStock(ctx, later.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestContactRepository_GetByEmailNormalizes(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	ctx := context.Background()
	repos := store.Repos()

	got, err := repos.Contacts.GetByEmail(ctx, fx.Workspace.ID, "  CLIENT@Example.com ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fx.Contact.ID, got.ID)

	missing, err := repos.Contacts.GetByEmail(ctx, fx.Workspace.ID, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	got.Phone = "+100200300"
	require.NoError(t, repos.Contacts.Update(ctx, got))
	reloaded, err := repos.Contacts.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "+100200300", reloaded.Phone)
}

func TestAuditRepository_ListNewestFirst(t *testing.T) {
	clock := testutil.NewClock(monday)
	store := testutil.NewStore(t, repository.WithClock(clock.Now))
	fx := testutil.SeedWorkspace(t, store, "UTC")
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, nil, 0, nil)
	ctx := context.Background()
	repos := store.Repos()

	b := newBooking(fx, svc, monday.Add(24*time.Hour), domain.BookingStatusPending)
	require.NoError(t, repos.Bookings.Create(ctx, b))

	actor := "staff-1"
	for _, action := range []string{domain.ActionBookingCreated, domain.ActionBookingConfirmed, domain.ActionBookingCancelled} {
		clock.Advance(time.Minute)
		require.NoError(t, repos.Audit.Insert(ctx, &domain.AuditEntry{
			WorkspaceID: fx.Workspace.ID,
			BookingID:   &b.ID,
			ActorID:     &actor,
			Action:      action,
			Details:     domain.AuditDetails{"reason": "test"},
		}))
	}
	require.NoError(t, repos.Audit.Insert(ctx, &domain.AuditEntry{
		WorkspaceID: fx.Workspace.ID,
		Action:      domain.ActionInventoryLowStock,
	}))

	entries, err := repos.Audit.ListForBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ActionBookingCancelled, entries[0].Action)
	assert.Equal(t, domain.ActionBookingCreated, entries[2].Action)
	assert.Equal(t, "test", entries[0].Details["reason"])
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, actor, *entries[0].ActorID)

	recent, err := repos.Audit.ListRecent(ctx, fx.Workspace.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, domain.ActionInventoryLowStock, recent[0].Action)
	assert.Nil(t, recent[0].BookingID)
}

func TestNotificationLogRepository_FailedAndRequeue(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	ctx := context.Background()
	repos := store.Repos()

	cause := "smtp timeout"
	failed := &domain.NotificationLog{
		WorkspaceID:  fx.Workspace.ID,
		ContactID:    &fx.Contact.ID,
		EventID:      "evt-1",
		Kind:         domain.NotificationBookingConfirmation,
		Recipient:    fx.Contact.Email,
		Status:       domain.NotificationStatusFailed,
		ErrorMessage: &cause,
		Attempts:     1,
	}
	exhausted := *failed
	exhausted.EventID = "evt-2"
	exhausted.Attempts = 3
	require.NoError(t, repos.Notifications.Insert(ctx, failed))
	require.NoError(t, repos.Notifications.Insert(ctx, &exhausted))

	rows, err := repos.Notifications.ListFailed(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "evt-1", rows[0].EventID)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, cause, *rows[0].ErrorMessage)

	ok, err := repos.Notifications.MarkRequeued(ctx, failed.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repos.Notifications.MarkRequeued(ctx, failed.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err = repos.Notifications.ListFailed(ctx, 3, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_InTxRollsBack(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	item := testutil.SeedInventory(t, store, fx.Workspace.ID, "Oil", 5, 1)
	ctx := context.Background()

	err := store.InTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Inventory.Decrement(ctx, item.ID, 2); err != nil {
			return err
		}
		return apperr.New(apperr.CodeConflict, "abort")
	})
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))

	got, err := store.Repos().Inventory.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
}

func TestParseDialect(t *testing.T) {
	d, err := repository.ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, repository.DialectPostgres, d)

	d, err = repository.ParseDialect("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, repository.DialectSQLite, d)

	_, err = repository.ParseDialect("mysql")
	assert.Error(t, err)
}

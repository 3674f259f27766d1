package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/service/availability"
	"github.com/Domenick1991/appointments/internal/testutil"
)

// 2030-03-04 is a Monday.
const monday = "2030-03-04"

func week(windows ...string) domain.WeeklyAvailability {
	return domain.ParseWeeklyAvailability(map[string][]string{"mon": windows, "sun": windows})
}

func TestEngine_AvailableSlotsSkipsBookedWindows(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, nil, 0, week("09:00-12:00"))
	engine := availability.NewEngine(store)
	ctx := context.Background()

	slots, err := engine.AvailableSlots(ctx, svc.ID, monday, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, slots)

	at := func(hour, minute int) time.Time { return time.Date(2030, time.March, 4, hour, minute, 0, 0, time.UTC) }
	repos := store.Repos()
	seed := func(start time.Time, status domain.BookingStatus) {
		require.NoError(t, repos.Bookings.Create(ctx, &domain.Booking{
			WorkspaceID: fx.Workspace.ID,
			ServiceID:   svc.ID,
			ContactID:   fx.Contact.ID,
			StartTime:   start,
			EndTime:     start.Add(time.Hour),
			Status:      status,
		}))
	}
	seed(at(10, 0), domain.BookingStatusConfirmed)
	seed(at(9, 0), domain.BookingStatusCancelled)
	seed(at(11, 30), domain.BookingStatusCompleted)

	slots, err = engine.AvailableSlots(ctx, svc.ID, monday, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, slots)
}

func TestEngine_NoSlotsWithoutStock(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	oil := testutil.SeedInventory(t, store, fx.Workspace.ID, "Oil", 0, 1)
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, oil, 1, nil)
	engine := availability.NewEngine(store)

	for _, day := range []string{monday, "2030-03-05", "2030-12-25"} {
		slots, err := engine.AvailableSlots(context.Background(), svc.ID, day, "")
		require.NoError(t, err)
		assert.Empty(t, slots, day)
	}
}

func TestEngine_StockBelowRequirement(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	oil := testutil.SeedInventory(t, store, fx.Workspace.ID, "Oil", 1, 0)
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, oil, 2, nil)

	slots, err := availability.NewEngine(store).AvailableSlots(context.Background(), svc.ID, monday, "")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestEngine_MissingItemMeansNoSlots(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, nil, 0, week("09:00-12:00"))
	gone := int64(9999)
	svc.InventoryItemID = &gone
	svc.InventoryQuantityRequired = 1

	day, err := availability.ParseDate(monday)
	require.NoError(t, err)
	slots, err := availability.NewEngine(store).ComputeSlots(context.Background(), store.Repos(), svc, day, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestEngine_WorkspaceTimezone(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "Europe/Berlin")
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 30, nil, 0, week("09:00-10:00"))
	engine := availability.NewEngine(store)

	slots, loc, err := engine.Slots(context.Background(), svc.ID, monday, "")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
	require.Len(t, slots, 2)
	assert.True(t, slots[0].Start.Equal(time.Date(2030, time.March, 4, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "09:00", slots[0].Label(loc))
	assert.Equal(t, "09:30", slots[1].Label(loc))

	labels, err := engine.AvailableSlots(context.Background(), svc.ID, monday, "UTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30"}, labels)
}

func TestEngine_InputErrors(t *testing.T) {
	store := testutil.NewStore(t)
	fx := testutil.SeedWorkspace(t, store, "UTC")
	svc := testutil.SeedService(t, store, fx.Workspace.ID, "Massage", 60, nil, 0, nil)
	engine := availability.NewEngine(store)
	ctx := context.Background()

	_, err := engine.AvailableSlots(ctx, svc.ID, "04/03/2030", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = engine.AvailableSlots(ctx, svc.ID, monday, "Mars/Olympus")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = engine.AvailableSlots(ctx, svc.ID+10, monday, "")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestCandidates(t *testing.T) {
	day, err := availability.ParseDate(monday)
	require.NoError(t, err)

	tests := []struct {
		name     string
		minutes  int
		windows  domain.WeeklyAvailability
		expected []string
	}{
		{name: "steps by duration", minutes: 45, windows: week("09:00-11:00"), expected: []string{"09:00", "09:45"}},
		{name: "partial slot dropped", minutes: 60, windows: week("09:00-10:30"), expected: []string{"09:00"}},
		{name: "windows merged in order", minutes: 60, windows: week("14:00-15:00", "09:00-10:00"), expected: []string{"09:00", "14:00"}},
		{name: "duplicates collapse", minutes: 60, windows: week("09:00-10:00", "09:00-10:00"), expected: []string{"09:00"}},
		{name: "overlapping windows", minutes: 60, windows: week("09:00-10:00", "09:30-11:00"), expected: []string{"09:00", "09:30"}},
		{name: "malformed windows ignored", minutes: 60, windows: week("25:00-26:00", "10:00-09:00", "bogus"), expected: nil},
		{name: "no windows", minutes: 60, windows: domain.WeeklyAvailability{}, expected: nil},
		{name: "zero duration", minutes: 0, windows: week("09:00-10:00"), expected: nil},
		{name: "other weekday only", minutes: 60, windows: domain.ParseWeeklyAvailability(map[string][]string{"tue": {"09:00-10:00"}}), expected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &domain.Service{DurationMinutes: tt.minutes, Availability: tt.windows}
			var labels []string
			for _, s := range availability.Candidates(svc, day, time.UTC) {
				labels = append(labels, s.Label(time.UTC))
			}
			assert.Equal(t, tt.expected, labels)
		})
	}
}

func TestCandidates_SpringForward(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// clocks jump from 02:00 to 03:00 on 2030-03-10
	day, err := availability.ParseDate("2030-03-10")
	require.NoError(t, err)
	svc := &domain.Service{DurationMinutes: 60, Availability: week("01:00-04:00")}

	slots := availability.Candidates(svc, day, loc)
	require.Len(t, slots, 2)
	assert.Equal(t, "01:00", slots[0].Label(loc))
	assert.Equal(t, "03:00", slots[1].Label(loc))
	for _, s := range slots {
		assert.Equal(t, time.Hour, s.End.Sub(s.Start))
	}
}

func TestParseDate(t *testing.T) {
	d, err := availability.ParseDate(" 2030-03-04 ")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, monday, d.String())

	_, err = availability.ParseDate("2030-02-30")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

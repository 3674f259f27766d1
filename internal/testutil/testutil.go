// Package testutil opens migrated SQLite stores and seeds fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/repository"
)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewStore opens a file-backed SQLite database under t.TempDir with all migrations applied.
func NewStore(t testing.TB, opts ...repository.StoreOption) *repository.Store {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + filepath.Join(t.TempDir(), "appointments.db")
	store, err := repository.Open(ctx, repository.DialectSQLite, dsn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))
	return store
}

// Fixture is a workspace with one contact, ready for bookings.
type Fixture struct {
	Workspace *domain.Workspace
	Contact   *domain.Contact
}

var workspaceSeq atomic.Int64

func SeedWorkspace(t testing.TB, store *repository.Store, timezone string) Fixture {
	t.Helper()
	ctx := context.Background()
	repos := store.Repos()

	ws := &domain.Workspace{Name: "Studio", Slug: fmt.Sprintf("studio-%d", workspaceSeq.Add(1)), Timezone: timezone}
	require.NoError(t, repos.Workspaces.Create(ctx, ws))

	contact := &domain.Contact{WorkspaceID: ws.ID, Email: "client@example.com", FullName: "Test Client", Source: "manual"}
	require.NoError(t, repos.Contacts.Create(ctx, contact))

	return Fixture{Workspace: ws, Contact: contact}
}

func SeedInventory(t testing.TB, store *repository.Store, workspaceID int64, name string, quantity, threshold int) *domain.InventoryItem {
	t.Helper()
	item := &domain.InventoryItem{WorkspaceID: workspaceID, Name: name, Quantity: quantity, Threshold: threshold}
	require.NoError(t, store.Repos().Inventory.Create(context.Background(), item))
	return item
}

// SeedService creates a service open 09:00-17:00 every day unless availability is given.
func SeedService(t testing.TB, store *repository.Store, workspaceID int64, name string, minutes int, item *domain.InventoryItem, perBooking int, availability domain.WeeklyAvailability) *domain.Service {
	t.Helper()
	if availability == nil {
		raw := map[string][]string{}
		for _, day := range []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"} {
			raw[day] = []string{"09:00-17:00"}
		}
		availability = domain.ParseWeeklyAvailability(raw)
	}
	svc := &domain.Service{
		WorkspaceID:     workspaceID,
		Name:            name,
		DurationMinutes: minutes,
		Availability:    availability,
	}
	if item != nil {
		svc.InventoryItemID = &item.ID
		svc.InventoryQuantityRequired = perBooking
	}
	require.NoError(t, store.Repos().Services.Create(context.Background(), svc))
	return svc
}

package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Domenick1991/appointments/internal/apperr"
	"github.com/Domenick1991/appointments/internal/domain"
	"github.com/Domenick1991/appointments/internal/repository"
)

const dateLayout = "2006-01-02"

// Date is a calendar day without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, apperr.Newf(apperr.CodeValidation, "date %q: want YYYY-MM-DD", value)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Slot is one bookable [Start, End) window; Start and End are UTC instants.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Label formats the slot start as local "HH:MM".
func (s Slot) Label(loc *time.Location) string {
	return s.Start.In(loc).Format("15:04")
}

// Engine derives open slots. It reads current state on every call and caches nothing.
type Engine struct {
	store *repository.Store
}

func NewEngine(store *repository.Store) *Engine {
	return &Engine{store: store}
}

// ComputeSlots returns the free slots of svc on date, with windows read as wall-clock
// times in loc. Slots are stepped on absolute time so DST shifts keep real durations.
// A linked item that is short or gone yields no slots.
func (e *Engine) ComputeSlots(ctx context.Context, repos repository.Repositories, svc *domain.Service, date Date, loc *time.Location) ([]Slot, error) {
	if svc.RequiresInventory() {
		item, err := repos.Inventory.GetByID(ctx, *svc.InventoryItemID)
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if item.Quantity < svc.InventoryQuantityRequired {
			return nil, nil
		}
	}

	candidates := Candidates(svc, date, loc)
	if len(candidates) == 0 {
		return nil, nil
	}

	span := domain.Interval{Start: candidates[0].Start, End: candidates[0].End}
	for _, c := range candidates[1:] {
		if c.End.After(span.End) {
			span.End = c.End
		}
	}
	existing, err := repos.Bookings.ListOverlapping(ctx, repository.OverlapQuery{
		ServiceID: svc.ID,
		Interval:  span,
		Statuses:  domain.OccupyingStatuses,
	})
	if err != nil {
		return nil, err
	}

	free := make([]Slot, 0, len(candidates))
	for _, c := range candidates {
		slot := domain.Interval{Start: c.Start, End: c.End}
		taken := false
		for _, b := range existing {
			if slot.Overlaps(b.Interval()) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, c)
		}
	}
	return free, nil
}

// Candidates walks every configured window of the weekday in duration-sized steps,
// keeping a slot only while it ends within its window. Results are sorted and unique.
func Candidates(svc *domain.Service, date Date, loc *time.Location) []Slot {
	duration := svc.Duration()
	if duration <= 0 {
		return nil
	}
	var slots []Slot
	for _, window := range svc.Availability.Windows(date.Weekday()) {
		start := window.Start.On(date.Year, date.Month, date.Day, loc)
		end := window.End.On(date.Year, date.Month, date.Day, loc)
		for slot := start; !slot.Add(duration).After(end); slot = slot.Add(duration) {
			slots = append(slots, Slot{Start: slot.UTC(), End: slot.Add(duration).UTC()})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })

	unique := slots[:0]
	for i, s := range slots {
		if i > 0 && s.Start.Equal(slots[i-1].Start) {
			continue
		}
		unique = append(unique, s)
	}
	return unique
}

// AvailableSlots answers get_available_slots: free local "HH:MM" start times of a
// service on date. An empty timezone uses the workspace's own.
func (e *Engine) AvailableSlots(ctx context.Context, serviceID int64, date, timezone string) ([]string, error) {
	slots, loc, err := e.Slots(ctx, serviceID, date, timezone)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(slots))
	for i, s := range slots {
		labels[i] = s.Label(loc)
	}
	return labels, nil
}

// Slots is AvailableSlots with full instants and the resolved location.
func (e *Engine) Slots(ctx context.Context, serviceID int64, date, timezone string) ([]Slot, *time.Location, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, nil, err
	}
	repos := e.store.Repos()
	svc, err := repos.Services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, nil, err
	}
	loc, err := e.location(ctx, repos, svc.WorkspaceID, timezone)
	if err != nil {
		return nil, nil, err
	}
	slots, err := e.ComputeSlots(ctx, repos, svc, day, loc)
	if err != nil {
		return nil, nil, err
	}
	return slots, loc, nil
}

func (e *Engine) location(ctx context.Context, repos repository.Repositories, workspaceID int64, timezone string) (*time.Location, error) {
	if timezone == "" {
		ws, err := repos.Workspaces.GetByID(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		timezone = ws.Timezone
	}
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, apperr.Newf(apperr.CodeValidation, "unknown timezone %q", timezone)
	}
	return loc, nil
}

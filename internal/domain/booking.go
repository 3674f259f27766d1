package domain

import (
	"time"

	"github.com/Domenick1991/appointments/internal/apperr"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusNoShow    BookingStatus = "NO_SHOW"
)

// ActiveStatuses occupy their time window.
var ActiveStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

// OccupyingStatuses is every status except CANCELLED. New bookings and offered
// slots must not collide with any of them.
var OccupyingStatuses = []BookingStatus{
	BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusNoShow,
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether no reschedule or cancel may follow.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusNoShow
}

func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	ID           int64         `db:"id" json:"id"`
	WorkspaceID  int64         `db:"workspace_id" json:"workspace_id"`
	ServiceID    int64         `db:"service_id" json:"service_id"`
	ContactID    int64         `db:"contact_id" json:"contact_id"`
	StaffID      *int64        `db:"staff_id" json:"staff_id,omitempty"`
	StartTime    time.Time     `db:"start_time" json:"start_time"`
	EndTime      time.Time     `db:"end_time" json:"end_time"`
	Status       BookingStatus `db:"status" json:"status"`
	ReminderSent bool          `db:"reminder_sent" json:"reminder_sent"`
	FollowUpSent bool          `db:"follow_up_sent" json:"follow_up_sent"`
	Version      int64         `db:"version" json:"version"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// Interval returns the half-open [start, end) window the booking occupies.
func (b Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds [start, start+d) in UTC.
func NewInterval(start time.Time, d time.Duration) Interval {
	start = start.UTC()
	return Interval{Start: start, End: start.Add(d)}
}

// Overlaps applies the half-open test: a.start < b.end AND a.end > b.start.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Transition names a lifecycle move of a booking.
type Transition string

const (
	TransitionConfirm    Transition = "confirm"
	TransitionCancel     Transition = "cancel"
	TransitionRestore    Transition = "restore"
	TransitionReschedule Transition = "reschedule"
	TransitionComplete   Transition = "complete"
	TransitionNoShow     Transition = "no_show"
)

type transitionRule struct {
	from []BookingStatus
	to   BookingStatus
}

var transitionTable = map[Transition]transitionRule{
	TransitionConfirm:    {from: []BookingStatus{BookingStatusPending}, to: BookingStatusConfirmed},
	TransitionCancel:     {from: []BookingStatus{BookingStatusPending, BookingStatusConfirmed}, to: BookingStatusCancelled},
	TransitionRestore:    {from: []BookingStatus{BookingStatusCancelled}, to: BookingStatusConfirmed},
	TransitionReschedule: {from: []BookingStatus{BookingStatusPending, BookingStatusConfirmed}, to: BookingStatusConfirmed},
	TransitionComplete:   {from: []BookingStatus{BookingStatusPending, BookingStatusConfirmed}, to: BookingStatusCompleted},
	TransitionNoShow:     {from: []BookingStatus{BookingStatusPending, BookingStatusConfirmed}, to: BookingStatusNoShow},
}

// Apply validates that t may leave status from and returns the resulting status.
func (t Transition) Apply(from BookingStatus) (BookingStatus, error) {
	rule, ok := transitionTable[t]
	if !ok {
		return from, apperr.Newf(apperr.CodeValidation, "unknown transition %q", t)
	}
	if from.IsTerminal() {
		return from, apperr.Newf(apperr.CodeInvalidState, "booking is %s and can no longer %s", from, t).
			WithDetails(map[string]any{"status": from, "transition": t, "terminal": true})
	}
	for _, allowed := range rule.from {
		if allowed == from {
			return rule.to, nil
		}
	}
	return from, apperr.Newf(apperr.CodeInvalidState, "cannot %s booking with status %s", t, from).
		WithDetails(map[string]any{"status": from, "transition": t})
}

// Target returns the status a transition leads to.
func (t Transition) Target() BookingStatus {
	return transitionTable[t].to
}

// TransitionTo maps a direct status overwrite onto the transition that performs it.
func TransitionTo(status BookingStatus) (Transition, bool) {
	switch status {
	case BookingStatusConfirmed:
		return TransitionConfirm, true
	case BookingStatusCancelled:
		return TransitionCancel, true
	case BookingStatusCompleted:
		return TransitionComplete, true
	case BookingStatusNoShow:
		return TransitionNoShow, true
	}
	return "", false
}

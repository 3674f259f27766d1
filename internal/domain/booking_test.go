package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/appointments/internal/apperr"
)

func TestTransitionApply(t *testing.T) {
	tests := []struct {
		transition Transition
		from       BookingStatus
		want       BookingStatus
		code       apperr.Code
	}{
		{TransitionConfirm, BookingStatusPending, BookingStatusConfirmed, ""},
		{TransitionConfirm, BookingStatusCancelled, BookingStatusCancelled, apperr.CodeInvalidState},
		{TransitionCancel, BookingStatusPending, BookingStatusCancelled, ""},
		{TransitionCancel, BookingStatusConfirmed, BookingStatusCancelled, ""},
		{TransitionCancel, BookingStatusCompleted, BookingStatusCompleted, apperr.CodeInvalidState},
		{TransitionRestore, BookingStatusCancelled, BookingStatusConfirmed, ""},
		{TransitionRestore, BookingStatusPending, BookingStatusPending, apperr.CodeInvalidState},
		{TransitionReschedule, BookingStatusPending, BookingStatusConfirmed, ""},
		{TransitionReschedule, BookingStatusNoShow, BookingStatusNoShow, apperr.CodeInvalidState},
		{TransitionReschedule, BookingStatusCompleted, BookingStatusCompleted, apperr.CodeInvalidState},
		{TransitionComplete, BookingStatusConfirmed, BookingStatusCompleted, ""},
		{TransitionNoShow, BookingStatusPending, BookingStatusNoShow, ""},
		{Transition("teleport"), BookingStatusPending, BookingStatusPending, apperr.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(string(tt.transition)+"_"+string(tt.from), func(t *testing.T) {
			got, err := tt.transition.Apply(tt.from)
			assert.Equal(t, tt.want, got)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for _, status := range []BookingStatus{BookingStatusCompleted, BookingStatusNoShow} {
		assert.True(t, status.IsTerminal())
		for transition := range transitionTable {
			_, err := transition.Apply(status)
			require.Error(t, err, "%s from %s", transition, status)
			details, ok := apperr.As(err).Details().(map[string]any)
			require.True(t, ok)
			assert.Equal(t, true, details["terminal"], "%s from %s", transition, status)
		}
	}
}

func TestTransitionTo(t *testing.T) {
	tr, ok := TransitionTo(BookingStatusCompleted)
	require.True(t, ok)
	assert.Equal(t, BookingStatusCompleted, tr.Target())

	_, ok = TransitionTo(BookingStatusPending)
	assert.False(t, ok)
}

func TestIntervalOverlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2030, time.March, 4, h, m, 0, 0, time.UTC) }
	base := Interval{Start: at(10, 0), End: at(11, 0)}

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"same", base, true},
		{"starts inside", Interval{at(10, 30), at(11, 30)}, true},
		{"ends inside", Interval{at(9, 30), at(10, 30)}, true},
		{"contains", Interval{at(9, 0), at(12, 0)}, true},
		{"touches end", Interval{at(11, 0), at(12, 0)}, false},
		{"touches start", Interval{at(9, 0), at(10, 0)}, false},
		{"disjoint", Interval{at(13, 0), at(14, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestNewIntervalIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	i := NewInterval(time.Date(2030, time.March, 4, 12, 0, 0, 0, loc), 45*time.Minute)
	assert.Equal(t, time.UTC, i.Start.Location())
	assert.Equal(t, 10, i.Start.Hour())
	assert.Equal(t, 45*time.Minute, i.End.Sub(i.Start))
}

func TestStatusSets(t *testing.T) {
	assert.NotContains(t, OccupyingStatuses, BookingStatusCancelled)
	assert.Len(t, OccupyingStatuses, 4)
	for _, s := range ActiveStatuses {
		assert.True(t, s.IsActive())
	}
	assert.False(t, BookingStatus("LOST").Valid())
}

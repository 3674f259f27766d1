package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRange(t *testing.T) {
	r, err := ParseTimeRange(" 09:30 - 17:00 ")
	require.NoError(t, err)
	assert.Equal(t, ClockTime(9*60+30), r.Start)
	assert.Equal(t, "09:30-17:00", r.String())

	r, err = ParseTimeRange("9:00-17:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00-17:00", r.String())

	for _, bad := range []string{"", "09:00", "9:0-10:00", "+9:00-10:00", "109:00-11:00", "10:00-09:00", "10:00-10:00", "24:00-25:00", "aa:bb-cc:dd"} {
		_, err := ParseTimeRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseClock(t *testing.T) {
	for in, want := range map[string]ClockTime{
		"0:00":  0,
		"9:05":  9*60 + 5,
		"09:05": 9*60 + 5,
		"23:59": 23*60 + 59,
	} {
		got, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "9", "9:5", ":30", "-1:00", "24:00", "12:60", "1 :00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWeeklyAvailability(t *testing.T) {
	w := ParseWeeklyAvailability(map[string][]string{
		"MON":     {"13:00-17:00", "09:00-12:00"},
		"wed":     {"9:00-17:00", "09:00-12:00"},
		"tue":     {"broken", "10:00-11:00"},
		"holiday": {"09:00-10:00"},
	})
	require.Len(t, w.Windows(time.Monday), 2)
	assert.Equal(t, "09:00-12:00", w.Windows(time.Monday)[0].String())
	var wed []string
	for _, r := range w.Windows(time.Wednesday) {
		wed = append(wed, r.String())
	}
	assert.ElementsMatch(t, []string{"09:00-17:00", "09:00-12:00"}, wed)
	assert.Len(t, w.Windows(time.Tuesday), 1)
	assert.Empty(t, w.Windows(time.Sunday))

	var empty WeeklyAvailability
	assert.Empty(t, empty.Windows(time.Monday))
}

func TestWeeklyAvailabilityJSON(t *testing.T) {
	var w WeeklyAvailability
	require.NoError(t, w.UnmarshalJSON([]byte(`{"fri": ["10:00-12:00", 5, "14:00-15:00"], "sat": []}`)))
	assert.Len(t, w.Windows(time.Friday), 2)

	data, err := w.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"fri": ["10:00-12:00", "14:00-15:00"]}`, string(data))

	assert.Error(t, w.UnmarshalJSON([]byte(`["mon"]`)))
}

func TestWeeklyAvailabilityScan(t *testing.T) {
	var w WeeklyAvailability
	require.NoError(t, w.Scan(`{"wed": ["08:00-09:00"]}`))
	assert.Len(t, w.Windows(time.Wednesday), 1)

	require.NoError(t, w.Scan(nil))
	assert.Empty(t, w)
	require.NoError(t, w.Scan([]byte{}))
	assert.Empty(t, w)
	assert.Error(t, w.Scan(42))
}

func TestClockTimeOn(t *testing.T) {
	c, err := ParseClock("07:45")
	require.NoError(t, err)
	got := c.On(2030, time.March, 4, time.UTC)
	assert.Equal(t, time.Date(2030, time.March, 4, 7, 45, 0, 0, time.UTC), got)
	assert.Equal(t, "mon", WeekdayKey(time.Monday))
}

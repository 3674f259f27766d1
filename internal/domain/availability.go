package domain

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var weekdayKeys = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// WeekdayKey returns the three-letter key used in stored availability maps.
func WeekdayKey(day time.Weekday) string {
	return strings.ToLower(day.String()[:3])
}

// ClockTime is a wall-clock time of day in minutes after midnight.
type ClockTime int

// ParseClock accepts H:MM or HH:MM.
func ParseClock(value string) (ClockTime, error) {
	h, m, ok := strings.Cut(value, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 || !isDigits(h) || !isDigits(m) {
		return 0, fmt.Errorf("clock %q: want HH:MM", value)
	}
	hour, _ := strconv.Atoi(h)
	minute, _ := strconv.Atoi(m)
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("clock %q: out of range", value)
	}
	return ClockTime(hour*60 + minute), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On places the clock time on the given calendar date in loc.
func (c ClockTime) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, c.Hour(), c.Minute(), 0, 0, loc)
}

// TimeRange is one "HH:MM-HH:MM" opening window of a weekday.
type TimeRange struct {
	Start ClockTime
	End   ClockTime
}

func ParseTimeRange(value string) (TimeRange, error) {
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return TimeRange{}, fmt.Errorf("window %q: want HH:MM-HH:MM", value)
	}
	start, err := ParseClock(strings.TrimSpace(startStr))
	if err != nil {
		return TimeRange{}, fmt.Errorf("window %q: %w", value, err)
	}
	end, err := ParseClock(strings.TrimSpace(endStr))
	if err != nil {
		return TimeRange{}, fmt.Errorf("window %q: %w", value, err)
	}
	if end <= start {
		return TimeRange{}, fmt.Errorf("window %q: end must follow start", value)
	}
	return TimeRange{Start: start, End: end}, nil
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// WeeklyAvailability maps a weekday to its ordered opening windows.
type WeeklyAvailability map[time.Weekday][]TimeRange

// ParseWeeklyAvailability builds availability from the stored {"mon": ["09:00-17:00"]} shape.
// Unknown weekdays and malformed windows are skipped.
func ParseWeeklyAvailability(raw map[string][]string) WeeklyAvailability {
	out := make(WeeklyAvailability)
	for key, windows := range raw {
		day, ok := weekdayKeys[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		for _, window := range windows {
			tr, err := ParseTimeRange(window)
			if err != nil {
				continue
			}
			out[day] = append(out[day], tr)
		}
	}
	for day := range out {
		sort.Slice(out[day], func(i, j int) bool { return out[day][i].Start < out[day][j].Start })
	}
	return out
}

func (w WeeklyAvailability) Windows(day time.Weekday) []TimeRange {
	if w == nil {
		return nil
	}
	return w[day]
}

func (w WeeklyAvailability) raw() map[string][]string {
	raw := make(map[string][]string, len(w))
	for day, windows := range w {
		key := WeekdayKey(day)
		for _, window := range windows {
			raw[key] = append(raw[key], window.String())
		}
	}
	return raw
}

func (w WeeklyAvailability) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.raw())
}

func (w *WeeklyAvailability) UnmarshalJSON(data []byte) error {
	var loose map[string][]any
	if err := json.Unmarshal(data, &loose); err != nil {
		return fmt.Errorf("availability: %w", err)
	}
	raw := make(map[string][]string, len(loose))
	for key, values := range loose {
		for _, value := range values {
			if s, ok := value.(string); ok {
				raw[key] = append(raw[key], s)
			}
		}
	}
	*w = ParseWeeklyAvailability(raw)
	return nil
}

// Value stores availability as a JSON document.
func (w WeeklyAvailability) Value() (driver.Value, error) {
	data, err := w.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (w *WeeklyAvailability) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*w = WeeklyAvailability{}
		return nil
	case []byte:
		if len(v) == 0 {
			*w = WeeklyAvailability{}
			return nil
		}
		return w.UnmarshalJSON(v)
	case string:
		if v == "" {
			*w = WeeklyAvailability{}
			return nil
		}
		return w.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("availability: unsupported source %T", src)
	}
}

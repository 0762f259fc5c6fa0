package routine

import (
	"fmt"
	"time"
)

// =============================================================================
// TEMPORAL UTILITIES - Pure date arithmetic used by the materializer
// =============================================================================

// TimeOfDayLayout is the wall-clock format carried by Routine.FromTime and
// Routine.ToTime (24-hour, e.g. "06:30").
const TimeOfDayLayout = "15:04"

// DateLayout is the calendar-date format used at API and storage boundaries.
const DateLayout = "2006-01-02"

// ParseTimeOfDay parses an "HH:mm" string into hour and minute components.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse(TimeOfDayLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q (want HH:mm): %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// CombineDateAndTime returns a timestamp on date's calendar day at the given
// "HH:mm" wall-clock time, seconds zeroed. The time string is authoritative:
// any time component already present on date is discarded.
func CombineDateAndTime(date time.Time, timeOfDay string) (time.Time, error) {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

// DateOnly truncates a timestamp to midnight on its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// =============================================================================
// INTERVAL - Inclusive-inclusive membership, used throughout expansion
// =============================================================================

type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within [Start, End] inclusive.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && !t.After(iv.End)
}

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

// EndOfYear returns Dec 31 (midnight) of t's year. Open-ended recurrences
// are expanded through this finite horizon.
func EndOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns the first day (midnight) of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// ClampDayOfMonth returns the date for day within yearMonth's month. If day
// exceeds the number of days in that month, the month's last day is returned
// instead: short months absorb overflow day numbers onto their final day.
func ClampDayOfMonth(yearMonth time.Time, day int) time.Time {
	last := DaysInMonth(yearMonth)
	if day > last {
		day = last
	}
	return time.Date(yearMonth.Year(), yearMonth.Month(), day, 0, 0, 0, 0, yearMonth.Location())
}

// PreviousSunday returns the Sunday on or before t. Weekly expansion anchors
// each week here so partial first weeks expand correctly.
func PreviousSunday(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}

// weekdayOffsets maps scheduled-day labels to offsets from the week's
// Sunday anchor. Thursday is abbreviated "Thur" by the authoring surface.
// Unknown labels have no offset and produce no instance.
var weekdayOffsets = map[string]int{
	"Sun":  0,
	"Mon":  1,
	"Tue":  2,
	"Wed":  3,
	"Thur": 4,
	"Fri":  5,
	"Sat":  6,
}

// WeekdayOffset returns the Sunday-relative offset 0-6 for a weekday label.
func WeekdayOffset(label string) (int, bool) {
	off, ok := weekdayOffsets[label]
	return off, ok
}

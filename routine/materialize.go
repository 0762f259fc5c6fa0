/*
materialize.go - Recurrence expansion

PURPOSE:
  Given one Routine (with its ScheduledDays), produce the ordered sequence
  of {start, end} instances implied by its recurrence. Pure: no knowledge
  of persistence, no mutation of state.

DISPATCH:
  Repeat=false        One instance spanning StartDate..EndDate
  Daily               One instance per calendar day in range
  Weekly              Week-by-week walk anchored on Sundays, offset per
                      active weekday selector, out-of-range candidates
                      filtered afterwards
  Monthly             Per month in range, one candidate per active
                      day-of-month selector, overflow clamped to month end
  Yearly              Single MM/dd selector, one instance within the start
                      year if it lands inside the range

HORIZON:
  Open-ended recurrences (RepeatEnds=false) expand only through Dec 31 of
  StartDate's year. Re-running generation each year is the caller's
  responsibility.

SEE ALSO:
  - time.go: CombineDateAndTime, ClampDayOfMonth, PreviousSunday
  - regenerate.go: Persists the instances this file produces
*/
package routine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Materialize expands a routine into its ordered instance list.
// It never writes; the result is consumed by the Regeneration Controller.
func Materialize(r *Routine) ([]Instance, error) {
	if !r.Repeat {
		return materializeOneTime(r)
	}
	switch r.Cadence {
	case CadenceDaily:
		return materializeDaily(r)
	case CadenceWeekly:
		return materializeWeekly(r)
	case CadenceMonthly:
		return materializeMonthly(r)
	case CadenceYearly:
		return materializeYearly(r)
	default:
		return nil, &UnsupportedCadenceError{Cadence: r.Cadence}
	}
}

// resolveEndDate applies the open-ended horizon policy: RepeatEnds=false
// bounds expansion to the end of StartDate's calendar year; otherwise the
// explicit end date is required.
func resolveEndDate(r *Routine) (time.Time, error) {
	if !r.RepeatEnds {
		return EndOfYear(r.StartDate), nil
	}
	if !r.HasEndDate() {
		return time.Time{}, &MissingEndDateError{RoutineID: r.ID}
	}
	return DateOnly(r.EndDate), nil
}

// =============================================================================
// ONE-TIME
// =============================================================================

func materializeOneTime(r *Routine) ([]Instance, error) {
	if !r.HasEndDate() {
		return nil, &MissingEndDateError{RoutineID: r.ID}
	}
	start, err := CombineDateAndTime(r.StartDate, r.FromTime)
	if err != nil {
		return nil, fmt.Errorf("routine %d: %w", r.ID, err)
	}
	end, err := CombineDateAndTime(r.EndDate, r.ToTime)
	if err != nil {
		return nil, fmt.Errorf("routine %d: %w", r.ID, err)
	}
	return []Instance{{Start: start, End: end}}, nil
}

// =============================================================================
// DAILY
// =============================================================================

func materializeDaily(r *Routine) ([]Instance, error) {
	endDate, err := resolveEndDate(r)
	if err != nil {
		return nil, err
	}

	var instances []Instance
	for day := DateOnly(r.StartDate); !day.After(endDate); day = day.AddDate(0, 0, 1) {
		inst, err := instanceOn(r, day)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// =============================================================================
// WEEKLY
// =============================================================================

func materializeWeekly(r *Routine) ([]Instance, error) {
	endDate, err := resolveEndDate(r)
	if err != nil {
		return nil, err
	}
	startDate := DateOnly(r.StartDate)
	window := Interval{Start: startDate, End: endDate}

	// Anchor on the Sunday of the start week so partial first weeks expand;
	// candidates before startDate are filtered out below.
	var candidates []time.Time
	for anchor := PreviousSunday(startDate); !anchor.After(endDate); anchor = anchor.AddDate(0, 0, 7) {
		for _, day := range r.ActiveDays() {
			offset, ok := WeekdayOffset(day.Label)
			if !ok {
				continue // unknown label: no match, no instance
			}
			candidates = append(candidates, anchor.AddDate(0, 0, offset))
		}
	}

	var instances []Instance
	for _, date := range candidates {
		if !window.Contains(date) {
			continue
		}
		inst, err := instanceOn(r, date)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// =============================================================================
// MONTHLY
// =============================================================================

func materializeMonthly(r *Routine) ([]Instance, error) {
	endDate, err := resolveEndDate(r)
	if err != nil {
		return nil, err
	}
	startDate := DateOnly(r.StartDate)
	window := Interval{Start: startDate, End: endDate}

	// One candidate per active day-of-month selector per overlapping month.
	// Multiple high selectors clamping onto the same month end yield
	// duplicate dates; that is accepted, not deduplicated.
	var instances []Instance
	for month := StartOfMonth(startDate); !month.After(endDate); month = month.AddDate(0, 1, 0) {
		for _, day := range r.ActiveDays() {
			dayOfMonth, err := strconv.Atoi(day.Label)
			if err != nil {
				continue // non-numeric label: no match, no instance
			}
			date := ClampDayOfMonth(month, dayOfMonth)
			if !window.Contains(date) {
				continue
			}
			inst, err := instanceOn(r, date)
			if err != nil {
				return nil, err
			}
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

// =============================================================================
// YEARLY
// =============================================================================

func materializeYearly(r *Routine) ([]Instance, error) {
	endDate, err := resolveEndDate(r)
	if err != nil {
		return nil, err
	}
	if len(r.ScheduledDays) == 0 {
		return nil, &InvalidYearlySelectorError{RoutineID: r.ID, Label: ""}
	}

	label := r.ScheduledDays[0].Label
	month, day, err := parseMonthDay(label, r.StartDate.Year())
	if err != nil {
		return nil, &InvalidYearlySelectorError{RoutineID: r.ID, Label: label}
	}

	startDate := DateOnly(r.StartDate)
	date := time.Date(startDate.Year(), month, day, 0, 0, 0, 0, startDate.Location())

	// Outside the window is a valid "this year doesn't apply" outcome,
	// not an error.
	if !(Interval{Start: startDate, End: endDate}).Contains(date) {
		return nil, nil
	}
	inst, err := instanceOn(r, date)
	if err != nil {
		return nil, err
	}
	return []Instance{inst}, nil
}

// parseMonthDay parses an "MM/dd" selector, validating the day against the
// month's length in the given year.
func parseMonthDay(label string, year int) (time.Month, int, error) {
	parts := strings.Split(label, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want MM/dd, got %q", label)
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("invalid month in %q", label)
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil || d < 1 {
		return 0, 0, fmt.Errorf("invalid day in %q", label)
	}
	if max := DaysInMonth(time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)); d > max {
		return 0, 0, fmt.Errorf("day %d out of range for month %d", d, m)
	}
	return time.Month(m), d, nil
}

// instanceOn builds the {start, end} pair for one calendar date by applying
// the routine's wall-clock window.
func instanceOn(r *Routine, date time.Time) (Instance, error) {
	start, err := CombineDateAndTime(date, r.FromTime)
	if err != nil {
		return Instance{}, fmt.Errorf("routine %d: %w", r.ID, err)
	}
	end, err := CombineDateAndTime(date, r.ToTime)
	if err != nil {
		return Instance{}, fmt.Errorf("routine %d: %w", r.ID, err)
	}
	return Instance{Start: start, End: end}, nil
}

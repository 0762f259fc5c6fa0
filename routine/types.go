/*
Package routine provides the core recurrence-expansion and activity-lifecycle engine.

PURPOSE:
  This package contains the types and algorithms that turn an abstract
  recurrence rule (a Routine) into concrete, time-bound Activity instances,
  keep that set consistent when the rule changes, and track each instance
  through a completion/skip/outcome state machine.

KEY CONCEPTS IN THIS FILE (types.go):
  - Routine: A user-authored recurrence template with start/end bounds
  - ScheduledDay: One day-selector within a recurrence (weekday, day-of-month,
    or month/day depending on cadence)
  - Activity: One materialized, dated occurrence of a routine
  - OutcomeKind: What capture flow fires when an activity is completed
  - Outcome records: BloodPressureReading, WeighIn, Note

DESIGN PRINCIPLES:
  1. Stateless functions over an injected persistence handle; no singletons
  2. Destructive regeneration: rebuilding a routine's activities is
     delete-then-recreate, never an incremental diff
  3. Precision: weigh-in values use decimal.Decimal to avoid float drift
  4. Mutual exclusivity: an activity is never complete and skipped at once

SEE ALSO:
  - materialize.go: Per-cadence expansion algorithms
  - regenerate.go: Delete-and-rematerialize orchestration
  - lifecycle.go: Complete/skip state machine and outcome routing
  - store.go: Persistence interfaces
*/
package routine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CADENCE - Recurrence granularity
// =============================================================================

type Cadence string

const (
	CadenceDaily   Cadence = "Daily"
	CadenceWeekly  Cadence = "Weekly"
	CadenceMonthly Cadence = "Monthly"
	CadenceYearly  Cadence = "Yearly"
)

// KnownCadences lists every cadence the materializer can expand.
// A repeating routine with a cadence outside this set is a programming
// error, surfaced as UnsupportedCadenceError.
var KnownCadences = []Cadence{CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceYearly}

// =============================================================================
// OUTCOME KIND - What happens on completion
// =============================================================================

type OutcomeKind string

const (
	OutcomeNone          OutcomeKind = "None"
	OutcomeBloodPressure OutcomeKind = "BloodPressure"
	OutcomeNote          OutcomeKind = "Note"
	OutcomeRun           OutcomeKind = "Run"
	OutcomeWeighIn       OutcomeKind = "WeighIn"
)

// =============================================================================
// ROUTINE - Recurrence template
// =============================================================================

// Routine is a recurrence template. StartDate and EndDate are calendar
// dates (midnight UTC); FromTime and ToTime are wall-clock "HH:mm" strings
// applied to every materialized instance.
type Routine struct {
	ID          int64
	Name        string
	Description string

	StartDate time.Time
	FromTime  string
	ToTime    string

	// Repeat=false means exactly one instance spanning StartDate..EndDate.
	Repeat bool

	// RepeatEnds=false means open-ended: expansion is bounded to the end of
	// StartDate's calendar year and the caller re-runs generation annually.
	RepeatEnds bool

	// EndDate is required when RepeatEnds is true or Repeat is false.
	// Zero time means unset.
	EndDate time.Time

	// Cadence is meaningful only when Repeat is true.
	Cadence Cadence

	OnComplete OutcomeKind

	ScheduledDays []ScheduledDay

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasEndDate reports whether an explicit end date is set.
func (r *Routine) HasEndDate() bool { return !r.EndDate.IsZero() }

// Validate checks the recurrence definition against the data-model
// invariants: scheduled-day row counts per cadence (7 for Weekly, 31 for
// Monthly, 1 for Yearly, 0 for Daily) and required end dates. Validation
// failures are rejected before any write occurs.
func (r *Routine) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("routine name is required")
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("routine %d: start date is required", r.ID)
	}
	if _, _, err := ParseTimeOfDay(r.FromTime); err != nil {
		return fmt.Errorf("routine %d: %w", r.ID, err)
	}
	if _, _, err := ParseTimeOfDay(r.ToTime); err != nil {
		return fmt.Errorf("routine %d: %w", r.ID, err)
	}
	if !r.Repeat {
		if !r.HasEndDate() {
			return &MissingEndDateError{RoutineID: r.ID}
		}
		return nil
	}
	if r.RepeatEnds && !r.HasEndDate() {
		return &MissingEndDateError{RoutineID: r.ID}
	}
	switch r.Cadence {
	case CadenceDaily:
		if len(r.ScheduledDays) != 0 {
			return fmt.Errorf("routine %d: daily cadence takes no scheduled days, got %d", r.ID, len(r.ScheduledDays))
		}
	case CadenceWeekly:
		if len(r.ScheduledDays) != 7 {
			return fmt.Errorf("routine %d: weekly cadence needs 7 scheduled days, got %d", r.ID, len(r.ScheduledDays))
		}
	case CadenceMonthly:
		if len(r.ScheduledDays) != 31 {
			return fmt.Errorf("routine %d: monthly cadence needs 31 scheduled days, got %d", r.ID, len(r.ScheduledDays))
		}
	case CadenceYearly:
		if len(r.ScheduledDays) != 1 {
			return fmt.Errorf("routine %d: yearly cadence needs exactly 1 scheduled day, got %d", r.ID, len(r.ScheduledDays))
		}
	default:
		return &UnsupportedCadenceError{Cadence: r.Cadence}
	}
	return nil
}

// ActiveDays returns only the scheduled days that participate in expansion.
func (r *Routine) ActiveDays() []ScheduledDay {
	var active []ScheduledDay
	for _, d := range r.ScheduledDays {
		if d.Active {
			active = append(active, d)
		}
	}
	return active
}

// ScheduledDay is one selector within a recurrence. Label is
// cadence-dependent: a weekday abbreviation (Sun..Sat, with Thursday
// written "Thur") for Weekly, a day-of-month number string "1".."31" for
// Monthly, an "MM/dd" string for Yearly. Daily needs no rows.
type ScheduledDay struct {
	ID        int64
	RoutineID int64
	Label     string
	Active    bool
}

// =============================================================================
// ACTIVITY - Materialized occurrence
// =============================================================================

// Activity is one concrete, dated occurrence of a routine. Complete and
// Skipped are mutually exclusive; both false means pending.
type Activity struct {
	ID        int64
	RoutineID int64
	Start     time.Time
	End       time.Time
	Complete  bool
	Skipped   bool
	CreatedAt time.Time

	// Routine summary, populated by range queries for timeline display.
	RoutineName        string
	RoutineDescription string
	RoutineOnComplete  OutcomeKind
}

// Pending reports whether the activity is neither complete nor skipped.
func (a *Activity) Pending() bool { return !a.Complete && !a.Skipped }

// Instance is a materialized {start, end} pair before persistence.
// The Materializer produces these; the Regeneration Controller persists them.
type Instance struct {
	Start time.Time
	End   time.Time
}

// =============================================================================
// ACTIVITY FILTER - Query shape for timeline listing
// =============================================================================

type Filter string

const (
	FilterAvailable Filter = "Available" // complete=false AND skipped=false
	FilterComplete  Filter = "Complete"
	FilterSkipped   Filter = "Skipped"
	FilterAll       Filter = "All"
)

// =============================================================================
// OUTCOME RECORDS - Typed data captured at completion
// =============================================================================

// BloodPressureReading holds one measurement linked to exactly one activity.
type BloodPressureReading struct {
	ID         int64
	ActivityID int64
	Date       time.Time
	Systolic   int
	Diastolic  int
	Pulse      int // 0 = not recorded
}

// WeighIn holds one weight measurement linked to exactly one activity.
// Decimal fields keep scale values exact (81.25 stays 81.25).
type WeighIn struct {
	ID                int64
	ActivityID        int64
	Date              time.Time
	Weight            decimal.Decimal
	BodyFatPercentage decimal.Decimal // zero = not recorded
}

// Note holds free text linked to exactly one activity.
type Note struct {
	ID         int64
	ActivityID int64
	Date       time.Time
	Body       string
}

// OutcomePayload carries the typed outcome data for a completion.
// Exactly one field should be set, matching the routine's OnComplete kind.
type OutcomePayload struct {
	BloodPressure *BloodPressureReading
	WeighIn       *WeighIn
	Note          *Note
}

// =============================================================================
// REGENERATION RESULTS
// =============================================================================

// RegenerationResult reports the outcome of rebuilding one routine's
// activity set. Err is nil on success.
type RegenerationResult struct {
	RoutineID   int64
	RoutineName string
	Created     int
	Err         error
}

// RegenerationRun is the persisted audit record of one regeneration.
type RegenerationRun struct {
	ID          string // uuid
	RoutineID   int64
	Status      string // running, completed, failed
	Created     int
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

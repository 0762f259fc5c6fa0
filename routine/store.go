/*
store.go - Persistence interfaces for routines, activities, and outcomes

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:    CRUD for routines/scheduled days/activities/outcomes
  TxStore:  Transactional grouping (WithTx)

TRANSACTION BOUNDARY:
  Regeneration (delete existing activities + batch-insert new ones) is the
  one place atomicity is required. TxStore.WithTx wraps both steps so a
  failure partway leaves the routine's prior activity set intact.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - routine/store/memory.go: In-memory for testing

SEE ALSO:
  - regenerate.go: Uses WithTx for atomic rebuilds
  - lifecycle.go: Uses WithTx for atomic outcome-upsert + complete
*/
package routine

import (
	"context"
	"time"
)

// Store handles persistence of the engine's entities. Deleting a routine
// cascades to its scheduled days and activities.
type Store interface {
	// --- Routines (with their scheduled days) ---

	// SaveRoutine inserts or updates a routine together with its scheduled
	// day rows (update replaces the scheduled-day set). Assigns r.ID on
	// insert.
	SaveRoutine(ctx context.Context, r *Routine) error

	// FindRoutine returns a routine with its scheduled days, or
	// ErrRoutineNotFound.
	FindRoutine(ctx context.Context, id int64) (*Routine, error)

	// ListRoutines returns all routines with their scheduled days, ordered
	// by name.
	ListRoutines(ctx context.Context) ([]Routine, error)

	DeleteRoutine(ctx context.Context, id int64) error

	// --- Activities ---

	// InsertActivities batch-inserts one pending activity per instance,
	// all owned by routineID.
	InsertActivities(ctx context.Context, routineID int64, instances []Instance) error

	// DeleteActivitiesForRoutine removes every activity owned by routineID,
	// irrespective of completion state.
	DeleteActivitiesForRoutine(ctx context.Context, routineID int64) error

	// FindActivity returns one activity with its routine summary fields, or
	// ErrActivityNotFound.
	FindActivity(ctx context.Context, id int64) (*Activity, error)

	// FindActivitiesInRange returns activities whose start falls in
	// [from, to], filtered and ordered by start ascending.
	FindActivitiesInRange(ctx context.Context, from, to time.Time, filter Filter) ([]Activity, error)

	// FindActivitiesForRoutine returns a routine's activities ordered by
	// start ascending.
	FindActivitiesForRoutine(ctx context.Context, routineID int64) ([]Activity, error)

	// SetActivityState sets the complete/skipped pair on one activity.
	// Implementations must reject complete && skipped.
	SetActivityState(ctx context.Context, id int64, complete, skipped bool) error

	// SetActivityTimes rewrites one activity's start/end timestamps
	// (non-destructive reschedule of pending activities).
	SetActivityTimes(ctx context.Context, id int64, start, end time.Time) error

	// --- Outcomes (at most one row per activity, keyed by activity id) ---

	UpsertBloodPressureReading(ctx context.Context, rec *BloodPressureReading) error
	FindBloodPressureReadingByActivity(ctx context.Context, activityID int64) (*BloodPressureReading, error)
	ListBloodPressureReadings(ctx context.Context) ([]BloodPressureReading, error)

	UpsertWeighIn(ctx context.Context, rec *WeighIn) error
	FindWeighInByActivity(ctx context.Context, activityID int64) (*WeighIn, error)
	ListWeighIns(ctx context.Context) ([]WeighIn, error)

	UpsertNote(ctx context.Context, rec *Note) error
	FindNoteByActivity(ctx context.Context, activityID int64) (*Note, error)
	ListNotes(ctx context.Context) ([]Note, error)

	// --- Regeneration audit ---

	SaveRegenerationRun(ctx context.Context, run RegenerationRun) error
	ListRegenerationRuns(ctx context.Context, routineID int64) ([]RegenerationRun, error)
}

// TxStore wraps Store with transaction support.
// If fn returns an error the transaction is rolled back, otherwise committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

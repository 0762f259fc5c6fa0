package routine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/routine-engine/routine"
	"github.com/warp/routine-engine/routine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newDailyRoutine(t *testing.T, s routine.TxStore, start, end time.Time) *routine.Routine {
	t.Helper()
	r := &routine.Routine{
		Name:       "Morning stretch",
		StartDate:  start,
		EndDate:    end,
		FromTime:   "06:00",
		ToTime:     "06:25",
		Repeat:     true,
		RepeatEnds: true,
		Cadence:    routine.CadenceDaily,
		OnComplete: routine.OutcomeNone,
	}
	require.NoError(t, s.SaveRoutine(context.Background(), r))
	return r
}

// failingStore rejects activity inserts, standing in for a write failure
// mid-transaction.
type failingStore struct {
	routine.Store
}

var errInjected = errors.New("injected insert failure")

func (f failingStore) InsertActivities(ctx context.Context, routineID int64, instances []routine.Instance) error {
	return errInjected
}

// failingTx wraps the transactional store so the failure lands inside the
// WithTx boundary.
type failingTx struct {
	*store.TxMemory
}

func (f failingTx) WithTx(ctx context.Context, fn func(routine.Store) error) error {
	return f.TxMemory.WithTx(ctx, func(s routine.Store) error {
		return fn(failingStore{Store: s})
	})
}

// =============================================================================
// REGENERATION
// =============================================================================

func TestRegenerate_CreatesActivitySet(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()
	r := newDailyRoutine(t, s, date(2024, time.April, 1), date(2024, time.April, 7))

	gen := routine.NewGenerator(s)
	created, err := gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, created)

	acts, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, acts, 7)
	for _, act := range acts {
		assert.True(t, act.Pending())
	}
}

func TestRegenerate_DiscardsCompletionHistory(t *testing.T) {
	// GIVEN: A routine with one completed activity
	s := store.NewTxMemory()
	ctx := context.Background()
	r := newDailyRoutine(t, s, date(2024, time.April, 1), date(2024, time.April, 3))

	gen := routine.NewGenerator(s)
	_, err := gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)

	acts, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	require.NoError(t, s.SetActivityState(ctx, acts[0].ID, true, false))

	// WHEN: Regenerating again
	created, err := gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	// THEN: The rebuilt set is all pending; the completion is gone
	acts, err = s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, acts, 3)
	for _, act := range acts {
		assert.True(t, act.Pending())
	}
}

func TestRegenerate_IdempotentForFixedDefinition(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()
	r := newDailyRoutine(t, s, date(2024, time.April, 1), date(2024, time.April, 5))

	gen := routine.NewGenerator(s)
	_, err := gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)
	first, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)

	_, err = gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)
	second, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Start.Equal(second[i].Start))
		assert.True(t, first[i].End.Equal(second[i].End))
	}
}

func TestRegenerate_FailedInsertLeavesOldSetIntact(t *testing.T) {
	// GIVEN: A routine with an existing activity set
	mem := store.NewTxMemory()
	ctx := context.Background()
	r := newDailyRoutine(t, mem, date(2024, time.April, 1), date(2024, time.April, 5))

	_, err := routine.NewGenerator(mem).Regenerate(ctx, r.ID)
	require.NoError(t, err)

	// WHEN: A rebuild fails after the delete step
	gen := routine.NewGenerator(failingTx{TxMemory: mem})
	_, err = gen.Regenerate(ctx, r.ID)
	require.ErrorIs(t, err, errInjected)

	// THEN: The prior activity set survives untouched
	acts, err := mem.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, acts, 5)
}

func TestRegenerate_ValidationFailureLeavesSetUntouched(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()
	r := newDailyRoutine(t, s, date(2024, time.April, 1), date(2024, time.April, 5))

	gen := routine.NewGenerator(s)
	_, err := gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)

	// Break the definition: repeat ends but no end date.
	r.EndDate = time.Time{}
	require.NoError(t, s.SaveRoutine(ctx, r))

	_, err = gen.Regenerate(ctx, r.ID)
	require.ErrorIs(t, err, routine.ErrMissingEndDate)

	acts, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, acts, 5, "rejected definition must not touch the activity set")
}

func TestRegenerate_RecordsRun(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()
	r := newDailyRoutine(t, s, date(2024, time.April, 1), date(2024, time.April, 3))

	gen := routine.NewGenerator(s)
	_, err := gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)

	runs, err := s.ListRegenerationRuns(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, routine.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 3, runs[0].Created)
	assert.NotEmpty(t, runs[0].ID)
}

func TestRegenerateAll_FailureDoesNotAbortOthers(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()

	good := newDailyRoutine(t, s, date(2024, time.April, 1), date(2024, time.April, 2))
	bad := &routine.Routine{
		Name:       "Broken",
		StartDate:  date(2024, time.April, 1),
		FromTime:   "06:00",
		ToTime:     "06:25",
		Repeat:     true,
		RepeatEnds: true, // no end date: materialization fails
		Cadence:    routine.CadenceDaily,
	}
	require.NoError(t, s.SaveRoutine(ctx, bad))

	results, err := routine.NewGenerator(s).RegenerateAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := make(map[int64]routine.RegenerationResult)
	for _, res := range results {
		byID[res.RoutineID] = res
	}
	assert.NoError(t, byID[good.ID].Err)
	assert.Equal(t, 2, byID[good.ID].Created)
	assert.ErrorIs(t, byID[bad.ID].Err, routine.ErrMissingEndDate)
}

// =============================================================================
// RESCHEDULE
// =============================================================================

func TestReschedule_RetimesOnlyPendingActivities(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()
	r := newDailyRoutine(t, s, date(2024, time.April, 1), date(2024, time.April, 3))

	gen := routine.NewGenerator(s)
	_, err := gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)

	acts, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	require.NoError(t, s.SetActivityState(ctx, acts[0].ID, true, false))
	completedStart := acts[0].Start

	// Move the window from 06:00 to 07:30
	r.FromTime = "07:30"
	r.ToTime = "07:55"
	require.NoError(t, s.SaveRoutine(ctx, r))

	updated, err := gen.Reschedule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	acts, err = s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	for _, act := range acts {
		if act.Complete {
			// Completed activity keeps the time it was acted on
			assert.True(t, act.Start.Equal(completedStart))
			continue
		}
		assert.Equal(t, 7, act.Start.Hour())
		assert.Equal(t, 30, act.Start.Minute())
		assert.Equal(t, 55, act.End.Minute())
	}
}

func TestReschedule_PreservesCalendarDates(t *testing.T) {
	s := store.NewTxMemory()
	ctx := context.Background()
	r := newDailyRoutine(t, s, date(2024, time.April, 1), date(2024, time.April, 3))

	gen := routine.NewGenerator(s)
	_, err := gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)
	before, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)

	r.FromTime = "21:00"
	r.ToTime = "21:30"
	require.NoError(t, s.SaveRoutine(ctx, r))
	_, err = gen.Reschedule(ctx, r.ID)
	require.NoError(t, err)

	after, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Start.Day(), after[i].Start.Day())
		assert.Equal(t, before[i].ID, after[i].ID, "reschedule must not recreate rows")
	}
}

package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/routine-engine/routine"
	"github.com/warp/routine-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func seedWeeklyRoutine(t *testing.T, s *sqlite.Store) *routine.Routine {
	t.Helper()
	labels := []string{"Sun", "Mon", "Tue", "Wed", "Thur", "Fri", "Sat"}
	r := &routine.Routine{
		Name:        "Gym",
		Description: "Strength session",
		StartDate:   date(2024, time.April, 1),
		EndDate:     date(2024, time.April, 30),
		FromTime:    "17:30",
		ToTime:      "18:30",
		Repeat:      true,
		RepeatEnds:  true,
		Cadence:     routine.CadenceWeekly,
		OnComplete:  routine.OutcomeNone,
	}
	for _, l := range labels {
		r.ScheduledDays = append(r.ScheduledDays, routine.ScheduledDay{
			Label:  l,
			Active: l == "Mon" || l == "Wed",
		})
	}
	require.NoError(t, s.SaveRoutine(context.Background(), r))
	return r
}

func seedActivity(t *testing.T, s *sqlite.Store, routineID int64, start time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InsertActivities(ctx, routineID, []routine.Instance{
		{Start: start, End: start.Add(time.Hour)},
	}))
	acts, err := s.FindActivitiesForRoutine(ctx, routineID)
	require.NoError(t, err)
	return acts[len(acts)-1].ID
}

// =============================================================================
// ROUTINE PERSISTENCE
// =============================================================================

func TestStore_SaveAndFindRoutine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)
	require.NotZero(t, r.ID)

	got, err := s.FindRoutine(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gym", got.Name)
	assert.Equal(t, "17:30", got.FromTime)
	assert.Equal(t, routine.CadenceWeekly, got.Cadence)
	assert.True(t, got.StartDate.Equal(date(2024, time.April, 1)))
	assert.True(t, got.EndDate.Equal(date(2024, time.April, 30)))
	require.Len(t, got.ScheduledDays, 7)
	// Row order follows the submitted grid
	assert.Equal(t, "Sun", got.ScheduledDays[0].Label)
	assert.Equal(t, "Thur", got.ScheduledDays[4].Label)
	assert.Len(t, got.ActiveDays(), 2)
}

func TestStore_FindRoutine_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindRoutine(context.Background(), 42)
	assert.ErrorIs(t, err, routine.ErrRoutineNotFound)
}

func TestStore_UpdateRoutine_ReplacesScheduledDays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)

	// Flip the active set to Friday only
	for i := range r.ScheduledDays {
		r.ScheduledDays[i].Active = r.ScheduledDays[i].Label == "Fri"
	}
	require.NoError(t, s.SaveRoutine(ctx, r))

	got, err := s.FindRoutine(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.ScheduledDays, 7, "update replaces, not appends")
	active := got.ActiveDays()
	require.Len(t, active, 1)
	assert.Equal(t, "Fri", active[0].Label)
}

func TestStore_DeleteRoutine_CascadesToActivitiesAndOutcomes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)
	actID := seedActivity(t, s, r.ID, date(2024, time.April, 3).Add(17*time.Hour))

	require.NoError(t, s.UpsertNote(ctx, &routine.Note{
		ActivityID: actID,
		Date:       time.Now().UTC(),
		Body:       "good session",
	}))

	require.NoError(t, s.DeleteRoutine(ctx, r.ID))

	_, err := s.FindActivity(ctx, actID)
	assert.ErrorIs(t, err, routine.ErrActivityNotFound)

	note, err := s.FindNoteByActivity(ctx, actID)
	require.NoError(t, err)
	assert.Nil(t, note)
}

// =============================================================================
// ACTIVITY STATE
// =============================================================================

func TestStore_SetActivityState_RejectsBothFlags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)
	actID := seedActivity(t, s, r.ID, date(2024, time.April, 3))

	// The schema CHECK guards the mutual-exclusivity invariant even if a
	// caller bypasses the lifecycle.
	err := s.SetActivityState(ctx, actID, true, true)
	assert.Error(t, err)

	act, err := s.FindActivity(ctx, actID)
	require.NoError(t, err)
	assert.True(t, act.Pending())
}

func TestStore_SetActivityState_TogglesCleanly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)
	actID := seedActivity(t, s, r.ID, date(2024, time.April, 3))

	require.NoError(t, s.SetActivityState(ctx, actID, true, false))
	require.NoError(t, s.SetActivityState(ctx, actID, false, true))

	act, err := s.FindActivity(ctx, actID)
	require.NoError(t, err)
	assert.False(t, act.Complete)
	assert.True(t, act.Skipped)
}

func TestStore_FindActivitiesInRange_FilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)

	// Insert out of chronological order
	late := seedActivity(t, s, r.ID, date(2024, time.April, 10).Add(17*time.Hour))
	early := seedActivity(t, s, r.ID, date(2024, time.April, 3).Add(17*time.Hour))
	mid := seedActivity(t, s, r.ID, date(2024, time.April, 8).Add(17*time.Hour))
	require.NoError(t, s.SetActivityState(ctx, mid, true, false))

	all, err := s.FindActivitiesInRange(ctx, date(2024, time.April, 1), date(2024, time.April, 30), routine.FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{early, mid, late}, []int64{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "Gym", all[0].RoutineName, "range query joins the routine summary")

	available, err := s.FindActivitiesInRange(ctx, date(2024, time.April, 1), date(2024, time.April, 30), routine.FilterAvailable)
	require.NoError(t, err)
	assert.Len(t, available, 2)

	complete, err := s.FindActivitiesInRange(ctx, date(2024, time.April, 1), date(2024, time.April, 30), routine.FilterComplete)
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, mid, complete[0].ID)
}

// =============================================================================
// OUTCOMES
// =============================================================================

func TestStore_UpsertWeighIn_OneRowPerActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)
	actID := seedActivity(t, s, r.ID, date(2024, time.April, 3))

	first := &routine.WeighIn{
		ActivityID:        actID,
		Date:              time.Date(2024, time.April, 3, 7, 0, 0, 0, time.UTC),
		Weight:            decimal.RequireFromString("81.25"),
		BodyFatPercentage: decimal.RequireFromString("18.4"),
	}
	require.NoError(t, s.UpsertWeighIn(ctx, first))

	second := &routine.WeighIn{
		ActivityID: actID,
		Date:       time.Date(2024, time.April, 3, 8, 0, 0, 0, time.UTC),
		Weight:     decimal.RequireFromString("80.90"),
	}
	require.NoError(t, s.UpsertWeighIn(ctx, second))

	rec, err := s.FindWeighInByActivity(ctx, actID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	// Decimal text storage keeps the value exact
	assert.Equal(t, "80.9", rec.Weight.String())
	assert.True(t, rec.BodyFatPercentage.IsZero())

	all, err := s.ListWeighIns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_BloodPressure_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)
	actID := seedActivity(t, s, r.ID, date(2024, time.April, 3))

	require.NoError(t, s.UpsertBloodPressureReading(ctx, &routine.BloodPressureReading{
		ActivityID: actID,
		Date:       time.Date(2024, time.April, 3, 7, 0, 0, 0, time.UTC),
		Systolic:   118,
		Diastolic:  76,
		Pulse:      62,
	}))

	rec, err := s.FindBloodPressureReadingByActivity(ctx, actID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 118, rec.Systolic)
	assert.Equal(t, 76, rec.Diastolic)
	assert.Equal(t, 62, rec.Pulse)
}

func TestStore_FindOutcome_MissingIsNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.FindWeighInByActivity(ctx, 123)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)

	errBoom := errors.New("boom")
	err := s.WithTx(ctx, func(tx routine.Store) error {
		if err := tx.InsertActivities(ctx, r.ID, []routine.Instance{
			{Start: date(2024, time.April, 3), End: date(2024, time.April, 3).Add(time.Hour)},
		}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	acts, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, acts, "rolled-back insert must not persist")
}

func TestStore_WithTx_DeleteAndInsertCommitTogether(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)
	seedActivity(t, s, r.ID, date(2024, time.April, 3))

	err := s.WithTx(ctx, func(tx routine.Store) error {
		if err := tx.DeleteActivitiesForRoutine(ctx, r.ID); err != nil {
			return err
		}
		return tx.InsertActivities(ctx, r.ID, []routine.Instance{
			{Start: date(2024, time.April, 8), End: date(2024, time.April, 8).Add(time.Hour)},
			{Start: date(2024, time.April, 10), End: date(2024, time.April, 10).Add(time.Hour)},
		})
	})
	require.NoError(t, err)

	acts, err := s.FindActivitiesForRoutine(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, acts, 2)
}

// =============================================================================
// END-TO-END WITH THE GENERATOR
// =============================================================================

func TestStore_RegenerateAgainstSQLite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedWeeklyRoutine(t, s)

	gen := routine.NewGenerator(s)
	created, err := gen.Regenerate(ctx, r.ID)
	require.NoError(t, err)
	// Mondays and Wednesdays in April 2024: 1,3,8,10,15,17,22,24,29
	assert.Equal(t, 9, created)

	runs, err := s.ListRegenerationRuns(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, routine.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 9, runs[0].Created)
}

/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates routines, expands
	their activity sets, and backfills some completions so the timeline
	and history views have content.

AVAILABLE SCENARIOS:

	daily-health:    Morning weigh-ins, weekly blood pressure, evening journal
	fitness-week:    Gym and run routines across the week
	household:       Monthly bills, a yearly renewal, a one-time task

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create routines and expand their activity sets
 3. Complete or skip a handful of past activities, with outcome data
    where the routine captures any

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "daily-health"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shared handler context and error helpers
  - routine/regenerate.go: Activity set expansion
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/routine-engine/routine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "daily-health",
		Name:        "Daily Health",
		Description: "Morning weigh-ins, a weekly blood pressure check, and an evening journal",
		Category:    "health",
	},
	{
		ID:          "fitness-week",
		Name:        "Fitness Week",
		Description: "Gym on Mon/Wed/Fri and runs on Tue/Sat",
		Category:    "fitness",
	},
	{
		ID:          "household",
		Name:        "Household",
		Description: "Bills on the 1st and 15th, a yearly renewal, and a one-time errand",
		Category:    "chores",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	resetter, ok := h.Store.(Resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	if err := resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "daily-health":
		err = h.loadDailyHealthScenario(ctx)
	case "fitness-week":
		err = h.loadFitnessWeekScenario(ctx)
	case "household":
		err = h.loadHouseholdScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadDailyHealthScenario(ctx context.Context) error {
	startOfYear := time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	// Daily weigh-in before breakfast, open-ended so the yearly rebuild
	// keeps extending it.
	weighIn := &routine.Routine{
		Name:       "Morning weigh-in",
		StartDate:  startOfYear,
		FromTime:   "06:30",
		ToTime:     "06:45",
		Repeat:     true,
		Cadence:    routine.CadenceDaily,
		OnComplete: routine.OutcomeWeighIn,
	}
	if err := h.seedRoutine(ctx, weighIn); err != nil {
		return err
	}

	// Weekly blood pressure check on Mondays.
	bp := &routine.Routine{
		Name:          "Blood pressure check",
		StartDate:     startOfYear,
		FromTime:      "07:00",
		ToTime:        "07:10",
		Repeat:        true,
		Cadence:       routine.CadenceWeekly,
		OnComplete:    routine.OutcomeBloodPressure,
		ScheduledDays: weeklyGrid("Mon"),
	}
	if err := h.seedRoutine(ctx, bp); err != nil {
		return err
	}

	// Evening journal entry, captured as a note.
	journal := &routine.Routine{
		Name:       "Evening journal",
		StartDate:  startOfYear,
		FromTime:   "21:30",
		ToTime:     "21:45",
		Repeat:     true,
		Cadence:    routine.CadenceDaily,
		OnComplete: routine.OutcomeNote,
	}
	if err := h.seedRoutine(ctx, journal); err != nil {
		return err
	}

	// Backfill a week of weigh-ins trending down.
	weights := []string{"82.40", "82.10", "82.30", "81.90", "81.70", "81.80", "81.50"}
	if err := h.completePast(ctx, weighIn.ID, len(weights), func(i int, act routine.Activity) *routine.OutcomePayload {
		return &routine.OutcomePayload{WeighIn: &routine.WeighIn{
			Date:   act.Start,
			Weight: decimal.RequireFromString(weights[i]),
		}}
	}); err != nil {
		return err
	}

	// Two weeks of blood pressure readings.
	readings := []routine.BloodPressureReading{
		{Systolic: 122, Diastolic: 79, Pulse: 64},
		{Systolic: 118, Diastolic: 76, Pulse: 61},
	}
	if err := h.completePast(ctx, bp.ID, len(readings), func(i int, act routine.Activity) *routine.OutcomePayload {
		rec := readings[i]
		rec.Date = act.Start
		return &routine.OutcomePayload{BloodPressure: &rec}
	}); err != nil {
		return err
	}

	// A few journal entries.
	entries := []string{
		"Slept well, early start.",
		"Long day at work, short walk after dinner.",
		"Meal prepped for the week.",
	}
	return h.completePast(ctx, journal.ID, len(entries), func(i int, act routine.Activity) *routine.OutcomePayload {
		return &routine.OutcomePayload{Note: &routine.Note{Date: act.Start, Body: entries[i]}}
	})
}

func (h *Handler) loadFitnessWeekScenario(ctx context.Context) error {
	startOfYear := time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	gym := &routine.Routine{
		Name:          "Gym session",
		Description:   "Strength training",
		StartDate:     startOfYear,
		FromTime:      "17:30",
		ToTime:        "18:30",
		Repeat:        true,
		Cadence:       routine.CadenceWeekly,
		ScheduledDays: weeklyGrid("Mon", "Wed", "Fri"),
	}
	if err := h.seedRoutine(ctx, gym); err != nil {
		return err
	}

	run := &routine.Routine{
		Name:          "Run",
		Description:   "Easy pace, 5k",
		StartDate:     startOfYear,
		FromTime:      "07:00",
		ToTime:        "07:45",
		Repeat:        true,
		Cadence:       routine.CadenceWeekly,
		OnComplete:    routine.OutcomeRun,
		ScheduledDays: weeklyGrid("Tue", "Sat"),
	}
	if err := h.seedRoutine(ctx, run); err != nil {
		return err
	}

	// First two gym sessions done, third skipped.
	acts, err := h.Store.FindActivitiesForRoutine(ctx, gym.ID)
	if err != nil {
		return err
	}
	for i, act := range acts {
		if i >= 3 {
			break
		}
		if i == 2 {
			err = h.Lifecycle.Skip(ctx, act.ID)
		} else {
			err = h.Lifecycle.Complete(ctx, act.ID)
		}
		if err != nil {
			return err
		}
	}

	return h.completePast(ctx, run.ID, 2, func(int, routine.Activity) *routine.OutcomePayload {
		return nil // run completions capture nothing yet
	})
}

func (h *Handler) loadHouseholdScenario(ctx context.Context) error {
	year := time.Now().Year()
	startOfYear := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	endOfYear := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	bills := &routine.Routine{
		Name:          "Pay bills",
		StartDate:     startOfYear,
		EndDate:       endOfYear,
		FromTime:      "19:00",
		ToTime:        "19:30",
		Repeat:        true,
		RepeatEnds:    true,
		Cadence:       routine.CadenceMonthly,
		ScheduledDays: monthlyGrid(1, 15),
	}
	if err := h.seedRoutine(ctx, bills); err != nil {
		return err
	}

	renewal := &routine.Routine{
		Name:          "Renew home insurance",
		StartDate:     startOfYear,
		EndDate:       endOfYear,
		FromTime:      "10:00",
		ToTime:        "10:30",
		Repeat:        true,
		RepeatEnds:    true,
		Cadence:       routine.CadenceYearly,
		ScheduledDays: []routine.ScheduledDay{{Label: "06/01", Active: true}},
	}
	if err := h.seedRoutine(ctx, renewal); err != nil {
		return err
	}

	errand := &routine.Routine{
		Name:      "Drop off donation boxes",
		StartDate: time.Date(year, time.March, 14, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, time.March, 14, 0, 0, 0, 0, time.UTC),
		FromTime:  "11:00",
		ToTime:    "12:00",
	}
	if err := h.seedRoutine(ctx, errand); err != nil {
		return err
	}

	return h.completePast(ctx, bills.ID, 2, func(int, routine.Activity) *routine.OutcomePayload {
		return nil
	})
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

// seedRoutine saves a routine and expands its activity set.
func (h *Handler) seedRoutine(ctx context.Context, rt *routine.Routine) error {
	if rt.OnComplete == "" {
		rt.OnComplete = routine.OutcomeNone
	}
	if err := rt.Validate(); err != nil {
		return fmt.Errorf("seed %q: %w", rt.Name, err)
	}
	if err := h.Store.SaveRoutine(ctx, rt); err != nil {
		return err
	}
	_, err := h.Generator.Regenerate(ctx, rt.ID)
	return err
}

// completePast completes up to n of a routine's earliest activities,
// attaching whatever outcome the callback builds for each.
func (h *Handler) completePast(ctx context.Context, routineID int64, n int, outcome func(int, routine.Activity) *routine.OutcomePayload) error {
	acts, err := h.Store.FindActivitiesForRoutine(ctx, routineID)
	if err != nil {
		return err
	}
	for i, act := range acts {
		if i >= n {
			break
		}
		if err := h.Lifecycle.CompleteWithOutcome(ctx, act.ID, outcome(i, act)); err != nil {
			return err
		}
	}
	return nil
}

// weeklyGrid builds the full seven-row weekday grid with the named
// labels active.
func weeklyGrid(active ...string) []routine.ScheduledDay {
	labels := []string{"Sun", "Mon", "Tue", "Wed", "Thur", "Fri", "Sat"}
	days := make([]routine.ScheduledDay, len(labels))
	for i, l := range labels {
		days[i] = routine.ScheduledDay{Label: l}
		for _, a := range active {
			if a == l {
				days[i].Active = true
			}
		}
	}
	return days
}

// monthlyGrid builds the full thirty-one-row day-of-month grid with the
// given days active.
func monthlyGrid(active ...int) []routine.ScheduledDay {
	days := make([]routine.ScheduledDay, 31)
	for i := range days {
		days[i] = routine.ScheduledDay{Label: strconv.Itoa(i + 1)}
		for _, a := range active {
			if a == i+1 {
				days[i].Active = true
			}
		}
	}
	return days
}

/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Routine creation, update and the activity sets they produce
- Timeline queries by date and state filter
- Completion with and without outcome payloads
- Error mapping (404 unknown ids, 400 validation failures)
- Admin regeneration across all routines
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/routine-engine/routine"
	"github.com/warp/routine-engine/routine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) (http.Handler, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	return NewRouter(NewHandler(mem)), mem
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

// weeklyRequest is a Monday/Wednesday gym routine spanning April 2024.
func weeklyRequest() SaveRoutineRequest {
	labels := []string{"Sun", "Mon", "Tue", "Wed", "Thur", "Fri", "Sat"}
	req := SaveRoutineRequest{
		Name:       "Gym",
		StartDate:  "2024-04-01",
		EndDate:    "2024-04-30",
		FromTime:   "17:30",
		ToTime:     "18:30",
		Repeat:     true,
		RepeatEnds: true,
		Cadence:    "Weekly",
	}
	for _, l := range labels {
		req.ScheduledDays = append(req.ScheduledDays, ScheduledDayDTO{
			Label:  l,
			Active: l == "Mon" || l == "Wed",
		})
	}
	return req
}

func createRoutine(t *testing.T, router http.Handler, req SaveRoutineRequest) int64 {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/routines", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Routine RoutineDTO `json:"routine"`
	}
	decodeJSON(t, rec, &resp)
	return resp.Routine.ID
}

// =============================================================================
// ROUTINE ENDPOINTS
// =============================================================================

func TestCreateRoutine_ExpandsActivities(t *testing.T) {
	router, mem := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/routines", weeklyRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Routine RoutineDTO `json:"routine"`
		Created int        `json:"activities_created"`
	}
	decodeJSON(t, rec, &resp)
	// Mondays and Wednesdays in April 2024
	assert.Equal(t, 9, resp.Created)

	acts, err := mem.FindActivitiesForRoutine(context.Background(), resp.Routine.ID)
	require.NoError(t, err)
	assert.Len(t, acts, 9)
}

func TestCreateRoutine_InvalidGridRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	req := weeklyRequest()
	req.ScheduledDays = req.ScheduledDays[:5] // weekly needs all 7 rows

	rec := doRequest(t, router, http.MethodPost, "/api/routines", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRoutine_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/routines/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRoutine_RebuildsActivitySet(t *testing.T) {
	router, mem := newTestRouter(t)
	id := createRoutine(t, router, weeklyRequest())
	ctx := context.Background()

	// Complete one activity, then narrow the grid to Wednesdays only
	acts, err := mem.FindActivitiesForRoutine(ctx, id)
	require.NoError(t, err)
	require.NoError(t, mem.SetActivityState(ctx, acts[0].ID, true, false))

	req := weeklyRequest()
	for i := range req.ScheduledDays {
		req.ScheduledDays[i].Active = req.ScheduledDays[i].Label == "Wed"
	}

	rec := doRequest(t, router, http.MethodPut, "/api/routines/42", req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown id must 404")

	rec = doRequest(t, router, http.MethodPut, "/api/routines/1", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Wednesdays in April 2024: 3, 10, 17, 24 - and the completion is gone
	acts, err = mem.FindActivitiesForRoutine(ctx, id)
	require.NoError(t, err)
	assert.Len(t, acts, 4)
	for _, act := range acts {
		assert.True(t, act.Pending())
	}
}

func TestRegenerateEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createRoutine(t, router, weeklyRequest())

	rec := doRequest(t, router, http.MethodPost, "/api/routines/1/regenerate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RegenerateResponseDTO
	decodeJSON(t, rec, &resp)
	assert.Equal(t, id, resp.RoutineID)
	assert.Equal(t, 9, resp.Created)
}

func TestRoutineRunsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	createRoutine(t, router, weeklyRequest())

	rec := doRequest(t, router, http.MethodGet, "/api/routines/1/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Runs []RegenerationRunDTO `json:"runs"`
	}
	decodeJSON(t, rec, &resp)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, routine.RunStatusCompleted, resp.Runs[0].Status)
}

// =============================================================================
// ACTIVITY ENDPOINTS
// =============================================================================

func TestListActivities_ByDateAndFilter(t *testing.T) {
	router, mem := newTestRouter(t)
	id := createRoutine(t, router, weeklyRequest())

	acts, err := mem.FindActivitiesForRoutine(context.Background(), id)
	require.NoError(t, err)
	first := acts[0] // April 1, a Monday

	rec := doRequest(t, router, http.MethodGet, "/api/activities?date=2024-04-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dtos []ActivityDTO
	decodeJSON(t, rec, &dtos)
	require.Len(t, dtos, 1)
	assert.Equal(t, first.ID, dtos[0].ID)
	assert.Equal(t, "Gym", dtos[0].RoutineName)

	// Complete it; the Available view for that day empties
	rec = doRequest(t, router, http.MethodPost, "/api/activities/1/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/activities?date=2024-04-01&filter=Available", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dtos = nil
	decodeJSON(t, rec, &dtos)
	assert.Empty(t, dtos)
}

func TestListActivities_BadDate(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/activities?date=04-01-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSkipActivity(t *testing.T) {
	router, mem := newTestRouter(t)
	createRoutine(t, router, weeklyRequest())

	rec := doRequest(t, router, http.MethodPost, "/api/activities/1/skip", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	act, err := mem.FindActivity(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, act.Skipped)
	assert.False(t, act.Complete)
}

func TestCompleteActivity_WithWeighIn(t *testing.T) {
	router, mem := newTestRouter(t)

	req := weeklyRequest()
	req.Name = "Weigh in"
	req.OnComplete = "WeighIn"
	createRoutine(t, router, req)

	body := map[string]any{
		"weigh_in": map[string]any{
			"weight":              "81.25",
			"body_fat_percentage": "18.4",
		},
	}
	rec := doRequest(t, router, http.MethodPost, "/api/activities/1/complete", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	act, err := mem.FindActivity(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, act.Complete)

	rec = doRequest(t, router, http.MethodGet, "/api/outcomes/weigh-ins", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		WeighIns []WeighInDTO `json:"weigh_ins"`
	}
	decodeJSON(t, rec, &resp)
	require.Len(t, resp.WeighIns, 1)
	assert.Equal(t, "81.25", resp.WeighIns[0].Weight.String())
}

func TestCompleteActivity_MissingPayload(t *testing.T) {
	router, mem := newTestRouter(t)

	req := weeklyRequest()
	req.Name = "Blood pressure"
	req.OnComplete = "BloodPressure"
	createRoutine(t, router, req)

	rec := doRequest(t, router, http.MethodPost, "/api/activities/1/complete", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	act, err := mem.FindActivity(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, act.Pending())
}

func TestCompleteActivity_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/activities/99/complete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

func TestRegenerateAllEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	createRoutine(t, router, weeklyRequest())

	second := weeklyRequest()
	second.Name = "Evening run"
	createRoutine(t, router, second)

	rec := doRequest(t, router, http.MethodPost, "/api/admin/regenerate-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []RegenerateAllResultDTO `json:"results"`
	}
	decodeJSON(t, rec, &resp)
	require.Len(t, resp.Results, 2)
	for _, res := range resp.Results {
		assert.Empty(t, res.Error)
		assert.Equal(t, 9, res.Created)
	}
}

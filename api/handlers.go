/*
handlers.go - HTTP API handlers for the routine scheduling engine

PURPOSE:
  Exposes the routine engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Routines:
    GET    /api/routines                    List all routines
    POST   /api/routines                    Create routine (and expand it)
    GET    /api/routines/{id}               Get routine details
    PUT    /api/routines/{id}               Update routine (and re-expand it)
    DELETE /api/routines/{id}               Delete routine and its activities
    POST   /api/routines/{id}/regenerate    Rebuild the activity set
    POST   /api/routines/{id}/reschedule    Retime pending activities in place
    GET    /api/routines/{id}/activities    List a routine's activities
    GET    /api/routines/{id}/runs          Regeneration audit history

  Activities:
    GET    /api/activities?date=&filter=    Timeline for one day
    GET    /api/activities/{id}             Single activity with routine summary
    POST   /api/activities/{id}/complete    Mark complete (optional outcome body)
    POST   /api/activities/{id}/skip        Mark skipped

  Outcomes:
    GET    /api/outcomes/blood-pressure     Reading history
    GET    /api/outcomes/weigh-ins          Weigh-in history
    GET    /api/outcomes/notes              Note history

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    GET    /api/scenarios/current           Currently loaded scenario
    POST   /api/scenarios/load              Load a demo scenario (dev only)

  Admin:
    POST   /api/admin/regenerate-all        Rebuild every routine
    POST   /api/admin/reset                 Clear all data (dev only)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unconfigured outcome
  - 404: Routine or activity not found
  - 500: Internal errors

SECURITY NOTE:
  Single-user engine, no authentication. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - routine/regenerate.go: Rebuild semantics
  - routine/lifecycle.go: Completion and skip semantics
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/routine-engine/routine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     routine.TxStore
	Generator *routine.Generator
	Lifecycle *routine.Lifecycle

	currentScenario string
}

// Resetter is implemented by stores that support clearing all data.
type Resetter interface {
	Reset(ctx context.Context) error
}

// NewHandler creates a new handler with the given store.
func NewHandler(store routine.TxStore) *Handler {
	return &Handler{
		Store:     store,
		Generator: routine.NewGenerator(store),
		Lifecycle: routine.NewLifecycle(store),
	}
}

// =============================================================================
// ROUTINE HANDLERS
// =============================================================================

// ListRoutines returns all routines.
func (h *Handler) ListRoutines(w http.ResponseWriter, r *http.Request) {
	routines, err := h.Store.ListRoutines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list routines", err)
		return
	}

	dtos := make([]RoutineDTO, len(routines))
	for i := range routines {
		dtos[i] = toRoutineDTO(&routines[i])
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetRoutine returns a single routine with its scheduled days.
func (h *Handler) GetRoutine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid routine id", err)
		return
	}

	rt, err := h.Store.FindRoutine(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get routine", err)
		return
	}

	writeJSON(w, http.StatusOK, toRoutineDTO(rt))
}

// CreateRoutine creates a routine and expands its activity set.
func (h *Handler) CreateRoutine(w http.ResponseWriter, r *http.Request) {
	h.saveRoutine(w, r, 0)
}

// UpdateRoutine updates a routine and rebuilds its activity set. The
// rebuild is destructive: completion history on the old set is discarded.
func (h *Handler) UpdateRoutine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid routine id", err)
		return
	}

	// PUT never upserts: an unknown id is the client's mistake.
	if _, err := h.Store.FindRoutine(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to update routine", err)
		return
	}
	h.saveRoutine(w, r, id)
}

func (h *Handler) saveRoutine(w http.ResponseWriter, r *http.Request, id int64) {
	var req SaveRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rt, err := routineFromRequest(&req, id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid routine", err)
		return
	}
	if err := rt.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid routine", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.SaveRoutine(ctx, rt); err != nil {
		writeDomainError(w, "Failed to save routine", err)
		return
	}

	created, err := h.Generator.Regenerate(ctx, rt.ID)
	if err != nil {
		writeDomainError(w, "Failed to expand routine", err)
		return
	}

	status := http.StatusCreated
	if id != 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"routine":            toRoutineDTO(rt),
		"activities_created": created,
	})
}

// DeleteRoutine removes a routine; its activities and outcomes cascade.
func (h *Handler) DeleteRoutine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid routine id", err)
		return
	}

	if err := h.Store.DeleteRoutine(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete routine", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// RegenerateRoutine rebuilds a routine's activity set from its definition.
func (h *Handler) RegenerateRoutine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid routine id", err)
		return
	}

	created, err := h.Generator.Regenerate(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to regenerate routine", err)
		return
	}

	writeJSON(w, http.StatusOK, RegenerateResponseDTO{RoutineID: id, Created: created})
}

// RescheduleRoutine retimes a routine's pending activities to its current
// from/to times without touching completion state.
func (h *Handler) RescheduleRoutine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid routine id", err)
		return
	}

	updated, err := h.Generator.Reschedule(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to reschedule routine", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"routine_id": id, "updated": updated})
}

// ListRoutineActivities returns a routine's activities by start ascending.
func (h *Handler) ListRoutineActivities(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid routine id", err)
		return
	}

	acts, err := h.Store.FindActivitiesForRoutine(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list activities", err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityDTOs(acts))
}

// ListRoutineRuns returns a routine's regeneration audit history.
func (h *Handler) ListRoutineRuns(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid routine id", err)
		return
	}

	runs, err := h.Store.ListRegenerationRuns(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list regeneration runs", err)
		return
	}

	dtos := make([]RegenerationRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRegenerationRunDTO(run)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

// ListActivities returns the timeline for one day.
// GET /api/activities?date=2024-04-03&filter=Available
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = time.Now().Format(routine.DateLayout)
	}
	date, err := time.Parse(routine.DateLayout, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	filter := routine.Filter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = routine.FilterAll
	}

	acts, err := h.Lifecycle.ActivitiesOn(r.Context(), date, filter)
	if err != nil {
		writeDomainError(w, "Failed to list activities", err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityDTOs(acts))
}

// GetActivity returns one activity with its routine summary.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid activity id", err)
		return
	}

	act, err := h.Store.FindActivity(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get activity", err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityDTO(*act))
}

// CompleteActivity marks an activity complete. For routines whose
// completion captures data, the request body carries the outcome and both
// writes land in one transaction.
func (h *Handler) CompleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid activity id", err)
		return
	}

	var req CompleteActivityRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	payload := outcomeFromRequest(&req)
	if err := h.Lifecycle.CompleteWithOutcome(r.Context(), id, payload); err != nil {
		writeDomainError(w, "Failed to complete activity", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "complete"})
}

// SkipActivity marks an activity skipped.
func (h *Handler) SkipActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid activity id", err)
		return
	}

	if err := h.Lifecycle.Skip(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to skip activity", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
}

// =============================================================================
// OUTCOME HISTORY HANDLERS
// =============================================================================

// ListBloodPressureReadings returns all readings by date ascending.
func (h *Handler) ListBloodPressureReadings(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Store.ListBloodPressureReadings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list readings", err)
		return
	}

	dtos := make([]BloodPressureDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = BloodPressureDTO{
			ID:         rec.ID,
			ActivityID: rec.ActivityID,
			Date:       rec.Date.Format(time.RFC3339),
			Systolic:   rec.Systolic,
			Diastolic:  rec.Diastolic,
			Pulse:      rec.Pulse,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": dtos})
}

// ListWeighIns returns all weigh-ins by date ascending.
func (h *Handler) ListWeighIns(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Store.ListWeighIns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list weigh-ins", err)
		return
	}

	dtos := make([]WeighInDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = WeighInDTO{
			ID:                rec.ID,
			ActivityID:        rec.ActivityID,
			Date:              rec.Date.Format(time.RFC3339),
			Weight:            rec.Weight,
			BodyFatPercentage: rec.BodyFatPercentage,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"weigh_ins": dtos})
}

// ListNotes returns all notes by date ascending.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Store.ListNotes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notes", err)
		return
	}

	dtos := make([]NoteDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = NoteDTO{
			ID:         rec.ID,
			ActivityID: rec.ActivityID,
			Date:       rec.Date.Format(time.RFC3339),
			Body:       rec.Body,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": dtos})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RegenerateAll rebuilds every routine's activity set. Per-routine
// failures are reported per entry; the sweep itself never aborts early.
func (h *Handler) RegenerateAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.Generator.RegenerateAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to regenerate", err)
		return
	}

	dtos := make([]RegenerateAllResultDTO, len(results))
	for i, res := range results {
		dto := RegenerateAllResultDTO{
			RoutineID:   res.RoutineID,
			RoutineName: res.RoutineName,
			Created:     res.Created,
		}
		if res.Err != nil {
			dto.Error = res.Err.Error()
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": dtos})
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	resetter, ok := h.Store.(Resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	if err := resetter.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func routineFromRequest(req *SaveRoutineRequest, id int64) (*routine.Routine, error) {
	startDate, err := time.Parse(routine.DateLayout, req.StartDate)
	if err != nil {
		return nil, err
	}

	rt := &routine.Routine{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   startDate,
		FromTime:    req.FromTime,
		ToTime:      req.ToTime,
		Repeat:      req.Repeat,
		RepeatEnds:  req.RepeatEnds,
		Cadence:     routine.Cadence(req.Cadence),
		OnComplete:  routine.OutcomeKind(req.OnComplete),
	}
	if rt.OnComplete == "" {
		rt.OnComplete = routine.OutcomeNone
	}
	if req.EndDate != "" {
		endDate, err := time.Parse(routine.DateLayout, req.EndDate)
		if err != nil {
			return nil, err
		}
		rt.EndDate = endDate
	}
	for _, d := range req.ScheduledDays {
		rt.ScheduledDays = append(rt.ScheduledDays, routine.ScheduledDay{
			Label:  d.Label,
			Active: d.Active,
		})
	}
	return rt, nil
}

func outcomeFromRequest(req *CompleteActivityRequest) *routine.OutcomePayload {
	if req.BloodPressure == nil && req.WeighIn == nil && req.Note == nil {
		return nil
	}

	payload := &routine.OutcomePayload{}
	now := time.Now().UTC()
	if bp := req.BloodPressure; bp != nil {
		payload.BloodPressure = &routine.BloodPressureReading{
			Date:      now,
			Systolic:  bp.Systolic,
			Diastolic: bp.Diastolic,
			Pulse:     bp.Pulse,
		}
	}
	if wi := req.WeighIn; wi != nil {
		payload.WeighIn = &routine.WeighIn{
			Date:              now,
			Weight:            wi.Weight,
			BodyFatPercentage: wi.BodyFatPercentage,
		}
	}
	if n := req.Note; n != nil {
		payload.Note = &routine.Note{
			Date: now,
			Body: n.Body,
		}
	}
	return payload
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case routine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case routine.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

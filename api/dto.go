/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Routine:
    RoutineDTO, ScheduledDayDTO, SaveRoutineRequest

  Activity:
    ActivityDTO, CompleteActivityRequest

  Outcomes:
    BloodPressureDTO, WeighInDTO, NoteDTO

  Regeneration:
    RegenerateResponseDTO, RegenerationRunDTO

DATE FORMATS:
  Calendar dates are "YYYY-MM-DD", times of day are "HH:mm", and full
  timestamps are RFC3339. Weigh-in values use shopspring decimal so
  81.25 round-trips exactly.

SEE ALSO:
  - handlers.go: Uses these types
  - routine/types.go: Domain model these map to
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/routine-engine/routine"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RoutineDTO represents a routine in API responses.
type RoutineDTO struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	StartDate     string            `json:"start_date"`
	FromTime      string            `json:"from_time"`
	ToTime        string            `json:"to_time"`
	Repeat        bool              `json:"repeat"`
	RepeatEnds    bool              `json:"repeat_ends"`
	EndDate       string            `json:"end_date,omitempty"`
	Cadence       string            `json:"cadence,omitempty"`
	OnComplete    string            `json:"on_complete"`
	ScheduledDays []ScheduledDayDTO `json:"scheduled_days"`
	CreatedAt     string            `json:"created_at,omitempty"`
	UpdatedAt     string            `json:"updated_at,omitempty"`
}

// ScheduledDayDTO is one day selector within a routine.
type ScheduledDayDTO struct {
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// SaveRoutineRequest is the request to create or update a routine.
type SaveRoutineRequest struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	StartDate     string            `json:"start_date"`
	FromTime      string            `json:"from_time"`
	ToTime        string            `json:"to_time"`
	Repeat        bool              `json:"repeat"`
	RepeatEnds    bool              `json:"repeat_ends"`
	EndDate       string            `json:"end_date,omitempty"`
	Cadence       string            `json:"cadence,omitempty"`
	OnComplete    string            `json:"on_complete,omitempty"`
	ScheduledDays []ScheduledDayDTO `json:"scheduled_days"`
}

// ActivityDTO represents one dated occurrence in API responses.
type ActivityDTO struct {
	ID                 int64  `json:"id"`
	RoutineID          int64  `json:"routine_id"`
	RoutineName        string `json:"routine_name"`
	RoutineDescription string `json:"routine_description,omitempty"`
	OnComplete         string `json:"on_complete"`
	Start              string `json:"start"`
	End                string `json:"end"`
	Complete           bool   `json:"complete"`
	Skipped            bool   `json:"skipped"`
}

// CompleteActivityRequest carries the optional outcome payload for a
// completion. At most one of the outcome fields should be set, matching
// the routine's on_complete kind. An empty body is fine for routines
// whose completion captures nothing.
type CompleteActivityRequest struct {
	BloodPressure *BloodPressureInput `json:"blood_pressure,omitempty"`
	WeighIn       *WeighInInput       `json:"weigh_in,omitempty"`
	Note          *NoteInput          `json:"note,omitempty"`
}

// BloodPressureInput is the client-submitted reading.
type BloodPressureInput struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
	Pulse     int `json:"pulse,omitempty"`
}

// WeighInInput is the client-submitted weigh-in.
type WeighInInput struct {
	Weight            decimal.Decimal `json:"weight"`
	BodyFatPercentage decimal.Decimal `json:"body_fat_percentage,omitempty"`
}

// NoteInput is the client-submitted note.
type NoteInput struct {
	Body string `json:"body"`
}

// BloodPressureDTO represents a stored reading.
type BloodPressureDTO struct {
	ID         int64  `json:"id"`
	ActivityID int64  `json:"activity_id"`
	Date       string `json:"date"`
	Systolic   int    `json:"systolic"`
	Diastolic  int    `json:"diastolic"`
	Pulse      int    `json:"pulse,omitempty"`
}

// WeighInDTO represents a stored weigh-in.
type WeighInDTO struct {
	ID                int64           `json:"id"`
	ActivityID        int64           `json:"activity_id"`
	Date              string          `json:"date"`
	Weight            decimal.Decimal `json:"weight"`
	BodyFatPercentage decimal.Decimal `json:"body_fat_percentage,omitempty"`
}

// NoteDTO represents a stored note.
type NoteDTO struct {
	ID         int64  `json:"id"`
	ActivityID int64  `json:"activity_id"`
	Date       string `json:"date"`
	Body       string `json:"body"`
}

// RegenerateResponseDTO is the response after rebuilding one routine.
type RegenerateResponseDTO struct {
	RoutineID int64 `json:"routine_id"`
	Created   int   `json:"created"`
}

// RegenerateAllResultDTO reports one routine's outcome in a bulk rebuild.
type RegenerateAllResultDTO struct {
	RoutineID   int64  `json:"routine_id"`
	RoutineName string `json:"routine_name"`
	Created     int    `json:"created"`
	Error       string `json:"error,omitempty"`
}

// RegenerationRunDTO represents one audit record of a rebuild.
type RegenerationRunDTO struct {
	ID          string `json:"id"`
	RoutineID   int64  `json:"routine_id"`
	Status      string `json:"status"`
	Created     int    `json:"created"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRoutineDTO(r *routine.Routine) RoutineDTO {
	dto := RoutineDTO{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		StartDate:   r.StartDate.Format(routine.DateLayout),
		FromTime:    r.FromTime,
		ToTime:      r.ToTime,
		Repeat:      r.Repeat,
		RepeatEnds:  r.RepeatEnds,
		Cadence:     string(r.Cadence),
		OnComplete:  string(r.OnComplete),
	}
	if r.HasEndDate() {
		dto.EndDate = r.EndDate.Format(routine.DateLayout)
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		dto.UpdatedAt = r.UpdatedAt.Format(time.RFC3339)
	}
	dto.ScheduledDays = make([]ScheduledDayDTO, len(r.ScheduledDays))
	for i, d := range r.ScheduledDays {
		dto.ScheduledDays[i] = ScheduledDayDTO{Label: d.Label, Active: d.Active}
	}
	return dto
}

func toActivityDTO(a routine.Activity) ActivityDTO {
	return ActivityDTO{
		ID:                 a.ID,
		RoutineID:          a.RoutineID,
		RoutineName:        a.RoutineName,
		RoutineDescription: a.RoutineDescription,
		OnComplete:         string(a.RoutineOnComplete),
		Start:              a.Start.Format(time.RFC3339),
		End:                a.End.Format(time.RFC3339),
		Complete:           a.Complete,
		Skipped:            a.Skipped,
	}
}

func toActivityDTOs(acts []routine.Activity) []ActivityDTO {
	dtos := make([]ActivityDTO, len(acts))
	for i, a := range acts {
		dtos[i] = toActivityDTO(a)
	}
	return dtos
}

func toRegenerationRunDTO(run routine.RegenerationRun) RegenerationRunDTO {
	dto := RegenerationRunDTO{
		ID:        run.ID,
		RoutineID: run.RoutineID,
		Status:    run.Status,
		Created:   run.Created,
		Error:     run.Error,
		StartedAt: run.StartedAt.Format(time.RFC3339),
	}
	if !run.CompletedAt.IsZero() {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

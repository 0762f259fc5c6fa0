/*
lifecycle.go - Activity lifecycle state machine and outcome routing

PURPOSE:
  Governs an individual activity's transitions among pending, complete, and
  skipped, and dispatches completion to the typed outcome capture flow the
  owning routine requires.

STATE MACHINE:
  Pending -> Complete, Pending -> Skipped. Both terminal states are
  re-enterable (Complete -> Skipped and vice versa); each toggle clears the
  other flag. There is no locked terminal state.

OUTCOME ROUTING:
  None            complete immediately, no outcome record
  BloodPressure / Note / WeighIn
                  caller supplies typed data; the outcome row (unique per
                  activity) is upserted and the activity completed in one
                  transaction
  Run             reserved; completes with no structured outcome
  anything else   UnconfiguredOutcomeError naming the routine

EDGE CASE:
  Toggling completion on an activity whose routine is concurrently being
  regenerated is undefined; the regeneration's unconditional delete wins.

SEE ALSO:
  - regenerate.go: The only other writer of activity rows
  - store.go: Outcome uniqueness contract
*/
package routine

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// OUTCOME ROUTES
// =============================================================================

// OutcomeRoute is the capture flow the caller must present before
// finalizing a completion.
type OutcomeRoute string

const (
	RouteImmediate     OutcomeRoute = "immediate" // no capture, complete now
	RouteBloodPressure OutcomeRoute = "blood-pressure"
	RouteNote          OutcomeRoute = "note"
	RouteWeighIn       OutcomeRoute = "weigh-in"
	RoutePlaceholder   OutcomeRoute = "placeholder" // reserved flows (Run)
)

// ResolveOutcomeRoute maps a routine's configured outcome kind to its
// capture flow. Pure; the routine name is only used for error context.
func ResolveOutcomeRoute(routineName string, kind OutcomeKind) (OutcomeRoute, error) {
	switch kind {
	case OutcomeNone:
		return RouteImmediate, nil
	case OutcomeBloodPressure:
		return RouteBloodPressure, nil
	case OutcomeNote:
		return RouteNote, nil
	case OutcomeWeighIn:
		return RouteWeighIn, nil
	case OutcomeRun:
		return RoutePlaceholder, nil
	default:
		return "", &UnconfiguredOutcomeError{RoutineName: routineName, Kind: kind}
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Lifecycle mutates activity state. It is the only component that toggles
// complete/skipped or links outcome records.
type Lifecycle struct {
	Store TxStore
}

func NewLifecycle(store TxStore) *Lifecycle {
	return &Lifecycle{Store: store}
}

// Complete marks an activity complete, clearing any skip. Pure state
// toggle; does not by itself create an outcome record.
func (l *Lifecycle) Complete(ctx context.Context, activityID int64) error {
	return l.Store.SetActivityState(ctx, activityID, true, false)
}

// Skip marks an activity skipped, clearing any completion.
func (l *Lifecycle) Skip(ctx context.Context, activityID int64) error {
	return l.Store.SetActivityState(ctx, activityID, false, true)
}

// CompleteWithOutcome finalizes a completion through the routine's
// configured capture flow. For capture routes the outcome row and the
// completion flag are written atomically; repeating the call with a new
// payload updates the existing outcome row in place (at most one outcome
// row per activity).
func (l *Lifecycle) CompleteWithOutcome(ctx context.Context, activityID int64, payload *OutcomePayload) error {
	act, err := l.Store.FindActivity(ctx, activityID)
	if err != nil {
		return err
	}
	route, err := ResolveOutcomeRoute(act.RoutineName, act.RoutineOnComplete)
	if err != nil {
		return err
	}

	switch route {
	case RouteImmediate, RoutePlaceholder:
		return l.Complete(ctx, activityID)

	case RouteBloodPressure:
		if payload == nil || payload.BloodPressure == nil {
			return fmt.Errorf("activity %d expects a blood pressure reading: %w", activityID, ErrMissingOutcomePayload)
		}
		rec := *payload.BloodPressure
		rec.ActivityID = activityID
		return l.Store.WithTx(ctx, func(s Store) error {
			if err := s.UpsertBloodPressureReading(ctx, &rec); err != nil {
				return err
			}
			return s.SetActivityState(ctx, activityID, true, false)
		})

	case RouteWeighIn:
		if payload == nil || payload.WeighIn == nil {
			return fmt.Errorf("activity %d expects a weigh-in: %w", activityID, ErrMissingOutcomePayload)
		}
		rec := *payload.WeighIn
		rec.ActivityID = activityID
		return l.Store.WithTx(ctx, func(s Store) error {
			if err := s.UpsertWeighIn(ctx, &rec); err != nil {
				return err
			}
			return s.SetActivityState(ctx, activityID, true, false)
		})

	case RouteNote:
		if payload == nil || payload.Note == nil {
			return fmt.Errorf("activity %d expects a note: %w", activityID, ErrMissingOutcomePayload)
		}
		rec := *payload.Note
		rec.ActivityID = activityID
		return l.Store.WithTx(ctx, func(s Store) error {
			if err := s.UpsertNote(ctx, &rec); err != nil {
				return err
			}
			return s.SetActivityState(ctx, activityID, true, false)
		})

	default:
		return &UnconfiguredOutcomeError{RoutineName: act.RoutineName, Kind: act.RoutineOnComplete}
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// ActivitiesInRange returns activities whose start falls in [from, to],
// filtered, ordered by start ascending. Result correctness depends on the
// invariant that complete and skipped are never simultaneously true.
func (l *Lifecycle) ActivitiesInRange(ctx context.Context, from, to time.Time, filter Filter) ([]Activity, error) {
	return l.Store.FindActivitiesInRange(ctx, from, to, filter)
}

// ActivitiesOn returns the full-day timeline for one calendar date.
func (l *Lifecycle) ActivitiesOn(ctx context.Context, date time.Time, filter Filter) ([]Activity, error) {
	dayStart := DateOnly(date)
	dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Second)
	return l.Store.FindActivitiesInRange(ctx, dayStart, dayEnd, filter)
}

/*
regenerate.go - Regeneration Controller

PURPOSE:
  Keeps a routine's activity set consistent with its current recurrence
  definition: delete every existing activity, re-materialize, batch-insert.

POLICY:
  Regeneration is destructive and unconditional. Completed and skipped
  activities are deleted along with pending ones; the surrounding app warns
  the user that rebuilding loses history.

ATOMICITY:
  Delete and insert run inside one WithTx boundary. A failure partway must
  not leave the routine with zero activities when it previously had some,
  nor with a mixed old/new set.

SEE ALSO:
  - materialize.go: Produces the instances persisted here
  - store.go: TxStore.WithTx
*/
package routine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generator orchestrates delete-and-rematerialize for routines.
type Generator struct {
	Store TxStore
}

func NewGenerator(store TxStore) *Generator {
	return &Generator{Store: store}
}

// Regenerate rebuilds the activity set for one routine and returns the
// number of activities created. Safe to call repeatedly: for a fixed
// routine definition the resulting {start, end} set is identical each time
// (completion history, however, is discarded).
func (g *Generator) Regenerate(ctx context.Context, routineID int64) (int, error) {
	run := RegenerationRun{
		ID:        uuid.NewString(),
		RoutineID: routineID,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	// Load and materialize before opening the write transaction so
	// validation failures reject without touching the activity set.
	r, err := g.Store.FindRoutine(ctx, routineID)
	if err != nil {
		return 0, err
	}
	instances, err := Materialize(r)
	if err != nil {
		return 0, err
	}

	err = g.Store.WithTx(ctx, func(s Store) error {
		if err := s.DeleteActivitiesForRoutine(ctx, routineID); err != nil {
			return fmt.Errorf("delete activities for routine %d: %w", routineID, err)
		}
		if len(instances) == 0 {
			return nil
		}
		if err := s.InsertActivities(ctx, routineID, instances); err != nil {
			return fmt.Errorf("insert activities for routine %d: %w", routineID, err)
		}
		return nil
	})

	run.CompletedAt = time.Now().UTC()
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
		g.Store.SaveRegenerationRun(ctx, run)
		return 0, err
	}

	run.Status = RunStatusCompleted
	run.Created = len(instances)
	if err := g.Store.SaveRegenerationRun(ctx, run); err != nil {
		return len(instances), fmt.Errorf("save regeneration run: %w", err)
	}
	return len(instances), nil
}

// RegenerateAll rebuilds every routine sequentially. A failure on one
// routine is recorded in its result and does not abort the others; each
// routine's own regeneration remains atomic.
func (g *Generator) RegenerateAll(ctx context.Context) ([]RegenerationResult, error) {
	routines, err := g.Store.ListRoutines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}

	results := make([]RegenerationResult, 0, len(routines))
	for i := range routines {
		r := &routines[i]
		created, err := g.Regenerate(ctx, r.ID)
		results = append(results, RegenerationResult{
			RoutineID:   r.ID,
			RoutineName: r.Name,
			Created:     created,
			Err:         err,
		})
	}
	return results, nil
}

// Reschedule applies a changed FromTime/ToTime window to the routine's
// pending activities in place, preserving their calendar dates and the
// completion history that a full regeneration would discard. Completed and
// skipped activities keep the times they were acted on.
func (g *Generator) Reschedule(ctx context.Context, routineID int64) (int, error) {
	r, err := g.Store.FindRoutine(ctx, routineID)
	if err != nil {
		return 0, err
	}
	acts, err := g.Store.FindActivitiesForRoutine(ctx, routineID)
	if err != nil {
		return 0, err
	}

	updated := 0
	err = g.Store.WithTx(ctx, func(s Store) error {
		for _, act := range acts {
			if !act.Pending() {
				continue
			}
			start, err := CombineDateAndTime(act.Start, r.FromTime)
			if err != nil {
				return fmt.Errorf("routine %d: %w", routineID, err)
			}
			end, err := CombineDateAndTime(act.End, r.ToTime)
			if err != nil {
				return fmt.Errorf("routine %d: %w", routineID, err)
			}
			if err := s.SetActivityTimes(ctx, act.ID, start, end); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/routine-engine/routine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	routines   map[int64]routine.Routine
	activities map[int64]routine.Activity
	bloodPress map[int64]routine.BloodPressureReading // keyed by activity id
	weighIns   map[int64]routine.WeighIn
	notes      map[int64]routine.Note
	runs       []routine.RegenerationRun

	nextRoutineID  int64
	nextDayID      int64
	nextActivityID int64
	nextOutcomeID  int64
}

func NewMemory() *Memory {
	return &Memory{
		routines:   make(map[int64]routine.Routine),
		activities: make(map[int64]routine.Activity),
		bloodPress: make(map[int64]routine.BloodPressureReading),
		weighIns:   make(map[int64]routine.WeighIn),
		notes:      make(map[int64]routine.Note),
	}
}

// =============================================================================
// ROUTINES
// =============================================================================

func (m *Memory) SaveRoutine(_ context.Context, r *routine.Routine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRoutineLocked(r)
}

func (m *Memory) saveRoutineLocked(r *routine.Routine) error {
	now := time.Now().UTC()
	if r.ID == 0 {
		m.nextRoutineID++
		r.ID = m.nextRoutineID
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	for i := range r.ScheduledDays {
		m.nextDayID++
		r.ScheduledDays[i].ID = m.nextDayID
		r.ScheduledDays[i].RoutineID = r.ID
	}
	m.routines[r.ID] = cloneRoutine(*r)
	return nil
}

func (m *Memory) FindRoutine(_ context.Context, id int64) (*routine.Routine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.routines[id]
	if !ok {
		return nil, routine.ErrRoutineNotFound
	}
	out := cloneRoutine(r)
	return &out, nil
}

func (m *Memory) ListRoutines(_ context.Context) ([]routine.Routine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]routine.Routine, 0, len(m.routines))
	for _, r := range m.routines {
		result = append(result, cloneRoutine(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) DeleteRoutine(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.routines[id]; !ok {
		return routine.ErrRoutineNotFound
	}
	delete(m.routines, id)
	// Cascade to activities and their outcomes.
	for actID, act := range m.activities {
		if act.RoutineID == id {
			delete(m.activities, actID)
			delete(m.bloodPress, actID)
			delete(m.weighIns, actID)
			delete(m.notes, actID)
		}
	}
	return nil
}

func cloneRoutine(r routine.Routine) routine.Routine {
	days := make([]routine.ScheduledDay, len(r.ScheduledDays))
	copy(days, r.ScheduledDays)
	r.ScheduledDays = days
	return r
}

// =============================================================================
// ACTIVITIES
// =============================================================================

func (m *Memory) InsertActivities(_ context.Context, routineID int64, instances []routine.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertActivitiesLocked(routineID, instances)
}

func (m *Memory) insertActivitiesLocked(routineID int64, instances []routine.Instance) error {
	if _, ok := m.routines[routineID]; !ok {
		return routine.ErrRoutineNotFound
	}
	now := time.Now().UTC()
	for _, inst := range instances {
		m.nextActivityID++
		m.activities[m.nextActivityID] = routine.Activity{
			ID:        m.nextActivityID,
			RoutineID: routineID,
			Start:     inst.Start,
			End:       inst.End,
			CreatedAt: now,
		}
	}
	return nil
}

func (m *Memory) DeleteActivitiesForRoutine(_ context.Context, routineID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteActivitiesLocked(routineID)
	return nil
}

func (m *Memory) deleteActivitiesLocked(routineID int64) {
	for id, act := range m.activities {
		if act.RoutineID == routineID {
			delete(m.activities, id)
			delete(m.bloodPress, id)
			delete(m.weighIns, id)
			delete(m.notes, id)
		}
	}
}

func (m *Memory) FindActivity(_ context.Context, id int64) (*routine.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	act, ok := m.activities[id]
	if !ok {
		return nil, routine.ErrActivityNotFound
	}
	m.attachRoutineSummary(&act)
	return &act, nil
}

func (m *Memory) FindActivitiesInRange(_ context.Context, from, to time.Time, filter routine.Filter) ([]routine.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []routine.Activity
	for _, act := range m.activities {
		if act.Start.Before(from) || act.Start.After(to) {
			continue
		}
		if !matchesFilter(act, filter) {
			continue
		}
		m.attachRoutineSummary(&act)
		result = append(result, act)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result, nil
}

func (m *Memory) FindActivitiesForRoutine(_ context.Context, routineID int64) ([]routine.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []routine.Activity
	for _, act := range m.activities {
		if act.RoutineID == routineID {
			m.attachRoutineSummary(&act)
			result = append(result, act)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result, nil
}

func (m *Memory) SetActivityState(_ context.Context, id int64, complete, skipped bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setActivityStateLocked(id, complete, skipped)
}

func (m *Memory) setActivityStateLocked(id int64, complete, skipped bool) error {
	act, ok := m.activities[id]
	if !ok {
		return routine.ErrActivityNotFound
	}
	act.Complete = complete
	act.Skipped = skipped
	m.activities[id] = act
	return nil
}

func (m *Memory) SetActivityTimes(_ context.Context, id int64, start, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	act, ok := m.activities[id]
	if !ok {
		return routine.ErrActivityNotFound
	}
	act.Start = start
	act.End = end
	m.activities[id] = act
	return nil
}

func (m *Memory) attachRoutineSummary(act *routine.Activity) {
	if r, ok := m.routines[act.RoutineID]; ok {
		act.RoutineName = r.Name
		act.RoutineDescription = r.Description
		act.RoutineOnComplete = r.OnComplete
	}
}

func matchesFilter(act routine.Activity, filter routine.Filter) bool {
	switch filter {
	case routine.FilterAvailable:
		return !act.Complete && !act.Skipped
	case routine.FilterComplete:
		return act.Complete
	case routine.FilterSkipped:
		return act.Skipped
	default:
		return true
	}
}

// =============================================================================
// OUTCOMES
// =============================================================================

func (m *Memory) UpsertBloodPressureReading(_ context.Context, rec *routine.BloodPressureReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.bloodPress[rec.ActivityID]; ok {
		rec.ID = existing.ID
	} else {
		m.nextOutcomeID++
		rec.ID = m.nextOutcomeID
	}
	m.bloodPress[rec.ActivityID] = *rec
	return nil
}

func (m *Memory) FindBloodPressureReadingByActivity(_ context.Context, activityID int64) (*routine.BloodPressureReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.bloodPress[activityID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) ListBloodPressureReadings(_ context.Context) ([]routine.BloodPressureReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]routine.BloodPressureReading, 0, len(m.bloodPress))
	for _, rec := range m.bloodPress {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) UpsertWeighIn(_ context.Context, rec *routine.WeighIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.weighIns[rec.ActivityID]; ok {
		rec.ID = existing.ID
	} else {
		m.nextOutcomeID++
		rec.ID = m.nextOutcomeID
	}
	m.weighIns[rec.ActivityID] = *rec
	return nil
}

func (m *Memory) FindWeighInByActivity(_ context.Context, activityID int64) (*routine.WeighIn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.weighIns[activityID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) ListWeighIns(_ context.Context) ([]routine.WeighIn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]routine.WeighIn, 0, len(m.weighIns))
	for _, rec := range m.weighIns {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) UpsertNote(_ context.Context, rec *routine.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.notes[rec.ActivityID]; ok {
		rec.ID = existing.ID
	} else {
		m.nextOutcomeID++
		rec.ID = m.nextOutcomeID
	}
	m.notes[rec.ActivityID] = *rec
	return nil
}

func (m *Memory) FindNoteByActivity(_ context.Context, activityID int64) (*routine.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.notes[activityID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) ListNotes(_ context.Context) ([]routine.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]routine.Note, 0, len(m.notes))
	for _, rec := range m.notes {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// =============================================================================
// REGENERATION RUNS
// =============================================================================

func (m *Memory) SaveRegenerationRun(_ context.Context, run routine.RegenerationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRegenerationRuns(_ context.Context, routineID int64) ([]routine.RegenerationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []routine.RegenerationRun
	for _, run := range m.runs {
		if routineID == 0 || run.RoutineID == routineID {
			result = append(result, run)
		}
	}
	return result, nil
}

// Reset clears all data. Counters keep advancing so ids stay unique
// across resets.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.routines = make(map[int64]routine.Routine)
	m.activities = make(map[int64]routine.Activity)
	m.bloodPress = make(map[int64]routine.BloodPressureReading)
	m.weighIns = make(map[int64]routine.WeighIn)
	m.notes = make(map[int64]routine.Note)
	m.runs = nil
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
// Transactions are simulated with a snapshot + restore on error.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the store; on error the pre-transaction state
// is restored, giving the same all-or-nothing semantics the SQLite store
// gets from BEGIN/ROLLBACK.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(routine.Store) error) error {
	tm.mu.Lock()
	snapshot := tm.snapshotLocked()
	tm.mu.Unlock()

	if err := fn(tm.Memory); err != nil {
		tm.mu.Lock()
		tm.restoreLocked(snapshot)
		tm.mu.Unlock()
		return err
	}
	return nil
}

type memorySnapshot struct {
	routines   map[int64]routine.Routine
	activities map[int64]routine.Activity
	bloodPress map[int64]routine.BloodPressureReading
	weighIns   map[int64]routine.WeighIn
	notes      map[int64]routine.Note
}

func (m *Memory) snapshotLocked() memorySnapshot {
	s := memorySnapshot{
		routines:   make(map[int64]routine.Routine, len(m.routines)),
		activities: make(map[int64]routine.Activity, len(m.activities)),
		bloodPress: make(map[int64]routine.BloodPressureReading, len(m.bloodPress)),
		weighIns:   make(map[int64]routine.WeighIn, len(m.weighIns)),
		notes:      make(map[int64]routine.Note, len(m.notes)),
	}
	for k, v := range m.routines {
		s.routines[k] = cloneRoutine(v)
	}
	for k, v := range m.activities {
		s.activities[k] = v
	}
	for k, v := range m.bloodPress {
		s.bloodPress[k] = v
	}
	for k, v := range m.weighIns {
		s.weighIns[k] = v
	}
	for k, v := range m.notes {
		s.notes[k] = v
	}
	return s
}

func (m *Memory) restoreLocked(s memorySnapshot) {
	m.routines = s.routines
	m.activities = s.activities
	m.bloodPress = s.bloodPress
	m.weighIns = s.weighIns
	m.notes = s.notes
}

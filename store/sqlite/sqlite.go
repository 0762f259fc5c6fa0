/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements routine.Store and routine.TxStore using SQLite. This is the
  production store for a single local user on a single device.

KEY TABLES:
  routines:                Recurrence templates
  scheduled_days:          Day selectors, cascade on routine delete
  activities:              Materialized occurrences, cascade on routine delete
  blood_pressure_readings,
  weigh_ins, notes:        Outcome records, one per activity (unique index)
  regeneration_runs:       Audit trail of rebuilds

CONSTRAINTS:
  - ON DELETE CASCADE from routines to scheduled_days and activities, and
    from activities to the outcome tables
  - UNIQUE(activity_id) on every outcome table enforces at most one outcome
    row per completed activity
  - CHECK on activities forbids complete and skipped being set together

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WAL mode keeps readers from blocking
  during regeneration writes.

USAGE:
  store, err := sqlite.New("./data/routines.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  gen := routine.NewGenerator(store)

SEE ALSO:
  - routine/store.go: Interface definitions
  - routine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/routine-engine/routine"
)

// Store implements routine.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: :memory: databases are per-connection, and the
	// store serializes access through its mutex anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS routines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		from_time TEXT NOT NULL,
		to_time TEXT NOT NULL,
		end_date TEXT,
		repeat INTEGER NOT NULL DEFAULT 0,
		repeat_ends INTEGER NOT NULL DEFAULT 0,
		repeat_cadence TEXT,
		on_complete TEXT NOT NULL DEFAULT 'None',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scheduled_days (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		routine_id INTEGER NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_scheduled_days_routine
		ON scheduled_days(routine_id);

	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		routine_id INTEGER NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
		start TEXT NOT NULL,
		end TEXT NOT NULL,
		complete INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		-- complete and skipped are mutually exclusive
		CHECK (NOT (complete = 1 AND skipped = 1))
	);

	CREATE INDEX IF NOT EXISTS idx_activities_routine
		ON activities(routine_id);

	-- Timeline queries are range scans on start (hot path)
	CREATE INDEX IF NOT EXISTS idx_activities_start
		ON activities(start);

	CREATE TABLE IF NOT EXISTS blood_pressure_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		activity_id INTEGER NOT NULL UNIQUE REFERENCES activities(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		systolic INTEGER NOT NULL,
		diastolic INTEGER NOT NULL,
		pulse INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS weigh_ins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		activity_id INTEGER NOT NULL UNIQUE REFERENCES activities(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		weight TEXT NOT NULL,
		body_fat_percentage TEXT
	);

	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		activity_id INTEGER NOT NULL UNIQUE REFERENCES activities(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		body TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS regeneration_runs (
		id TEXT PRIMARY KEY,
		routine_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		created_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		completed_at TEXT,
		CHECK (status IN ('running', 'completed', 'failed'))
	);

	CREATE INDEX IF NOT EXISTS idx_regeneration_runs_routine
		ON regeneration_runs(routine_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ROUTINE STORE
// =============================================================================

// SaveRoutine inserts or updates a routine with its scheduled days in one
// transaction. An update replaces the scheduled-day set, matching the
// authoring flow where the selector grid is submitted whole.
func (s *Store) SaveRoutine(ctx context.Context, r *routine.Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	var endDate any
	if r.HasEndDate() {
		endDate = r.EndDate.Format(routine.DateLayout)
	}
	var cadence any
	if r.Repeat {
		cadence = string(r.Cadence)
	}
	onComplete := r.OnComplete
	if onComplete == "" {
		onComplete = routine.OutcomeNone
	}

	if r.ID == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO routines
			(name, description, start_date, from_time, to_time, end_date,
			 repeat, repeat_ends, repeat_cadence, on_complete, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Name, r.Description, r.StartDate.Format(routine.DateLayout),
			r.FromTime, r.ToTime, endDate,
			r.Repeat, r.RepeatEnds, cadence, string(onComplete), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert routine: %w", err)
		}
		r.ID, _ = res.LastInsertId()
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE routines SET
				name = ?, description = ?, start_date = ?, from_time = ?,
				to_time = ?, end_date = ?, repeat = ?, repeat_ends = ?,
				repeat_cadence = ?, on_complete = ?, updated_at = ?
			WHERE id = ?`,
			r.Name, r.Description, r.StartDate.Format(routine.DateLayout),
			r.FromTime, r.ToTime, endDate,
			r.Repeat, r.RepeatEnds, cadence, string(onComplete), now, r.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update routine: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return routine.ErrRoutineNotFound
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM scheduled_days WHERE routine_id = ?", r.ID); err != nil {
			return fmt.Errorf("failed to replace scheduled days: %w", err)
		}
	}

	for i := range r.ScheduledDays {
		d := &r.ScheduledDays[i]
		d.RoutineID = r.ID
		res, err := tx.ExecContext(ctx,
			"INSERT INTO scheduled_days (routine_id, label, active, position) VALUES (?, ?, ?, ?)",
			r.ID, d.Label, d.Active, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scheduled day: %w", err)
		}
		d.ID, _ = res.LastInsertId()
	}

	return tx.Commit()
}

// FindRoutine returns a routine with its scheduled days.
func (s *Store) FindRoutine(ctx context.Context, id int64) (*routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, start_date, from_time, to_time, end_date,
		       repeat, repeat_ends, repeat_cadence, on_complete, created_at, updated_at
		FROM routines WHERE id = ?`, id)

	r, err := scanRoutine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, routine.ErrRoutineNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadScheduledDays(ctx, s.db, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRoutines returns all routines with their scheduled days, by name.
func (s *Store) ListRoutines(ctx context.Context) ([]routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, start_date, from_time, to_time, end_date,
		       repeat, repeat_ends, repeat_cadence, on_complete, created_at, updated_at
		FROM routines ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query routines: %w", err)
	}
	defer rows.Close()

	var routines []routine.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, err
		}
		routines = append(routines, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range routines {
		if err := s.loadScheduledDays(ctx, s.db, &routines[i]); err != nil {
			return nil, err
		}
	}
	return routines, nil
}

// DeleteRoutine removes a routine; scheduled days and activities cascade.
func (s *Store) DeleteRoutine(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM routines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return routine.ErrRoutineNotFound
	}
	return nil
}

func (s *Store) loadScheduledDays(ctx context.Context, db dbtx, r *routine.Routine) error {
	rows, err := db.QueryContext(ctx,
		"SELECT id, routine_id, label, active FROM scheduled_days WHERE routine_id = ? ORDER BY position ASC",
		r.ID)
	if err != nil {
		return fmt.Errorf("failed to query scheduled days: %w", err)
	}
	defer rows.Close()

	r.ScheduledDays = nil
	for rows.Next() {
		var d routine.ScheduledDay
		if err := rows.Scan(&d.ID, &d.RoutineID, &d.Label, &d.Active); err != nil {
			return fmt.Errorf("failed to scan scheduled day: %w", err)
		}
		r.ScheduledDays = append(r.ScheduledDays, d)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoutine(row rowScanner) (*routine.Routine, error) {
	var (
		r         routine.Routine
		startDate string
		endDate   sql.NullString
		cadence   sql.NullString
		onComp    string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&r.ID, &r.Name, &r.Description, &startDate, &r.FromTime, &r.ToTime,
		&endDate, &r.Repeat, &r.RepeatEnds, &cadence, &onComp, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.StartDate, _ = time.Parse(routine.DateLayout, startDate)
	if endDate.Valid {
		r.EndDate, _ = time.Parse(routine.DateLayout, endDate.String)
	}
	r.Cadence = routine.Cadence(cadence.String)
	r.OnComplete = routine.OutcomeKind(onComp)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

// =============================================================================
// ACTIVITY STORE
// =============================================================================

// InsertActivities batch-inserts pending activities for a routine.
func (s *Store) InsertActivities(ctx context.Context, routineID int64, instances []routine.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertActivities(ctx, s.db, routineID, instances)
}

func insertActivities(ctx context.Context, db dbtx, routineID int64, instances []routine.Instance) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, inst := range instances {
		_, err := db.ExecContext(ctx, `
			INSERT INTO activities (routine_id, start, end, complete, skipped, created_at)
			VALUES (?, ?, ?, 0, 0, ?)`,
			routineID,
			inst.Start.Format(time.RFC3339),
			inst.End.Format(time.RFC3339),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert activity: %w", err)
		}
	}
	return nil
}

// DeleteActivitiesForRoutine removes every activity owned by the routine.
func (s *Store) DeleteActivitiesForRoutine(ctx context.Context, routineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return deleteActivitiesForRoutine(ctx, s.db, routineID)
}

func deleteActivitiesForRoutine(ctx context.Context, db dbtx, routineID int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM activities WHERE routine_id = ?", routineID)
	if err != nil {
		return fmt.Errorf("failed to delete activities: %w", err)
	}
	return nil
}

const activitySelect = `
	SELECT a.id, a.routine_id, a.start, a.end, a.complete, a.skipped, a.created_at,
	       r.name, r.description, r.on_complete
	FROM activities a
	JOIN routines r ON r.id = a.routine_id
`

// FindActivity returns one activity with its routine summary.
func (s *Store) FindActivity(ctx context.Context, id int64) (*routine.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, activitySelect+"WHERE a.id = ?", id)
	act, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, routine.ErrActivityNotFound
	}
	if err != nil {
		return nil, err
	}
	return act, nil
}

// FindActivitiesInRange returns activities whose start falls in [from, to],
// filtered, ordered by start ascending.
func (s *Store) FindActivitiesInRange(ctx context.Context, from, to time.Time, filter routine.Filter) ([]routine.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := activitySelect + "WHERE a.start >= ? AND a.start <= ?"
	args := []any{from.Format(time.RFC3339), to.Format(time.RFC3339)}

	switch filter {
	case routine.FilterAvailable:
		query += " AND a.complete = 0 AND a.skipped = 0"
	case routine.FilterComplete:
		query += " AND a.complete = 1"
	case routine.FilterSkipped:
		query += " AND a.skipped = 1"
	}
	query += " ORDER BY a.start ASC"

	return s.queryActivities(ctx, query, args...)
}

// FindActivitiesForRoutine returns a routine's activities by start ascending.
func (s *Store) FindActivitiesForRoutine(ctx context.Context, routineID int64) ([]routine.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryActivities(ctx, activitySelect+"WHERE a.routine_id = ? ORDER BY a.start ASC", routineID)
}

// SetActivityState sets the complete/skipped pair on one activity. The
// schema CHECK rejects both flags set together.
func (s *Store) SetActivityState(ctx context.Context, id int64, complete, skipped bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return setActivityState(ctx, s.db, id, complete, skipped)
}

func setActivityState(ctx context.Context, db dbtx, id int64, complete, skipped bool) error {
	res, err := db.ExecContext(ctx,
		"UPDATE activities SET complete = ?, skipped = ? WHERE id = ?",
		complete, skipped, id)
	if err != nil {
		return fmt.Errorf("failed to update activity state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return routine.ErrActivityNotFound
	}
	return nil
}

// SetActivityTimes rewrites one activity's start/end timestamps.
func (s *Store) SetActivityTimes(ctx context.Context, id int64, start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return setActivityTimes(ctx, s.db, id, start, end)
}

func setActivityTimes(ctx context.Context, db dbtx, id int64, start, end time.Time) error {
	res, err := db.ExecContext(ctx,
		"UPDATE activities SET start = ?, end = ? WHERE id = ?",
		start.Format(time.RFC3339), end.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update activity times: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return routine.ErrActivityNotFound
	}
	return nil
}

func (s *Store) queryActivities(ctx context.Context, query string, args ...any) ([]routine.Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []routine.Activity
	for rows.Next() {
		act, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *act)
	}
	return activities, rows.Err()
}

func scanActivity(row rowScanner) (*routine.Activity, error) {
	var (
		act        routine.Activity
		start      string
		end        string
		createdAt  string
		onComplete string
	)
	err := row.Scan(&act.ID, &act.RoutineID, &start, &end, &act.Complete, &act.Skipped,
		&createdAt, &act.RoutineName, &act.RoutineDescription, &onComplete)
	if err != nil {
		return nil, err
	}

	act.Start, _ = time.Parse(time.RFC3339, start)
	act.End, _ = time.Parse(time.RFC3339, end)
	act.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	act.RoutineOnComplete = routine.OutcomeKind(onComplete)
	return &act, nil
}

// =============================================================================
// OUTCOME STORES - One row per activity, upsert keyed on activity_id
// =============================================================================

// UpsertBloodPressureReading creates or replaces the reading linked to the
// payload's activity.
func (s *Store) UpsertBloodPressureReading(ctx context.Context, rec *routine.BloodPressureReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return upsertBloodPressureReading(ctx, s.db, rec)
}

func upsertBloodPressureReading(ctx context.Context, db dbtx, rec *routine.BloodPressureReading) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO blood_pressure_readings (activity_id, date, systolic, diastolic, pulse)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(activity_id) DO UPDATE SET
			date = excluded.date,
			systolic = excluded.systolic,
			diastolic = excluded.diastolic,
			pulse = excluded.pulse`,
		rec.ActivityID, rec.Date.Format(time.RFC3339), rec.Systolic, rec.Diastolic, rec.Pulse)
	if err != nil {
		return fmt.Errorf("failed to upsert blood pressure reading: %w", err)
	}
	return nil
}

// FindBloodPressureReadingByActivity returns the reading for an activity,
// or nil when none exists.
func (s *Store) FindBloodPressureReadingByActivity(ctx context.Context, activityID int64) (*routine.BloodPressureReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec  routine.BloodPressureReading
		date string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, activity_id, date, systolic, diastolic, pulse FROM blood_pressure_readings WHERE activity_id = ?",
		activityID,
	).Scan(&rec.ID, &rec.ActivityID, &date, &rec.Systolic, &rec.Diastolic, &rec.Pulse)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Date, _ = time.Parse(time.RFC3339, date)
	return &rec, nil
}

// ListBloodPressureReadings returns all readings ordered by date ascending.
func (s *Store) ListBloodPressureReadings(ctx context.Context) ([]routine.BloodPressureReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, activity_id, date, systolic, diastolic, pulse FROM blood_pressure_readings ORDER BY date ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []routine.BloodPressureReading
	for rows.Next() {
		var (
			rec  routine.BloodPressureReading
			date string
		)
		if err := rows.Scan(&rec.ID, &rec.ActivityID, &date, &rec.Systolic, &rec.Diastolic, &rec.Pulse); err != nil {
			return nil, err
		}
		rec.Date, _ = time.Parse(time.RFC3339, date)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpsertWeighIn creates or replaces the weigh-in linked to the payload's
// activity. Decimal values are stored as text to keep them exact.
func (s *Store) UpsertWeighIn(ctx context.Context, rec *routine.WeighIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return upsertWeighIn(ctx, s.db, rec)
}

func upsertWeighIn(ctx context.Context, db dbtx, rec *routine.WeighIn) error {
	var bodyFat any
	if !rec.BodyFatPercentage.IsZero() {
		bodyFat = rec.BodyFatPercentage.String()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO weigh_ins (activity_id, date, weight, body_fat_percentage)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(activity_id) DO UPDATE SET
			date = excluded.date,
			weight = excluded.weight,
			body_fat_percentage = excluded.body_fat_percentage`,
		rec.ActivityID, rec.Date.Format(time.RFC3339), rec.Weight.String(), bodyFat)
	if err != nil {
		return fmt.Errorf("failed to upsert weigh-in: %w", err)
	}
	return nil
}

// FindWeighInByActivity returns the weigh-in for an activity, or nil.
func (s *Store) FindWeighInByActivity(ctx context.Context, activityID int64) (*routine.WeighIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec     routine.WeighIn
		date    string
		weight  string
		bodyFat sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, activity_id, date, weight, body_fat_percentage FROM weigh_ins WHERE activity_id = ?",
		activityID,
	).Scan(&rec.ID, &rec.ActivityID, &date, &weight, &bodyFat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Date, _ = time.Parse(time.RFC3339, date)
	rec.Weight = mustDecimal(weight)
	if bodyFat.Valid {
		rec.BodyFatPercentage = mustDecimal(bodyFat.String)
	}
	return &rec, nil
}

// ListWeighIns returns all weigh-ins ordered by date ascending.
func (s *Store) ListWeighIns(ctx context.Context) ([]routine.WeighIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, activity_id, date, weight, body_fat_percentage FROM weigh_ins ORDER BY date ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []routine.WeighIn
	for rows.Next() {
		var (
			rec     routine.WeighIn
			date    string
			weight  string
			bodyFat sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.ActivityID, &date, &weight, &bodyFat); err != nil {
			return nil, err
		}
		rec.Date, _ = time.Parse(time.RFC3339, date)
		rec.Weight = mustDecimal(weight)
		if bodyFat.Valid {
			rec.BodyFatPercentage = mustDecimal(bodyFat.String)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpsertNote creates or replaces the note linked to the payload's activity.
func (s *Store) UpsertNote(ctx context.Context, rec *routine.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return upsertNote(ctx, s.db, rec)
}

func upsertNote(ctx context.Context, db dbtx, rec *routine.Note) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO notes (activity_id, date, body)
		VALUES (?, ?, ?)
		ON CONFLICT(activity_id) DO UPDATE SET
			date = excluded.date,
			body = excluded.body`,
		rec.ActivityID, rec.Date.Format(time.RFC3339), rec.Body)
	if err != nil {
		return fmt.Errorf("failed to upsert note: %w", err)
	}
	return nil
}

// FindNoteByActivity returns the note for an activity, or nil.
func (s *Store) FindNoteByActivity(ctx context.Context, activityID int64) (*routine.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec  routine.Note
		date string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, activity_id, date, body FROM notes WHERE activity_id = ?",
		activityID,
	).Scan(&rec.ID, &rec.ActivityID, &date, &rec.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Date, _ = time.Parse(time.RFC3339, date)
	return &rec, nil
}

// ListNotes returns all notes ordered by date ascending.
func (s *Store) ListNotes(ctx context.Context) ([]routine.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, activity_id, date, body FROM notes ORDER BY date ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []routine.Note
	for rows.Next() {
		var (
			rec  routine.Note
			date string
		)
		if err := rows.Scan(&rec.ID, &rec.ActivityID, &date, &rec.Body); err != nil {
			return nil, err
		}
		rec.Date, _ = time.Parse(time.RFC3339, date)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// REGENERATION RUNS
// =============================================================================

// SaveRegenerationRun upserts one regeneration audit record.
func (s *Store) SaveRegenerationRun(ctx context.Context, run routine.RegenerationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt any
	if !run.CompletedAt.IsZero() {
		completedAt = run.CompletedAt.Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO regeneration_runs (id, routine_id, status, created_count, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			created_count = excluded.created_count,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		run.ID, run.RoutineID, run.Status, run.Created, run.Error,
		run.StartedAt.Format(time.RFC3339), completedAt)
	if err != nil {
		return fmt.Errorf("failed to save regeneration run: %w", err)
	}
	return nil
}

// ListRegenerationRuns returns runs for one routine, or all when
// routineID is zero, newest first.
func (s *Store) ListRegenerationRuns(ctx context.Context, routineID int64) ([]routine.RegenerationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, routine_id, status, created_count, error, started_at, completed_at
		FROM regeneration_runs`
	var args []any
	if routineID != 0 {
		query += " WHERE routine_id = ?"
		args = append(args, routineID)
	}
	query += " ORDER BY started_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []routine.RegenerationRun
	for rows.Next() {
		var (
			run         routine.RegenerationRun
			startedAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.RoutineID, &run.Status, &run.Created, &run.Error, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if completedAt.Valid {
			run.CompletedAt, _ = time.Parse(time.RFC3339, completedAt.String)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (routine.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. Writes issued
// through the passed Store hit the transaction; reads fall through to the
// parent connection.
func (s *Store) WithTx(ctx context.Context, fn func(store routine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{tx: sqlTx, parent: s}
	if err := fn(txStore); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes the writes the engine issues inside WithTx through the
// open transaction. It holds the parent's lock for its whole lifetime, so
// delegated reads skip re-locking.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) InsertActivities(ctx context.Context, routineID int64, instances []routine.Instance) error {
	return insertActivities(ctx, ts.tx, routineID, instances)
}

func (ts *txStore) DeleteActivitiesForRoutine(ctx context.Context, routineID int64) error {
	return deleteActivitiesForRoutine(ctx, ts.tx, routineID)
}

func (ts *txStore) SetActivityState(ctx context.Context, id int64, complete, skipped bool) error {
	return setActivityState(ctx, ts.tx, id, complete, skipped)
}

func (ts *txStore) SetActivityTimes(ctx context.Context, id int64, start, end time.Time) error {
	return setActivityTimes(ctx, ts.tx, id, start, end)
}

func (ts *txStore) UpsertBloodPressureReading(ctx context.Context, rec *routine.BloodPressureReading) error {
	return upsertBloodPressureReading(ctx, ts.tx, rec)
}

func (ts *txStore) UpsertWeighIn(ctx context.Context, rec *routine.WeighIn) error {
	return upsertWeighIn(ctx, ts.tx, rec)
}

func (ts *txStore) UpsertNote(ctx context.Context, rec *routine.Note) error {
	return upsertNote(ctx, ts.tx, rec)
}

func (ts *txStore) SaveRoutine(ctx context.Context, r *routine.Routine) error {
	return fmt.Errorf("SaveRoutine is not supported inside WithTx")
}

func (ts *txStore) FindRoutine(ctx context.Context, id int64) (*routine.Routine, error) {
	row := ts.tx.QueryRowContext(ctx, `
		SELECT id, name, description, start_date, from_time, to_time, end_date,
		       repeat, repeat_ends, repeat_cadence, on_complete, created_at, updated_at
		FROM routines WHERE id = ?`, id)
	r, err := scanRoutine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, routine.ErrRoutineNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := ts.parent.loadScheduledDays(ctx, ts.tx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (ts *txStore) ListRoutines(ctx context.Context) ([]routine.Routine, error) {
	return nil, fmt.Errorf("ListRoutines is not supported inside WithTx")
}

func (ts *txStore) DeleteRoutine(ctx context.Context, id int64) error {
	res, err := ts.tx.ExecContext(ctx, "DELETE FROM routines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return routine.ErrRoutineNotFound
	}
	return nil
}

func (ts *txStore) FindActivity(ctx context.Context, id int64) (*routine.Activity, error) {
	row := ts.tx.QueryRowContext(ctx, activitySelect+"WHERE a.id = ?", id)
	act, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, routine.ErrActivityNotFound
	}
	if err != nil {
		return nil, err
	}
	return act, nil
}

func (ts *txStore) FindActivitiesInRange(ctx context.Context, from, to time.Time, filter routine.Filter) ([]routine.Activity, error) {
	return nil, fmt.Errorf("FindActivitiesInRange is not supported inside WithTx")
}

func (ts *txStore) FindActivitiesForRoutine(ctx context.Context, routineID int64) ([]routine.Activity, error) {
	return nil, fmt.Errorf("FindActivitiesForRoutine is not supported inside WithTx")
}

func (ts *txStore) FindBloodPressureReadingByActivity(ctx context.Context, activityID int64) (*routine.BloodPressureReading, error) {
	return nil, fmt.Errorf("FindBloodPressureReadingByActivity is not supported inside WithTx")
}

func (ts *txStore) ListBloodPressureReadings(ctx context.Context) ([]routine.BloodPressureReading, error) {
	return nil, fmt.Errorf("ListBloodPressureReadings is not supported inside WithTx")
}

func (ts *txStore) FindWeighInByActivity(ctx context.Context, activityID int64) (*routine.WeighIn, error) {
	return nil, fmt.Errorf("FindWeighInByActivity is not supported inside WithTx")
}

func (ts *txStore) ListWeighIns(ctx context.Context) ([]routine.WeighIn, error) {
	return nil, fmt.Errorf("ListWeighIns is not supported inside WithTx")
}

func (ts *txStore) FindNoteByActivity(ctx context.Context, activityID int64) (*routine.Note, error) {
	return nil, fmt.Errorf("FindNoteByActivity is not supported inside WithTx")
}

func (ts *txStore) ListNotes(ctx context.Context) ([]routine.Note, error) {
	return nil, fmt.Errorf("ListNotes is not supported inside WithTx")
}

func (ts *txStore) SaveRegenerationRun(ctx context.Context, run routine.RegenerationRun) error {
	return fmt.Errorf("SaveRegenerationRun is not supported inside WithTx")
}

func (ts *txStore) ListRegenerationRuns(ctx context.Context, routineID int64) ([]routine.RegenerationRun, error) {
	return nil, fmt.Errorf("ListRegenerationRuns is not supported inside WithTx")
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"blood_pressure_readings", "weigh_ins", "notes", "activities", "scheduled_days", "regeneration_runs", "routines"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

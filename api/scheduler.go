/*
scheduler.go - Automated regeneration and reminder scheduler

PURPOSE:
  Runs the two recurring jobs the engine needs:
  - Annual rebuild: open-ended routines only materialize through Dec 31 of
    their start year, so every New Year their activity sets must be rebuilt
    to cover the new year.
  - Morning scan: collects the day's pending activities and hands them to
    a Reminder for notification.

DESIGN:
  - Uses robfig/cron for the job clock (standard 5-field cron specs)
  - Jobs log but never panic; a failed routine rebuild is recorded in
    regeneration_runs and the sweep continues
  - Reminder is an interface so notification transports stay pluggable;
    the default just logs

CONFIGURATION:
  - RebuildSpec: cron spec for the annual rebuild (default: Jan 1 00:05)
  - ReminderSpec: cron spec for the morning scan (default: 07:00 daily)

USAGE:
  scheduler := NewScheduler(store)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - routine/regenerate.go: Rebuild semantics
  - handlers.go: RegenerateAll endpoint (manual rebuild)
*/
package api

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/routine-engine/routine"
)

// Reminder receives the day's pending activities each morning.
type Reminder interface {
	Remind(ctx context.Context, activities []routine.Activity) error
}

// LogReminder writes reminders to the process log. It is the default
// transport and the fallback when nothing else is configured.
type LogReminder struct{}

func (LogReminder) Remind(ctx context.Context, activities []routine.Activity) error {
	for _, act := range activities {
		log.Printf("[Reminder] %s at %s", act.RoutineName, act.Start.Format("15:04"))
	}
	return nil
}

// Scheduler owns the cron jobs for annual rebuilds and morning reminders.
type Scheduler struct {
	Store        routine.TxStore
	Generator    *routine.Generator
	Lifecycle    *routine.Lifecycle
	Reminder     Reminder
	RebuildSpec  string
	ReminderSpec string

	cron *cron.Cron
}

// NewScheduler creates a scheduler with default specs and a log reminder.
func NewScheduler(store routine.TxStore) *Scheduler {
	return &Scheduler{
		Store:        store,
		Generator:    routine.NewGenerator(store),
		Lifecycle:    routine.NewLifecycle(store),
		Reminder:     LogReminder{},
		RebuildSpec:  "5 0 1 1 *",
		ReminderSpec: "0 7 * * *",
	}
}

// Start registers the jobs and begins the cron clock.
func (s *Scheduler) Start() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc(s.RebuildSpec, s.rebuildOpenEnded); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.ReminderSpec, s.morningScan); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[Scheduler] Started (rebuild %q, reminders %q)", s.RebuildSpec, s.ReminderSpec)
	return nil
}

// Stop halts the cron clock and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Scheduler] Stopped")
}

// rebuildOpenEnded regenerates every open-ended repeating routine so its
// activity set covers the current year.
func (s *Scheduler) rebuildOpenEnded() {
	ctx := context.Background()

	routines, err := s.Store.ListRoutines(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing routines for rebuild: %v", err)
		return
	}

	rebuilt := 0
	for i := range routines {
		r := &routines[i]
		if !r.Repeat || r.RepeatEnds {
			continue
		}
		// Re-anchor the open-ended horizon to the new year.
		r.StartDate = routine.DateOnly(time.Now())
		if err := s.Store.SaveRoutine(ctx, r); err != nil {
			log.Printf("[Scheduler] Error re-anchoring routine %d: %v", r.ID, err)
			continue
		}
		created, err := s.Generator.Regenerate(ctx, r.ID)
		if err != nil {
			log.Printf("[Scheduler] Error rebuilding routine %d (%s): %v", r.ID, r.Name, err)
			continue
		}
		log.Printf("[Scheduler] Rebuilt routine %d (%s): %d activities", r.ID, r.Name, created)
		rebuilt++
	}

	if rebuilt > 0 {
		log.Printf("[Scheduler] Annual rebuild completed: %d routines", rebuilt)
	}
}

// morningScan hands today's pending activities to the reminder.
func (s *Scheduler) morningScan() {
	ctx := context.Background()

	acts, err := s.Lifecycle.ActivitiesOn(ctx, time.Now(), routine.FilterAvailable)
	if err != nil {
		log.Printf("[Scheduler] Error scanning today's activities: %v", err)
		return
	}
	if len(acts) == 0 {
		return
	}

	if err := s.Reminder.Remind(ctx, acts); err != nil {
		log.Printf("[Scheduler] Error sending reminders: %v", err)
	}
}

// RunRebuildNow triggers an immediate rebuild sweep (for testing/admin).
func (s *Scheduler) RunRebuildNow() {
	s.rebuildOpenEnded()
}

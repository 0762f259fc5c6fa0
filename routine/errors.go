/*
errors.go - Centralized error types for the routine engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; structured variants carry the
  routine or activity context needed for diagnosability.

ERROR CATEGORIES:
  1. Validation errors - Malformed recurrence definitions, rejected before
     any write occurs (missing end date, bad yearly selector)
  2. Not-found errors - Operations against absent routines/activities
  3. Programming errors - Cadence or outcome values outside the known sets;
     always fatal, never silently ignored

SEE ALSO:
  - materialize.go: Raises validation errors
  - lifecycle.go: Raises UnconfiguredOutcomeError
*/
package routine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingEndDate is returned when a one-time or bounded recurrence
	// lacks its required end date. Surfaced as a validation failure.
	ErrMissingEndDate = errors.New("missing end date")

	// ErrRoutineNotFound is returned when an operation references a
	// nonexistent routine id.
	ErrRoutineNotFound = errors.New("routine not found")

	// ErrActivityNotFound is returned when an operation references a
	// nonexistent activity id.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrInvalidYearlySelector is returned when a yearly routine's single
	// scheduled-day label does not parse as MM/dd.
	ErrInvalidYearlySelector = errors.New("invalid yearly selector")

	// ErrUnconfiguredOutcome is returned when a routine's OnComplete value
	// has no known capture flow.
	ErrUnconfiguredOutcome = errors.New("unconfigured outcome")

	// ErrUnsupportedCadence is returned for a cadence outside the known
	// four. This is a programming/config error, not recoverable at runtime.
	ErrUnsupportedCadence = errors.New("unsupported repeat cadence")

	// ErrMissingOutcomePayload is returned when a completion requires typed
	// outcome data and none was supplied.
	ErrMissingOutcomePayload = errors.New("missing outcome payload")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingEndDateError identifies the routine missing its end date.
type MissingEndDateError struct {
	RoutineID int64
}

func (e *MissingEndDateError) Error() string {
	return fmt.Sprintf("routine %d requires an end date (not marked as never ending)", e.RoutineID)
}

func (e *MissingEndDateError) Unwrap() error { return ErrMissingEndDate }

// InvalidYearlySelectorError identifies the unparseable MM/dd label.
type InvalidYearlySelectorError struct {
	RoutineID int64
	Label     string
}

func (e *InvalidYearlySelectorError) Error() string {
	return fmt.Sprintf("routine %d yearly selector %q does not parse as MM/dd", e.RoutineID, e.Label)
}

func (e *InvalidYearlySelectorError) Unwrap() error { return ErrInvalidYearlySelector }

// UnconfiguredOutcomeError names the offending routine for diagnosability.
type UnconfiguredOutcomeError struct {
	RoutineName string
	Kind        OutcomeKind
}

func (e *UnconfiguredOutcomeError) Error() string {
	return fmt.Sprintf("unconfigured outcome %q on routine %q", e.Kind, e.RoutineName)
}

func (e *UnconfiguredOutcomeError) Unwrap() error { return ErrUnconfiguredOutcome }

// UnsupportedCadenceError identifies a cadence value outside the known set.
type UnsupportedCadenceError struct {
	Cadence Cadence
}

func (e *UnsupportedCadenceError) Error() string {
	return fmt.Sprintf("unsupported repeat cadence: %q", e.Cadence)
}

func (e *UnsupportedCadenceError) Unwrap() error { return ErrUnsupportedCadence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoutineNotFound) || errors.Is(err, ErrActivityNotFound)
}

// IsValidation returns true if the error is due to a malformed recurrence
// definition. Validation errors are rejected before any write occurs.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingEndDate) ||
		errors.Is(err, ErrInvalidYearlySelector) ||
		errors.Is(err, ErrMissingOutcomePayload) ||
		errors.Is(err, ErrUnconfiguredOutcome) ||
		errors.Is(err, ErrUnsupportedCadence)
}

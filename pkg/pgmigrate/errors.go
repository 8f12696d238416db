package pgmigrate

import (
	"errors"
	"fmt"
)

var (
	// ErrLoadFailure wraps any error returned because one or more
	// migrations failed to load. Use errors.Is against this sentinel, or
	// errors.As against *LoadError for the full report.
	ErrLoadFailure = errors.New("pgmigrate: load failed")

	// ErrPlanning wraps any error returned because the requested
	// operation could not be planned against the loaded migrations.
	ErrPlanning = errors.New("pgmigrate: planning failed")
)

// LoadError is returned by a Loader when one or more migrations failed to
// load. Report carries the per-name errors and warnings accumulated along
// the way, preserving the order in which names were first seen.
type LoadError struct {
	Report *LoadReport
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("pgmigrate: %d migration(s) failed to load", len(e.Report.Errors))
}

func (e *LoadError) Unwrap() error { return ErrLoadFailure }

// PlanningError is returned when a plan cannot be computed for reasons
// that aren't a history/state mismatch: rolling back a migration with no
// down step, or a down target that is not behind the current version.
type PlanningError struct {
	Reason string
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("pgmigrate: planning: %s", e.Reason)
}

func (e *PlanningError) Unwrap() error { return ErrPlanning }

// UnknownMigrationError is returned when the history table records a
// version that has no corresponding loaded migration.
type UnknownMigrationError struct {
	Version int
}

func (e *UnknownMigrationError) Error() string {
	return fmt.Sprintf("pgmigrate: history references unknown migration %d", e.Version)
}

func (e *UnknownMigrationError) Unwrap() error { return ErrPlanning }

// StateHoleError is returned when the applied history is not a contiguous
// prefix of the loaded migrations in version order — e.g. a migration was
// applied out of order, or one in the middle is missing.
type StateHoleError struct {
	// Expected is the version that should appear at the point the hole
	// was found, or -1 if the history has more entries than there are
	// loaded migrations.
	Expected int
}

func (e *StateHoleError) Error() string {
	if e.Expected < 0 {
		return "pgmigrate: history has more applied migrations than are loaded"
	}
	return fmt.Sprintf("pgmigrate: history has a hole; expected version %d next", e.Expected)
}

func (e *StateHoleError) Unwrap() error { return ErrPlanning }

// StateIntegrityError is returned when an applied migration's recorded
// checksum no longer matches the loaded migration's content — someone
// edited a migration file after it ran. Passing Force to the planner
// downgrades this check to a no-op.
type StateIntegrityError struct {
	Version int
}

func (e *StateIntegrityError) Error() string {
	return fmt.Sprintf("pgmigrate: checksum mismatch for applied migration %d", e.Version)
}

func (e *StateIntegrityError) Unwrap() error { return ErrPlanning }

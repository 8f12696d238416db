package pgmigrate

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// StepFunc applies one half of a migration (up or down) within an
// already-open transaction.
type StepFunc func(ctx context.Context, tx pgx.Tx) error

// Migration is a single, versioned schema change. Version determines
// ordering and is also the primary key of the history table. SHA256 is
// the content hash of the step(s) as loaded, used to detect a migration
// that was edited after it was applied.
type Migration struct {
	Version     int
	Description string
	Up          StepFunc
	Down        StepFunc
	SHA256      string
}

// Downable reports whether the migration can be rolled back.
func (m Migration) Downable() bool {
	return m.Down != nil
}

// Record is one row of the history table: a migration that has already
// been applied to the database.
type Record struct {
	Version   int
	SHA256    string
	AppliedOn time.Time
}

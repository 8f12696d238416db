package pgmigrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// historyTableDDL creates the table a Migrator uses to track applied
// migrations. It is idempotent and run at the start of every Up/Down
// call. Timestamps are stored as naive UTC so rows compare the same
// regardless of the session's TimeZone setting.
const historyTableDDL = `CREATE TABLE IF NOT EXISTS __kirameki_history__ (
  version     integer PRIMARY KEY,
  sha256      character(64) NOT NULL,
  applied_on  timestamp DEFAULT (now() at time zone 'utc') NOT NULL
)`

// ProgressFunc is called after each migration step is applied (or fails to
// apply), so a caller — typically a CLI — can render progress. A panic
// inside ProgressFunc is recovered and logged; it never aborts the
// migration in progress.
type ProgressFunc func(version int, success bool)

// Connector opens a fresh, unpooled connection for the migrator to run a
// single Up or Down call over. Migrators intentionally don't borrow from
// a Pool: migrations hold an ACCESS EXCLUSIVE lock for their duration and
// shouldn't compete with application traffic for a pooled slot.
type Connector func(ctx context.Context) (*pgx.Conn, error)

// Migrator loads migrations and applies them against a database, one
// transaction per attempt, serialized with other migrators (in this
// process or another) via a table-level lock.
type Migrator struct {
	connect        Connector
	loader         Loader
	isolationLevel pgx.TxIsoLevel
	numRetries     int
	force          bool
	progress       ProgressFunc
	log            *slog.Logger
}

// MigratorOption configures a Migrator constructed with NewMigrator.
type MigratorOption func(*Migrator)

// WithIsolationLevel sets the transaction isolation level each migration
// attempt runs under. Defaults to pgx.Serializable so that concurrent
// migrators conflict loudly on 40001 rather than silently interleave.
func WithIsolationLevel(level pgx.TxIsoLevel) MigratorOption {
	return func(m *Migrator) { m.isolationLevel = level }
}

// WithNumRetries sets how many times a migration attempt is retried after
// a serialization failure before giving up. Defaults to 3.
func WithNumRetries(n int) MigratorOption {
	return func(m *Migrator) { m.numRetries = n }
}

// WithForce disables the checksum integrity check between the history
// table and the loaded migrations.
func WithForce(force bool) MigratorOption {
	return func(m *Migrator) { m.force = force }
}

// WithProgress registers a callback invoked after each step.
func WithProgress(fn ProgressFunc) MigratorOption {
	return func(m *Migrator) { m.progress = fn }
}

// WithMigratorLogger sets the logger used for retry and recovery
// diagnostics.
func WithMigratorLogger(log *slog.Logger) MigratorOption {
	return func(m *Migrator) { m.log = log }
}

// NewMigrator builds a Migrator that opens connections via connect and
// loads migrations via loader.
func NewMigrator(connect Connector, loader Loader, opts ...MigratorOption) *Migrator {
	m := &Migrator{
		connect:        connect,
		loader:         loader,
		isolationLevel: pgx.Serializable,
		numRetries:     3,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Migrator) logger() *slog.Logger {
	if m.log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m.log
}

// Up plans and applies every migration between the current version and
// target. A nil target means the latest loaded migration.
func (m *Migrator) Up(ctx context.Context, target *int) (Plan, error) {
	return m.run(ctx, func(loaded []Migration) int {
		if target != nil {
			return *target
		}
		if len(loaded) == 0 {
			return -1
		}
		return loaded[len(loaded)-1].Version
	}, false, false)
}

// Down plans and rolls back migrations down to and including target's
// successor, stopping once target is reached. target must not be ahead
// of the current version; -1 rolls back every migration.
func (m *Migrator) Down(ctx context.Context, target int) (Plan, error) {
	return m.run(ctx, func(loaded []Migration) int { return target }, true, false)
}

// Plan reports what Up or Down would do without applying it: the history
// lock is still taken (so the reported plan reflects a consistent
// snapshot) but the transaction is always rolled back. Pass up=true with
// upTarget for an Up-shaped plan (downTarget is ignored), or up=false with
// downTarget for a Down-shaped plan.
func (m *Migrator) Plan(ctx context.Context, up bool, upTarget *int, downTarget int) (Plan, error) {
	if up {
		return m.run(ctx, func(loaded []Migration) int {
			if upTarget != nil {
				return *upTarget
			}
			if len(loaded) == 0 {
				return -1
			}
			return loaded[len(loaded)-1].Version
		}, false, true)
	}
	return m.run(ctx, func(loaded []Migration) int { return downTarget }, true, true)
}

func (m *Migrator) run(ctx context.Context, resolveTarget func([]Migration) int, wantDown, dryRun bool) (Plan, error) {
	migrations, _, err := m.loader.Load(ctx)
	if err != nil {
		return Plan{}, err
	}
	migrations = sortMigrations(migrations)

	conn, err := m.connect(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("pgmigrate: connect: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	if _, err := conn.Exec(ctx, historyTableDDL); err != nil {
		return Plan{}, fmt.Errorf("pgmigrate: create history table: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= m.numRetries; attempt++ {
		plan, err := m.attempt(ctx, conn, migrations, resolveTarget, wantDown, dryRun)
		if err == nil {
			return plan, nil
		}
		if !isSerializationFailure(err) {
			return Plan{}, err
		}
		lastErr = err
		m.logger().Warn("pgmigrate: serialization failure, retrying",
			slog.Int("attempt", attempt), slog.Int("max_retries", m.numRetries))
	}
	return Plan{}, fmt.Errorf("pgmigrate: exhausted retries after serialization failures: %w", lastErr)
}

func (m *Migrator) attempt(ctx context.Context, conn *pgx.Conn, loaded []Migration, resolveTarget func([]Migration) int, wantDown, dryRun bool) (plan Plan, err error) {
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: m.isolationLevel})
	if err != nil {
		return Plan{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, "LOCK TABLE __kirameki_history__ IN ACCESS EXCLUSIVE MODE"); err != nil {
		return Plan{}, err
	}

	rows, err := tx.Query(ctx, "SELECT version, sha256 FROM __kirameki_history__ ORDER BY version ASC")
	if err != nil {
		return Plan{}, err
	}
	var state []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Version, &r.SHA256); err != nil {
			rows.Close()
			return Plan{}, err
		}
		state = append(state, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Plan{}, err
	}

	target := resolveTarget(loaded)
	plan, err = ComputePlan(state, loaded, target, m.force)
	if err != nil {
		return Plan{}, err
	}

	if wantDown && plan.Direction == Forward {
		return Plan{}, &PlanningError{Reason: "down target is ahead of the current version"}
	}

	if dryRun {
		return plan, nil
	}

	if plan.Direction == Unchanged {
		if err := tx.Commit(ctx); err != nil {
			return Plan{}, err
		}
		committed = true
		return plan, nil
	}

	byVersion := make(map[int]Migration, len(loaded))
	for _, mig := range loaded {
		byVersion[mig.Version] = mig
	}

	for _, v := range plan.Steps {
		mig := byVersion[v]
		var stepErr error

		switch plan.Direction {
		case Forward:
			stepErr = mig.Up(ctx, tx)
			if stepErr == nil {
				_, stepErr = tx.Exec(ctx, "INSERT INTO __kirameki_history__ (version, sha256) VALUES ($1, $2)", mig.Version, mig.SHA256)
			}
		case Backward:
			stepErr = mig.Down(ctx, tx)
			if stepErr == nil {
				_, stepErr = tx.Exec(ctx, "DELETE FROM __kirameki_history__ WHERE version = $1", mig.Version)
			}
		}

		m.callProgress(v, stepErr == nil)
		if stepErr != nil {
			return Plan{}, stepErr
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Plan{}, err
	}
	committed = true
	return plan, nil
}

func (m *Migrator) callProgress(version int, success bool) {
	if m.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger().Error("pgmigrate: progress callback panicked", slog.Any("recover", r))
		}
	}()
	m.progress(version, success)
}

// isSerializationFailure reports whether err is a Postgres serialization
// failure (SQLSTATE 40001), the signal the retry loop watches for.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

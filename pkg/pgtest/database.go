package pgtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlstateDuplicateDatabase = "42P04"
	sqlstateObjectInUse       = "55006"
)

// TemporaryDatabase creates a uniquely-named database on first use and
// drops it on Close. All administrative statements run over adminDSN,
// which must name a database the calling role can connect to (typically
// the server's default "postgres" database).
type TemporaryDatabase struct {
	adminDSN string
	name     string
}

// New returns a TemporaryDatabase that has not yet been created. Call
// Create (or Connect, which creates it implicitly) before using it.
func New(adminDSN string) *TemporaryDatabase {
	return &TemporaryDatabase{adminDSN: adminDSN}
}

// Name returns the database's generated name, or "" if it hasn't been
// created yet.
func (d *TemporaryDatabase) Name() string {
	return d.name
}

// Create provisions the database, retrying with a fresh generated name if
// the chosen one is already taken. It is a no-op if the database already
// exists.
func (d *TemporaryDatabase) Create(ctx context.Context) error {
	if d.name != "" {
		return nil
	}

	for {
		name := "kirameki_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

		conn, err := pgx.Connect(ctx, d.adminDSN)
		if err != nil {
			return fmt.Errorf("pgtest: connect to admin database: %w", err)
		}

		ident := pgx.Identifier{name}.Sanitize()
		_, execErr := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", ident))
		closeErr := conn.Close(ctx)

		if execErr != nil {
			if isSQLState(execErr, sqlstateDuplicateDatabase) {
				continue
			}
			return fmt.Errorf("pgtest: create database: %w", execErr)
		}
		if closeErr != nil {
			return closeErr
		}

		d.name = name
		return nil
	}
}

// Config returns connection config for the temporary database, creating
// it first if necessary.
func (d *TemporaryDatabase) Config(ctx context.Context) (*pgx.ConnConfig, error) {
	if err := d.Create(ctx); err != nil {
		return nil, err
	}

	cfg, err := pgx.ParseConfig(d.adminDSN)
	if err != nil {
		return nil, fmt.Errorf("pgtest: parse admin DSN: %w", err)
	}
	cfg.Database = d.name
	return cfg, nil
}

// Connect opens a connection to the temporary database, creating it
// first if necessary.
func (d *TemporaryDatabase) Connect(ctx context.Context) (*pgx.Conn, error) {
	cfg, err := d.Config(ctx)
	if err != nil {
		return nil, err
	}
	return pgx.ConnectConfig(ctx, cfg)
}

// Drop removes the database. It fails with a descriptive error if other
// clients are still connected to it. It is a no-op if the database was
// never created or has already been dropped.
func (d *TemporaryDatabase) Drop(ctx context.Context) error {
	if d.name == "" {
		return nil
	}

	conn, err := pgx.Connect(ctx, d.adminDSN)
	if err != nil {
		return fmt.Errorf("pgtest: connect to admin database: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	ident := pgx.Identifier{d.name}.Sanitize()
	if _, err := conn.Exec(ctx, fmt.Sprintf("DROP DATABASE %s", ident)); err != nil {
		if isSQLState(err, sqlstateObjectInUse) {
			return fmt.Errorf("pgtest: database in use, disconnect all clients before cleanup: %w", err)
		}
		return fmt.Errorf("pgtest: drop database: %w", err)
	}

	d.name = ""
	return nil
}

// RequireNew creates a temporary database and registers t.Cleanup to drop
// it, failing the test immediately on any provisioning error.
func RequireNew(t *testing.T, adminDSN string) *TemporaryDatabase {
	t.Helper()
	d := New(adminDSN)
	if err := d.Create(context.Background()); err != nil {
		t.Fatalf("pgtest: %s", err)
	}
	t.Cleanup(func() {
		if err := d.Drop(context.Background()); err != nil {
			t.Logf("pgtest: cleanup: %s", err)
		}
	})
	return d
}

func isSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

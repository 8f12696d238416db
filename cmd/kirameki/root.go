package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/quasar-media/kirameki/pkg/logger"
	"github.com/quasar-media/kirameki/pkg/pgmigrate"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	databaseURL    string
	migrationsDir  string
	progress       bool
	isolationLevel string
	numRetries     int
	force          bool
	dryRun         bool
	verbose        int
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "kirameki",
		Short:         "kirameki applies and rolls back PostgreSQL schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	pf.StringVar(&flags.migrationsDir, "migrations-dir", "migrations", "directory of m_<version>_<slug>.(up|down).sql files")
	pf.BoolVar(&flags.progress, "progress", false, "print a progress line for each migration step")
	pf.StringVar(&flags.isolationLevel, "isolation-level", "default", "transaction isolation level (default, serializable, repeatable-read, read-committed, read-uncommitted)")
	pf.IntVar(&flags.numRetries, "num-retries", 0, "retries on serialization failure before giving up")
	pf.BoolVar(&flags.force, "force", false, "bypass the checksum integrity check against applied history")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "compute and print the plan without applying it")
	pf.CountVarP(&flags.verbose, "verbose", "v", "increase log verbosity (repeatable)")

	cmd.AddCommand(newUpCommand(flags), newDownCommand(flags))
	return cmd
}

// newLogger maps the repeatable -v flag onto a log level: warnings only
// by default, info at -v, debug at -vv and beyond. Sentry mirroring turns
// on when SENTRY_DSN is set.
func newLogger(verbose int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	return logger.New(
		logger.WithLevel(level),
		logger.WithOutput(os.Stderr),
		logger.WithSentry(logger.SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: os.Getenv("SENTRY_ENVIRONMENT"),
		}),
	)
}

// isoLevel maps the --isolation-level flag onto pgx's constants. The
// "default" sentinel maps to an empty level, which makes each attempt
// open with a plain BEGIN and the session's own default isolation.
func isoLevel(name string) pgx.TxIsoLevel {
	switch name {
	case "serializable":
		return pgx.Serializable
	case "repeatable-read":
		return pgx.RepeatableRead
	case "read-committed":
		return pgx.ReadCommitted
	case "read-uncommitted":
		return pgx.ReadUncommitted
	default:
		return ""
	}
}

func buildMigrator(cmd *cobra.Command, flags *globalFlags) (*pgmigrate.Migrator, error) {
	if flags.databaseURL == "" {
		return nil, fmt.Errorf("kirameki: --database-url (or $DATABASE_URL) is required")
	}

	connector := func(ctx context.Context) (*pgx.Conn, error) {
		return pgx.Connect(ctx, flags.databaseURL)
	}
	loader := &pgmigrate.SQLLoader{FS: os.DirFS(flags.migrationsDir)}

	opts := []pgmigrate.MigratorOption{
		pgmigrate.WithIsolationLevel(isoLevel(flags.isolationLevel)),
		pgmigrate.WithNumRetries(flags.numRetries),
		pgmigrate.WithForce(flags.force),
		pgmigrate.WithMigratorLogger(newLogger(flags.verbose)),
	}
	if flags.progress {
		opts = append(opts, pgmigrate.WithProgress(func(version int, success bool) {
			status := "OK"
			if !success {
				status = "FAIL"
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d: %s\n", version, status)
		}))
	}

	return pgmigrate.NewMigrator(connector, loader, opts...), nil
}

func printPlan(cmd *cobra.Command, plan pgmigrate.Plan) {
	if plan.Direction == pgmigrate.Unchanged {
		fmt.Fprintf(cmd.OutOrStdout(), "already at version %d, nothing to do\n", plan.Current)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d -> %d (%d step(s))\n", plan.Direction, plan.Current, plan.Target, len(plan.Steps))
}

// exitCode classifies an error from a migration run into the CLI's exit
// code contract: user-correctable planning/integrity failures exit 1,
// anything else (connection faults, driver errors, a canceled context)
// exits 2.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var planningErr *pgmigrate.PlanningError
	var integrityErr *pgmigrate.StateIntegrityError
	var holeErr *pgmigrate.StateHoleError
	var unknownErr *pgmigrate.UnknownMigrationError
	switch {
	case errors.As(err, &planningErr), errors.As(err, &integrityErr), errors.As(err, &holeErr), errors.As(err, &unknownErr):
		return 1
	default:
		return 2
	}
}

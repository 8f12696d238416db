// Package pgmigrate loads, plans, and applies schema migrations against a
// PostgreSQL database.
//
// A Loader produces an ordered set of Migration values (see [SQLLoader] for
// a directory of `.up.sql`/`.down.sql` files, and [RegistryLoader] for
// migrations registered from Go code). A Migrator reads the history
// already applied to a database, asks the planner for the ordered set of
// steps needed to reach a target version, and applies them all inside a
// single transaction per attempt, serialized across concurrent callers — including
// other processes — via an ACCESS EXCLUSIVE lock on the history table.
//
// # Basic usage
//
//	loader := &pgmigrate.SQLLoader{FS: os.DirFS("migrations")}
//	migrator := pgmigrate.NewMigrator(func(ctx context.Context) (*pgx.Conn, error) {
//		return pgx.Connect(ctx, os.Getenv("DATABASE_URL"))
//	}, loader)
//
//	plan, err := migrator.Up(ctx, nil) // nil target = latest
//	if err != nil {
//		log.Fatal(err)
//	}
package pgmigrate

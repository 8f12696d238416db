// Package pgpool implements a priority-ordered, fork-safe pool of raw
// PostgreSQL connections.
//
// Unlike [github.com/jackc/pgx/v5/pgxpool], which manages its own internal
// connection lifecycle, pgpool builds the pool itself on top of
// [github.com/jackc/pgx/v5]'s single-connection type: a background
// single-worker creator fills the pool up to maxConns, idle connections
// are kept in a bounded queue ordered by age (oldest first, so staleness
// is detected early), and checkouts/returns are safe to call from many
// goroutines at once.
//
// # Basic usage
//
//	pool := pgpool.New(func(ctx context.Context) (*pgx.Conn, error) {
//		return pgx.Connect(ctx, os.Getenv("DATABASE_URL"))
//	}, pgpool.WithMinConns(2), pgpool.WithMaxConns(10))
//	defer pool.Close()
//
//	conn, err := pool.Get(ctx)
//	if err != nil {
//		return err
//	}
//	defer pool.Put(conn, false)
//
// # Fork safety
//
// Get and Put (and so Healthcheck) first check whether the process id has
// changed since the pool was (re)initialized. After a fork, inherited
// sockets are not safe to reuse from the child, so the pool discards all
// state and starts fresh rather than risk cross-process corruption. Close,
// Size and Closed do not perform this check.
package pgpool

//go:build integration

package pgpool_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/quasar-media/kirameki/pkg/pgpool"
)

// These tests exercise the pool against a real PostgreSQL instance and are
// only built with -tags=integration.

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("KIRAMEKI_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KIRAMEKI_TEST_DATABASE_URL not set")
	}
	return dsn
}

func newTestPool(t *testing.T, opts ...pgpool.Option) *pgpool.Pool {
	t.Helper()
	dsn := testDSN(t)
	factory := func(ctx context.Context) (*pgx.Conn, error) {
		return pgx.Connect(ctx, dsn)
	}
	p := pgpool.New(factory, opts...)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// Scenario 1: stale recycle. minconn=1, maxconn=2, stale_timeout=0.
// Checkout, return, checkout again: the returned connection is closed, a
// new background creation happens, and the second checkout yields a
// different connection identity.
func TestPool_StaleRecycle(t *testing.T) {
	p := newTestPool(t,
		pgpool.WithMinConns(1),
		pgpool.WithMaxConns(2),
		pgpool.WithStaleTimeout(0),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := p.Get(ctx)
	require.NoError(t, err)
	firstPID := first.PgConn().PID()

	require.NoError(t, p.Put(first, false))
	require.True(t, first.IsClosed(), "stale connection should be closed on return")

	second, err := p.Get(ctx)
	require.NoError(t, err)
	defer func() { _ = p.Put(second, false) }()

	require.NotEqual(t, firstPID, second.PgConn().PID())
}

// Scenario 2: close propagation. Three goroutines call Get on an empty
// pool; a fourth calls Close. All three fail with ErrPoolClosed and none
// hang past Close's completion.
func TestPool_ClosePropagatesToWaiters(t *testing.T) {
	dsn := testDSN(t)
	factory := func(ctx context.Context) (*pgx.Conn, error) {
		// Never succeeds quickly enough for the waiters below; they should
		// observe the close before a connection materializes.
		time.Sleep(2 * time.Second)
		return pgx.Connect(ctx, dsn)
	}
	p := pgpool.New(factory, pgpool.WithMinConns(0), pgpool.WithMaxConns(1))

	const waiters = 3
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_, err := p.Get(ctx)
			errs <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, p.Close())

	for i := 0; i < waiters; i++ {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, pgpool.ErrPoolClosed)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter did not observe pool close")
		}
	}
}

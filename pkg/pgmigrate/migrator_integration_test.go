//go:build integration

package pgmigrate_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/quasar-media/kirameki/pkg/pgmigrate"
)

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("KIRAMEKI_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KIRAMEKI_TEST_DATABASE_URL not set")
	}
	return dsn
}

func connector(dsn string) pgmigrate.Connector {
	return func(ctx context.Context) (*pgx.Conn, error) {
		return pgx.Connect(ctx, dsn)
	}
}

// Scenario 8: three migrators racing Up against the same database. One
// applies every step; the others observe the history already satisfies
// the target and return an Unchanged plan. None sees a partial history.
func TestMigrator_ConcurrentMigratorsDoNotDoubleApply(t *testing.T) {
	dsn := testDSN(t)

	fsys := fstest.MapFS{
		"m_0001_a.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS concurrent_test_a (id int);")},
		"m_0001_a.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE concurrent_test_a;")},
		"m_0002_b.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE IF NOT EXISTS concurrent_test_b (id int);")},
		"m_0002_b.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE concurrent_test_b;")},
	}
	loader := &pgmigrate.SQLLoader{FS: fsys}

	const runners = 3
	plans := make([]pgmigrate.Plan, runners)
	errs := make([]error, runners)

	var wg sync.WaitGroup
	wg.Add(runners)
	for i := 0; i < runners; i++ {
		i := i
		go func() {
			defer wg.Done()
			m := pgmigrate.NewMigrator(connector(dsn), loader, pgmigrate.WithNumRetries(5))
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			plans[i], errs[i] = m.Up(ctx, nil)
		}()
	}
	wg.Wait()

	var forwardCount int
	for i := 0; i < runners; i++ {
		require.NoError(t, errs[i])
		if plans[i].Direction == pgmigrate.Forward {
			forwardCount++
		}
	}
	require.Equal(t, 1, forwardCount, "exactly one migrator should have applied the pending steps")

	conn, err := pgx.Connect(context.Background(), dsn)
	require.NoError(t, err)
	defer func() { _ = conn.Close(context.Background()) }()

	var count int
	require.NoError(t, conn.QueryRow(context.Background(), "SELECT count(*) FROM __kirameki_history__").Scan(&count))
	require.Equal(t, 2, count)

	_, _ = conn.Exec(context.Background(), "DROP TABLE IF EXISTS concurrent_test_a, concurrent_test_b")
	_, _ = conn.Exec(context.Background(), "DROP TABLE IF EXISTS __kirameki_history__")
}

//go:build integration

package pgtest_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quasar-media/kirameki/pkg/pgtest"
)

func adminDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("KIRAMEKI_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KIRAMEKI_TEST_DATABASE_URL not set")
	}
	return dsn
}

func TestTemporaryDatabase_CreateConnectDrop(t *testing.T) {
	ctx := context.Background()
	db := pgtest.RequireNew(t, adminDSN(t))
	require.NotEmpty(t, db.Name())

	conn, err := db.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Ping(ctx))
	require.NoError(t, conn.Close(ctx))
}

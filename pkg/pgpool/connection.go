package pgpool

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// sessionDefaults captures the isolation level, read-only, and deferrable
// settings a connection is reset to before it's returned to the idle
// queue, so every checked-out connection starts from the same known
// session state.
type sessionDefaults struct {
	isoLevel   pgx.TxIsoLevel
	readOnly   bool
	deferrable bool
}

// applySessionDefaults sets the connection's default transaction
// characteristics. It runs once right after the factory produces a new
// connection and again every time a connection is reset on return.
func applySessionDefaults(ctx context.Context, conn *pgx.Conn, d sessionDefaults) error {
	access := "READ WRITE"
	if d.readOnly {
		access = "READ ONLY"
	}
	deferrable := "NOT DEFERRABLE"
	if d.deferrable {
		deferrable = "DEFERRABLE"
	}

	sql := fmt.Sprintf(
		"SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL %s, %s, %s",
		isoLevelSQL(d.isoLevel), access, deferrable,
	)
	_, err := conn.Exec(ctx, sql)
	return err
}

func isoLevelSQL(level pgx.TxIsoLevel) string {
	switch level {
	case pgx.Serializable:
		return "SERIALIZABLE"
	case pgx.RepeatableRead:
		return "REPEATABLE READ"
	case pgx.ReadUncommitted:
		return "READ UNCOMMITTED"
	default:
		return "READ COMMITTED"
	}
}

// isIdleTxStatus reports whether the connection is outside of any
// transaction, matching psycopg2's TRANSACTION_STATUS_IDLE check.
func isIdleTxStatus(conn *pgx.Conn) bool {
	return conn.PgConn().TxStatus() == 'I'
}

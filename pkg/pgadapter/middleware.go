package pgadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quasar-media/kirameki/pkg/pgpool"
)

type connCtxKey struct{}
type requestIDCtxKey struct{}

// ErrNoConnection is returned by FromContext when called outside a
// request handled by Middleware.
var ErrNoConnection = errors.New("pgadapter: no connection in context; is Middleware installed?")

// lease lazily borrows one connection per request and remembers it so
// later calls to FromContext within the same request reuse it instead of
// checking out a second one.
type lease struct {
	pool *pgpool.Pool
	conn *pgx.Conn
}

// Middleware returns a chi-compatible middleware that lazily lends a
// connection from pool to each request and returns it when the handler
// completes. No connection is checked out until a handler calls
// FromContext.
func Middleware(pool *pgpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := &lease{pool: pool}
			ctx := context.WithValue(r.Context(), requestIDCtxKey{}, uuid.NewString())
			ctx = context.WithValue(ctx, connCtxKey{}, l)

			discard := false
			defer func() {
				if rec := recover(); rec != nil {
					discard = true
					if l.conn != nil {
						_ = l.pool.Put(l.conn, discard)
					}
					panic(rec)
				}
				if l.conn != nil {
					_ = l.pool.Put(l.conn, discard)
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the connection leased to the current request,
// checking one out from the pool on first call. Subsequent calls within
// the same request return the same connection.
func FromContext(ctx context.Context) (*pgx.Conn, error) {
	l, ok := ctx.Value(connCtxKey{}).(*lease)
	if !ok {
		return nil, ErrNoConnection
	}

	if l.conn != nil {
		return l.conn, nil
	}

	conn, err := l.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	l.conn = conn
	return conn, nil
}

// RequestID returns the correlation id Middleware attached to ctx, or ""
// if Middleware was not installed.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

package pgpool

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// ConnFactory produces a single new connection. The pool calls it from its
// background creator goroutine; it must be safe to call repeatedly and
// concurrently with other pool operations (though the creator itself never
// calls it concurrently with another in-flight call).
type ConnFactory func(ctx context.Context) (*pgx.Conn, error)

// Option configures a Pool using the functional-options convention.
type Option func(*options)

type options struct {
	minConns     int32
	maxConns     int32
	staleTimeout time.Duration
	logger       *slog.Logger

	isolationLevel pgx.TxIsoLevel
	readOnly       bool
	deferrable     bool
}

func defaultOptions() *options {
	return &options{
		minConns:       1,
		maxConns:       10,
		staleTimeout:   -1,
		isolationLevel: pgx.ReadCommitted,
	}
}

// WithMinConns sets the minimum number of connections the pool tries to
// keep alive via background refill. Default: 1.
func WithMinConns(n int32) Option {
	return func(o *options) { o.minConns = n }
}

// WithMaxConns sets the maximum number of connections the pool will ever
// hold (idle + in-use + in-flight). Default: 10.
func WithMaxConns(n int32) Option {
	return func(o *options) { o.maxConns = n }
}

// WithStaleTimeout sets the age after which a returned connection is
// discarded instead of recycled. Zero means every returned connection is
// discarded; a negative duration (the default) disables staleness checks.
func WithStaleTimeout(d time.Duration) Option {
	return func(o *options) { o.staleTimeout = d }
}

// WithLogger sets the logger used for pool diagnostics. Defaults to a
// discarding logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithSessionDefaults sets the isolation level, read-only, and deferrable
// flags restored on every connection after DISCARD ALL on return.
func WithSessionDefaults(isoLevel pgx.TxIsoLevel, readOnly, deferrable bool) Option {
	return func(o *options) {
		o.isolationLevel = isoLevel
		o.readOnly = readOnly
		o.deferrable = deferrable
	}
}

package pgpool

import "errors"

// Sentinel errors returned by Pool methods. Use errors.Is to match them;
// PoolError additionally carries any underlying close errors collected
// during Close.
var (
	// ErrPoolClosed is returned when an operation is attempted on a closed pool.
	ErrPoolClosed = errors.New("pgpool: pool is closed")

	// ErrPoolTimeout is returned when Get's context expires before a
	// connection becomes available.
	ErrPoolTimeout = errors.New("pgpool: timed out waiting for a connection")

	// ErrPoolDeadlocked is returned when the fork guard cannot acquire its
	// lock within the bound.
	ErrPoolDeadlocked = errors.New("pgpool: deadlocked waiting for fork lock")

	// ErrForeignConnection is returned by Put when the connection was not
	// checked out of this pool.
	ErrForeignConnection = errors.New("pgpool: attempting to return a foreign connection")
)

// PoolError aggregates one or more errors encountered while closing the
// pool's connections. It always wraps at least one error.
type PoolError struct {
	Errs []error
}

func (e *PoolError) Error() string {
	return errors.Join(e.Errs...).Error()
}

func (e *PoolError) Unwrap() []error {
	return e.Errs
}

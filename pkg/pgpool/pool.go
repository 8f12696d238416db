package pgpool

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
)

// forkLockTimeout bounds how long safeCall waits to acquire the fork
// guard's lock before giving up with ErrPoolDeadlocked.
const forkLockTimeout = 3 * time.Second

// Pool is a priority-ordered, fork-safe pool of *pgx.Conn connections. See
// the package doc for an overview.
type Pool struct {
	factory      ConnFactory
	minConns     int32
	maxConns     int32
	staleTimeout time.Duration
	log          *slog.Logger

	sessionDefaults sessionDefaults

	idle  *idleQueue
	inUse *sync.Map // *pgx.Conn -> *entry

	pendingMu sync.Mutex
	inPending int

	createCh    chan struct{}
	creatorStop chan struct{}
	creatorDone chan struct{}

	closed  atomic.Bool
	closeMu sync.Mutex

	pid    atomic.Int64
	forkMu chan struct{} // size-1 channel used as a try-lock with timeout
}

// New creates a Pool that produces connections via factory. The pool does
// not eagerly connect; the first calls to Get trigger background
// creation.
func New(factory ConnFactory, opts ...Option) *Pool {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	p := &Pool{
		factory:      factory,
		minConns:     o.minConns,
		maxConns:     o.maxConns,
		staleTimeout: o.staleTimeout,
		log:          o.logger,
		sessionDefaults: sessionDefaults{
			isoLevel:   o.isolationLevel,
			readOnly:   o.readOnly,
			deferrable: o.deferrable,
		},
	}
	p.forkMu = make(chan struct{}, 1)
	p.forkMu <- struct{}{}
	p.reset()
	return p
}

func (p *Pool) logger() *slog.Logger {
	if p.log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.log
}

// reset (re)initializes all mutable pool state. Called from New and again
// by the fork guard whenever the process id changes. The fork lock itself
// is created once in New and survives resets: the caller holds it while
// resetting.
func (p *Pool) reset() {
	p.idle = newIdleQueue(int(p.maxConns))
	p.inUse = &sync.Map{}
	p.inPending = 0
	p.closed.Store(false)
	p.pid.Store(int64(os.Getpid()))
	p.startCreator()
}

// Closed reports whether the pool has been closed.
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// Size returns the best-effort total number of connections the pool is
// currently accounting for: idle + in-flight creations + checked out.
// This is documented as approximate: the three counters are not read
// under a single lock, matching the upstream implementation's own
// caveat.
func (p *Pool) Size() int {
	n := 0
	p.inUse.Range(func(_, _ any) bool { n++; return true })

	p.pendingMu.Lock()
	pending := p.inPending
	p.pendingMu.Unlock()

	return p.idle.len() + pending + n
}

// safeCall implements the fork guard: it fails fast if the pool is closed,
// and reinitializes all state if the process id has changed since the
// last reset (after a fork, inherited connections are unsafe to reuse).
func (p *Pool) safeCall() error {
	if p.Closed() {
		return ErrPoolClosed
	}

	currentPid := int64(os.Getpid())
	if p.pid.Load() == currentPid {
		return nil
	}

	select {
	case <-p.forkMu:
	case <-time.After(forkLockTimeout):
		return ErrPoolDeadlocked
	}
	defer func() { p.forkMu <- struct{}{} }()

	if p.pid.Load() != int64(os.Getpid()) {
		p.logger().Debug("pgpool: process id changed, reinitializing pool state")
		p.reset()
	}
	return nil
}

// Get blocks until an idle connection is available, ctx is done, or the
// pool closes. If the pool has room to grow, it schedules a background
// creation before waiting.
func (p *Pool) Get(ctx context.Context) (*pgx.Conn, error) {
	if err := p.safeCall(); err != nil {
		return nil, err
	}

	if p.Size() < int(p.maxConns) {
		p.connect()
	}

	e, err := p.idle.pop(ctx)
	if err != nil {
		return nil, err
	}

	p.inUse.Store(e.conn, e)
	return e.conn, nil
}

// Put returns a checked-out connection to the pool. If discard is true,
// or the connection is stale, unhealthy, or left mid-transaction, it is
// closed instead of recycled and a background refill is scheduled if
// needed to maintain minConns.
func (p *Pool) Put(conn *pgx.Conn, discard bool) error {
	if err := p.safeCall(); err != nil {
		return err
	}

	v, ok := p.inUse.LoadAndDelete(conn)
	if !ok {
		return &PoolError{Errs: []error{ErrForeignConnection}}
	}
	e := v.(*entry)

	ctx := context.Background()

	if p.Closed() {
		_ = conn.Close(ctx)
		return nil
	}

	if conn.IsClosed() {
		p.logger().Warn("pgpool: returned connection was already closed")
		p.ensureMinconn()
		return nil
	}

	if !isIdleTxStatus(conn) {
		p.logger().Warn("pgpool: discarding connection returned mid-transaction")
		p.ensureMinconn()
		_, _ = conn.Exec(ctx, "ROLLBACK")
		_ = conn.Close(ctx)
		return nil
	}

	if discard || (p.staleTimeout >= 0 && time.Since(e.createdOn) >= p.staleTimeout) {
		p.logger().Debug("pgpool: discarding connection", slog.Bool("requested", discard))
		p.ensureMinconn()
		_ = conn.Close(ctx)
		return nil
	}

	if _, err := conn.Exec(ctx, "DISCARD ALL"); err != nil {
		p.ensureMinconn()
		return err
	}
	if err := applySessionDefaults(ctx, conn, p.sessionDefaults); err != nil {
		p.ensureMinconn()
		return err
	}

	p.idle.push(e)
	return nil
}

// Close drains in-use and idle connections, stops the background creator,
// and wakes every waiter in Get with ErrPoolClosed. It is idempotent: a
// second call returns nil without side effects. Errors closing individual
// connections are collected and returned as a single *PoolError.
func (p *Pool) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}

	ctx := context.Background()
	var errs []error

	p.inUse.Range(func(key, value any) bool {
		conn := key.(*pgx.Conn)
		if err := conn.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		p.inUse.Delete(key)
		return true
	})

	p.stopCreator()

	for _, e := range p.idle.drain() {
		if err := e.conn.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	p.idle.close()

	if len(errs) > 0 {
		return &PoolError{Errs: errs}
	}
	return nil
}

// Healthcheck returns a function compatible with pkg/health's CheckFunc
// signature: it borrows a connection, pings it, and returns it.
func (p *Pool) Healthcheck() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		conn, err := p.Get(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = p.Put(conn, false) }()
		return conn.Ping(ctx)
	}
}

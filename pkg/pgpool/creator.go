package pgpool

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
)

// Background connection creation is serialized onto a single worker
// goroutine so that a burst of demand cannot open a storm of connections
// at once: one submission per desired connection, processed strictly in
// order.

const (
	creatorNumRetries  = 5
	creatorBaseBackoff = time.Second
)

// startCreator launches the single background worker. Called on New and
// again whenever the fork guard reinitializes the pool.
func (p *Pool) startCreator() {
	p.createCh = make(chan struct{}, int(p.maxConns)+1)
	p.creatorStop = make(chan struct{})
	p.creatorDone = make(chan struct{})
	go p.runCreator()
}

// stopCreator signals the worker to exit, waits for it, then drains any
// submissions it never picked up so each one's inPending increment is
// still matched by exactly one decrement. An in-flight creation still
// observes p.closed and discards its result rather than enqueue it.
func (p *Pool) stopCreator() {
	close(p.creatorStop)
	<-p.creatorDone
	for {
		select {
		case <-p.createCh:
			p.decPending()
		default:
			return
		}
	}
}

func (p *Pool) runCreator() {
	defer close(p.creatorDone)
	for {
		select {
		case <-p.creatorStop:
			return
		case <-p.createCh:
			p.unsafeConnect()
		}
	}
}

// connect schedules one background connection creation. inPending is
// incremented before the job is handed to the worker and decremented
// exactly once on completion, regardless of outcome.
func (p *Pool) connect() {
	p.incPending()
	select {
	case p.createCh <- struct{}{}:
	case <-p.creatorStop:
		p.decPending()
	}
}

func (p *Pool) incPending() {
	p.pendingMu.Lock()
	p.inPending++
	p.pendingMu.Unlock()
}

func (p *Pool) decPending() {
	p.pendingMu.Lock()
	p.inPending--
	if p.inPending < 0 {
		p.logger().Error("pgpool: in-flight connection count went negative", slog.Int("in_pending", p.inPending), slog.String("severity", "critical"))
	}
	p.pendingMu.Unlock()
}

// ensureMinconn schedules a background creation if the pool has fewer than
// minConns connections accounted for.
func (p *Pool) ensureMinconn() {
	if p.Size() < int(p.minConns) {
		p.connect()
	}
}

// unsafeConnect runs on the single creator goroutine. It retries the
// factory with exponential backoff and jitter, logs a stall if the pool
// would otherwise end up with zero live connections, and discards the
// freshly created connection if the pool closed while connecting.
func (p *Pool) unsafeConnect() {
	defer p.decPending()

	ctx := context.Background()
	var conn *pgx.Conn
	retry := creatorNumRetries
	for retry > 0 {
		c, err := p.factory(ctx)
		if err == nil {
			if sessionErr := applySessionDefaults(ctx, c, p.sessionDefaults); sessionErr != nil {
				_ = c.Close(ctx)
				err = sessionErr
			} else {
				conn = c
				break
			}
		}

		attempt := creatorNumRetries - retry
		backoff := creatorBaseBackoff*time.Duration(1<<attempt) + time.Duration(rand.Int64N(int64(time.Second)))
		p.logger().Error("pgpool: failed to connect, retrying",
			slog.Duration("backoff", backoff),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		time.Sleep(backoff)
		retry--
	}

	if conn == nil {
		p.logger().Error("pgpool: failed to connect within retry budget", slog.Int("retries", creatorNumRetries))
		// This creation still counts in inPending until the deferred
		// decPending runs, so a Size of 1 means nothing else is live.
		if p.Size() <= 1 {
			p.logger().Error("pgpool: stalled, no live connections remain", slog.String("severity", "critical"))
			go func() { _ = p.Close() }()
		}
		return
	}

	if p.closed.Load() {
		_ = conn.Close(ctx)
		return
	}

	p.idle.push(&entry{createdOn: time.Now(), conn: conn})
}

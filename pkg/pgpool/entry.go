package pgpool

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// entry pairs a connection with the monotonic time it was created.
// Entries are ordered oldest-first so the pool biases checkout toward
// connections most likely to be stale, detecting problems early rather
// than letting a socket linger unused.
type entry struct {
	createdOn time.Time
	conn      *pgx.Conn
}

// entryHeap implements container/heap.Interface over entries ordered by
// createdOn ascending (oldest first).
type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].createdOn.Before(h[j].createdOn) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// idleQueue is a bounded, blocking priority queue of idle entries:
// capacity maxConns, oldest entry popped first. Close broadcasts to every
// current and future waiter by closing closedCh once.
type idleQueue struct {
	mu       sync.Mutex
	h        entryHeap
	capacity int

	avail    chan struct{}
	closedCh chan struct{}
	closeMu  sync.Mutex
	closed   bool
}

func newIdleQueue(capacity int) *idleQueue {
	return &idleQueue{
		capacity: capacity,
		avail:    make(chan struct{}, capacity+1),
		closedCh: make(chan struct{}),
	}
}

// push adds an entry to the idle queue. It never blocks: callers are
// expected to respect capacity themselves via the pool's size accounting.
func (q *idleQueue) push(e *entry) {
	q.mu.Lock()
	heap.Push(&q.h, e)
	q.mu.Unlock()

	select {
	case q.avail <- struct{}{}:
	default:
	}
}

// pop blocks until an idle entry is available, ctx is done, or the queue
// is closed. On close it returns ErrPoolClosed to every caller, current or
// future, without needing to be re-entered.
func (q *idleQueue) pop(ctx context.Context) (*entry, error) {
	for {
		q.mu.Lock()
		if q.h.Len() > 0 {
			e := heap.Pop(&q.h).(*entry)
			q.mu.Unlock()
			return e, nil
		}
		q.mu.Unlock()

		select {
		case <-q.closedCh:
			return nil, ErrPoolClosed
		case <-ctx.Done():
			return nil, ErrPoolTimeout
		case <-q.avail:
			// loop and recheck; another goroutine may have won the race
		}
	}
}

// drain removes and returns all entries currently idle, for use during
// Close.
func (q *idleQueue) drain() []*entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*entry, 0, q.h.Len())
	for q.h.Len() > 0 {
		out = append(out, heap.Pop(&q.h).(*entry))
	}
	return out
}

// len reports the number of idle entries currently queued. Like Pool.Size,
// this is best-effort: it is read without coordinating with in-flight
// pushes from other goroutines beyond the queue's own mutex.
func (q *idleQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// close broadcasts closure to every blocked and future pop. Safe to call
// more than once; only the first call has effect.
func (q *idleQueue) close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}

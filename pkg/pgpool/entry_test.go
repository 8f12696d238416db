package pgpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleQueue_PopsOldestFirst(t *testing.T) {
	q := newIdleQueue(4)

	now := time.Now()
	e1 := &entry{createdOn: now.Add(-3 * time.Second)}
	e2 := &entry{createdOn: now.Add(-1 * time.Second)}
	e3 := &entry{createdOn: now.Add(-2 * time.Second)}

	q.push(e2)
	q.push(e1)
	q.push(e3)

	ctx := context.Background()
	got1, err := q.pop(ctx)
	require.NoError(t, err)
	got2, err := q.pop(ctx)
	require.NoError(t, err)
	got3, err := q.pop(ctx)
	require.NoError(t, err)

	assert.Same(t, e1, got1)
	assert.Same(t, e3, got2)
	assert.Same(t, e2, got3)
}

func TestIdleQueue_PopTimesOutOnContext(t *testing.T) {
	q := newIdleQueue(2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.pop(ctx)
	assert.ErrorIs(t, err, ErrPoolTimeout)
}

func TestIdleQueue_CloseWakesAllWaiters(t *testing.T) {
	q := newIdleQueue(2)

	const waiters = 3
	errs := make(chan error, waiters)
	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			_, err := q.pop(context.Background())
			errs <- err
		}()
	}

	// give goroutines a chance to block on pop before closing
	time.Sleep(20 * time.Millisecond)
	q.close()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrPoolClosed)
	}
}

func TestIdleQueue_CloseIsIdempotent(t *testing.T) {
	q := newIdleQueue(1)
	q.close()
	assert.NotPanics(t, func() { q.close() })

	_, err := q.pop(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestIdleQueue_Drain(t *testing.T) {
	q := newIdleQueue(3)
	q.push(&entry{createdOn: time.Now()})
	q.push(&entry{createdOn: time.Now()})

	assert.Equal(t, 2, q.len())
	drained := q.drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, q.len())
}

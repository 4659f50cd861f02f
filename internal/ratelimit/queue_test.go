package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startLog struct {
	mu     sync.Mutex
	origin time.Time
	starts map[int]time.Duration
	order  []int
}

func newStartLog() *startLog {
	return &startLog{origin: time.Now(), starts: map[int]time.Duration{}}
}

func (l *startLog) op(id int, wg *sync.WaitGroup) func() {
	return func() {
		l.mu.Lock()
		l.starts[id] = time.Since(l.origin)
		l.order = append(l.order, id)
		l.mu.Unlock()
		wg.Done()
	}
}

func (l *startLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.starts)
}

func TestQueue_PacesOpsPerWindow(t *testing.T) {
	const window = 200 * time.Millisecond
	q := NewQueue(2, window)
	defer q.Stop()

	log := newStartLog()
	var wg sync.WaitGroup
	wg.Add(5)
	for i := range 5 {
		q.Enqueue(log.op(i, &wg))
	}

	assert.Eventually(t, func() bool { return log.count() == 2 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 3, q.Pending())

	wg.Wait()

	log.mu.Lock()
	defer log.mu.Unlock()
	for id := 0; id < 2; id++ {
		assert.Less(t, log.starts[id], window, "op %d should start in the first window", id)
	}
	for id := 2; id < 4; id++ {
		assert.GreaterOrEqual(t, log.starts[id], window, "op %d started before its window", id)
		assert.Less(t, log.starts[id], 2*window, "op %d should start in the second window", id)
	}
	assert.GreaterOrEqual(t, log.starts[4], 2*window, "op 4 started before its window")
}

func TestQueue_PreservesFIFO(t *testing.T) {
	q := NewQueue(1, 20*time.Millisecond)
	defer q.Stop()

	log := newStartLog()
	var wg sync.WaitGroup
	wg.Add(4)
	for i := range 4 {
		q.Enqueue(log.op(i, &wg))
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3}, log.order)
}

func TestQueue_PreservesFIFOWithinWindow(t *testing.T) {
	q := NewQueue(3, 15*time.Millisecond)
	defer q.Stop()

	log := newStartLog()
	var wg sync.WaitGroup
	wg.Add(10)
	for i := range 10 {
		q.Enqueue(log.op(i, &wg))
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, log.order)
}

func TestQueue_DoRunsConcurrentlyWithinWindow(t *testing.T) {
	q := NewQueue(2, time.Hour)
	defer q.Stop()

	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- q.Do(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()

	// The second call is admitted while the first fn still blocks.
	err := q.Do(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-first)
}

func TestQueue_IdleTimerStops(t *testing.T) {
	q := NewQueue(1, 10*time.Millisecond)
	defer q.Stop()

	done := make(chan struct{})
	q.Enqueue(func() { close(done) })
	<-done

	assert.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.timer == nil && q.started == 0
	}, time.Second, 5*time.Millisecond)
}

func TestQueue_Do(t *testing.T) {
	q := NewQueue(1, time.Hour)
	defer q.Stop()

	want := errors.New("upstream failed")
	err := q.Do(context.Background(), func(context.Context) error { return want })
	require.ErrorIs(t, err, want)

	// Window is exhausted, so the next call waits and honors cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = q.Do(ctx, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Pending())
}

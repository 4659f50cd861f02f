// Package ratelimit paces calls to a rate-limited upstream API: at most Rate
// operations start per Window, queued operations run in FIFO order and none
// is ever dropped.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Queue struct {
	rate   int
	window time.Duration

	mu      sync.Mutex
	started int // ops started in the current window
	pending []func()
	timer   *time.Timer // nil while idle
	stopped bool

	ready       []func() // admitted, not yet run
	dispatching bool
}

func NewQueue(rate int, window time.Duration) *Queue {
	if rate <= 0 {
		rate = 1
	}
	return &Queue{rate: rate, window: window}
}

// Enqueue starts op right away if the current window has room, otherwise
// appends it to the queue. Admitted ops run one after another, in the order
// they were enqueued, on the queue's dispatch goroutine, so op must not
// block. Do runs its fn on a goroutine of its own.
func (q *Queue) Enqueue(op func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started < q.rate && len(q.pending) == 0 {
		q.started++
		q.armLocked()
		q.admitLocked(op)
		return
	}
	q.pending = append(q.pending, op)
	q.armLocked()
}

// Do enqueues fn and waits for it to finish. If ctx ends first Do returns
// ctx.Err(); the queued op still consumes its slot but skips fn.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	q.Enqueue(func() {
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		go func() { done <- fn(ctx) }()
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many ops wait for a later window.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stop halts the window timer. Ops still queued never start.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *Queue) armLocked() {
	if q.timer != nil || q.stopped {
		return
	}
	q.timer = time.AfterFunc(q.window, q.onWindow)
}

func (q *Queue) onWindow() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.timer = nil
	if q.stopped {
		return
	}
	q.started = 0
	if len(q.pending) == 0 {
		// idle: the next Enqueue re-arms
		return
	}

	n := min(q.rate, len(q.pending))
	batch := q.pending[:n]
	q.pending = q.pending[n:]
	q.started = n
	for _, op := range batch {
		q.admitLocked(op)
	}
	q.armLocked()
}

func (q *Queue) admitLocked(op func()) {
	q.ready = append(q.ready, op)
	if !q.dispatching {
		q.dispatching = true
		go q.dispatch()
	}
}

func (q *Queue) dispatch() {
	for {
		q.mu.Lock()
		if len(q.ready) == 0 {
			q.dispatching = false
			q.mu.Unlock()
			return
		}
		op := q.ready[0]
		q.ready[0] = nil
		q.ready = q.ready[1:]
		q.mu.Unlock()

		op()
	}
}

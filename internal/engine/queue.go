package engine

import (
	"sync"

	"github.com/roach88/rxmigrate/internal/ir"
)

// job is one unit waiting for a worker; index is its input position.
type job struct {
	index int
	unit  *ir.Unit
}

// workQueue is a thread-safe FIFO of units for the ApplyAll worker pool.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in workers (prevents goroutine hangs on context cancellation).
type workQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{} // Signals job availability (buffered, size 1)
}

func newWorkQueue(capacity int) *workQueue {
	return &workQueue{
		jobs:   make([]job, 0, capacity),
		signal: make(chan struct{}, 1),
	}
}

// Push adds a job to the back of the queue. Like a send on a closed
// channel, pushing after Close panics.
func (q *workQueue) Push(j job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		panic("engine: push on closed work queue")
	}
	q.jobs = append(q.jobs, j)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryPop removes the front job without blocking.
func (q *workQueue) TryPop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[0]
	// Release the unit for GC once taken.
	q.jobs[0] = job{}
	q.jobs = q.jobs[1:]
	return j, true
}

// Wait returns a channel that signals when jobs may be available. It is
// closed once the queue is closed.
func (q *workQueue) Wait() <-chan struct{} {
	return q.signal
}

// Drained reports whether the queue is closed and empty.
func (q *workQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.jobs) == 0
}

// Close signals that no more jobs will be pushed and wakes all waiters.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Package bus provides the pluggable task-queue abstraction a Replica uses
// to defer broadcast delivery, per the "coroutine-style later delivery"
// design note: schedule(task) runs task exactly once, in FIFO order, no
// sooner than after the current task returns.
//
// Nothing here depends on the rga package; both queue implementations
// satisfy rga.Queue structurally, the way the teacher's Atom satisfies
// AtomValue through method sets alone.
package bus

import "sync"

// ManualQueue defers every scheduled task until Drain is called. Tests
// inject it to pin down delivery order and to assert on state between
// broadcast and delivery.
type ManualQueue struct {
	mu      sync.Mutex
	pending []func()
}

// NewManualQueue returns an empty ManualQueue.
func NewManualQueue() *ManualQueue {
	return &ManualQueue{}
}

// Schedule appends task to the pending queue.
func (q *ManualQueue) Schedule(task func()) {
	q.mu.Lock()
	q.pending = append(q.pending, task)
	q.mu.Unlock()
}

// Pending returns the number of tasks not yet drained.
func (q *ManualQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain runs every task currently pending, in FIFO order. Tasks scheduled
// by a running task are left for the next Drain call, so a single Drain
// call corresponds to "one round" of message delivery.
func (q *ManualQueue) Drain() {
	q.mu.Lock()
	tasks := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

// DrainAll repeatedly drains until no task schedules further work,
// useful for tests that want a replica network to reach quiescence.
func (q *ManualQueue) DrainAll() {
	for q.Pending() > 0 {
		q.Drain()
	}
}

// GoQueue runs scheduled tasks on a single background goroutine, draining
// them strictly in FIFO order. This is the production default: it keeps
// "every subscriber of a replica observes local ops in the order they were
// applied locally" while never calling a sink synchronously from within
// Apply/AddRight/Remove.
type GoQueue struct {
	tasks chan func()
	done  chan struct{}
}

// NewGoQueue starts a GoQueue with the given pending-task buffer size.
func NewGoQueue(buffer int) *GoQueue {
	q := &GoQueue{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *GoQueue) run() {
	for {
		select {
		case task := <-q.tasks:
			task()
		case <-q.done:
			return
		}
	}
}

// Schedule enqueues task to run on the background goroutine.
func (q *GoQueue) Schedule(task func()) {
	q.tasks <- task
}

// Close stops the background goroutine. Tasks already enqueued but not
// yet run are dropped.
func (q *GoQueue) Close() {
	close(q.done)
}

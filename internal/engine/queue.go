package engine

import (
	"sync"

	"github.com/pavel-vrtal-ict/rybari-registrace/internal/record"
)

// ChangeKind distinguishes the notifications delivered to listeners.
type ChangeKind int

const (
	// ChangeSnapshot means a remote snapshot replaced one collection.
	ChangeSnapshot ChangeKind = iota + 1
	// ChangeMode means the engine switched between local and remote mode.
	ChangeMode
	// ChangeWriteFailed means a remote write exhausted its attempts and was dead-lettered.
	ChangeWriteFailed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeSnapshot:
		return "snapshot"
	case ChangeMode:
		return "mode"
	case ChangeWriteFailed:
		return "write_failed"
	default:
		return "unknown"
	}
}

// Change is one notification for listeners.
type Change struct {
	Kind       ChangeKind
	Collection record.Collection // ChangeSnapshot, ChangeWriteFailed
	Mode       Mode              // ChangeMode
	RecordID   string            // ChangeWriteFailed
	Err        error             // ChangeWriteFailed
}

// changeQueue is a thread-safe FIFO queue of listener notifications.
//
// Snapshot handlers run on transport goroutines; they enqueue here and the
// dispatch loop in Run delivers to listeners one at a time, so listeners never
// run concurrently with each other.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the dispatch loop.
type changeQueue struct {
	mu      sync.Mutex
	changes []Change
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		changes: make([]Change, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a change to the back of the queue.
// Returns false if the queue is closed.
func (q *changeQueue) Enqueue(c Change) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.changes = append(q.changes, c)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front change without blocking.
func (q *changeQueue) TryDequeue() (Change, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.changes) == 0 {
		return Change{}, false
	}

	c := q.changes[0]
	q.changes[0] = Change{} // drop the Err reference

	if len(q.changes) == 1 {
		q.changes = q.changes[:0]
	} else {
		q.changes = q.changes[1:]
	}

	return c, true
}

// Wait returns a channel that signals when changes may be available.
// The channel is closed when the queue is closed.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// Close signals that no more changes will be enqueued.
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

package events

import (
	"sync"

	"github.com/roach88/svcstore/internal/transport"
)

// queue is a thread-safe unbounded FIFO of events.
//
// The signal channel has a buffer of one so that Run can wait on it in a
// select alongside ctx.Done().
type queue struct {
	mu     sync.Mutex
	events []transport.Event
	closed bool
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{
		events: make([]transport.Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// enqueue appends an event. It returns false once the queue is closed.
func (q *queue) enqueue(e transport.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue pops the front event without blocking.
func (q *queue) tryDequeue() (transport.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return transport.Event{}, false
	}
	e := q.events[0]
	// Release the record for GC.
	q.events[0] = transport.Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// wait signals that events may be available. The channel is closed when
// the queue closes.
func (q *queue) wait() <-chan struct{} {
	return q.signal
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

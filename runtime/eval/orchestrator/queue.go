package orchestrator

import (
	"sync"

	"github.com/crucible-ai/crucible/runtime/eval/event"
)

// eventQueue is the hand-off between concurrent cell producers and the single
// ordered consumer. It is unbounded so producers never block; the consumer
// drains in arrival order. It tolerates both the event arriving before the
// consumer asks and the consumer asking before any event exists.
type eventQueue struct {
	mu     sync.Mutex
	events []event.Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

// push enqueues an event. Pushes after close are dropped.
func (q *eventQueue) push(e event.Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.events = append(q.events, e)
	q.mu.Unlock()
	q.wake()
}

// close marks the queue complete. Enqueued events drain before the consumer
// observes the close.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// pop returns the next event in arrival order, blocking until one is
// available. The boolean is false once the queue is closed and drained.
func (q *eventQueue) pop() (event.Event, bool) {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			e := q.events[0]
			q.events = q.events[1:]
			q.mu.Unlock()
			return e, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		<-q.signal
	}
}

func (q *eventQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

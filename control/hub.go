package control

import (
	"sync"

	"github.com/opd-ai/courier/storage"
)

// eventQueue is an unbounded FIFO of outbound events for one session. Pushes
// never block the producer; the session writer drains it in order.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends an event. It reports false once the queue is closed.
func (q *eventQueue) push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, ev)
	q.cond.Signal()
	return true
}

// pop blocks until an event is available or the queue is closed. Events
// already queued are still delivered after close; the second return value is
// false only when the queue is closed and drained.
func (q *eventQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}

	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

// close marks the queue closed and wakes any blocked pop.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Hub holds the at-most-one live session slot. The delivery engine pushes
// events through it without knowing whether a front-end is connected, and
// the server swaps the slot as connections come and go. Hub implements
// poll.SessionHook.
type Hub struct {
	mu           sync.Mutex
	queue        *eventQueue
	intervalSecs uint64
}

// NewHub returns an empty hub with no session attached.
func NewHub() *Hub {
	return &Hub{}
}

// Register installs the session's event queue, replacing any previous one.
// A replaced queue is closed so its writer goroutine unwinds. Register
// returns the last mirrored polling interval so the new session can be told
// the current cadence immediately.
func (h *Hub) Register(q *eventQueue) uint64 {
	h.mu.Lock()
	prev := h.queue
	h.queue = q
	secs := h.intervalSecs
	h.mu.Unlock()

	if prev != nil && prev != q {
		prev.close()
	}
	return secs
}

// Unregister clears the slot if it still holds q and reports whether it did.
// A session that was already replaced by a newer connection leaves the slot
// untouched and gets false, so its teardown must not signal a detach.
func (h *Hub) Unregister(q *eventQueue) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.queue != q {
		return false
	}
	h.queue = nil
	return true
}

// Attached reports whether a session is currently registered.
func (h *Hub) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queue != nil
}

// PushNewMessage forwards a freshly delivered inbound message to the
// attached session, if any.
func (h *Hub) PushNewMessage(msg storage.Message) {
	h.Push(NewNewMessage(msg))
}

// PushPollingInterval records the engine's current cadence and mirrors it to
// the attached session, if any. The recorded value seeds the first event of
// the next session.
func (h *Hub) PushPollingInterval(secs uint64) {
	h.mu.Lock()
	h.intervalSecs = secs
	q := h.queue
	h.mu.Unlock()

	if q != nil {
		q.push(NewPollingInterval(secs))
	}
}

// Push enqueues an arbitrary event for the attached session. It reports
// false when no session is attached.
func (h *Hub) Push(ev Event) bool {
	h.mu.Lock()
	q := h.queue
	h.mu.Unlock()

	if q == nil {
		return false
	}
	return q.push(ev)
}

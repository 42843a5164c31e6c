package actor

import (
	"errors"
	"sync"

	"github.com/comalice/actorstate/tag"
)

// ErrMailboxClosed is returned by send after the mailbox has been shut
// down (spec.md §4.F: "Fails only if the mailbox is shut down").
var ErrMailboxClosed = errors.New("actor: mailbox closed")

// mailbox is an unbounded single-consumer FIFO queue of events. spec.md §3
// calls for an unbounded mailbox that "never blocks on a bounded boundary";
// no example repo in the pack implements one (the teacher's core.Machine
// uses a fixed-size buffered channel with a backpressure error instead —
// see internal/core/machine.go's `make(chan primitives.Event, 1000)`, which
// this spec explicitly does not want), so this is built directly on
// sync.Mutex/sync.Cond, the same stdlib primitives the teacher already uses
// elsewhere for its RWMutex-guarded state.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []tag.Event
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) send(ev tag.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMailboxClosed
	}
	m.queue = append(m.queue, ev)
	m.cond.Signal()
	return nil
}

// take blocks until an event is available or the mailbox is closed with an
// empty queue, in which case ok is false.
func (m *mailbox) take() (ev tag.Event, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.queue) == 0 {
		return tag.Event{}, false
	}
	ev = m.queue[0]
	m.queue = m.queue[1:]
	return ev, true
}

// shutdown marks the mailbox closed and discards any queued events; a
// blocked take wakes up and returns ok=false, and every future send fails.
func (m *mailbox) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	m.cond.Broadcast()
}

// Package harness is a thin stepping test API over a spawned actor,
// grounded on testutil/adapter.go's RuntimeAdapter: a small wrapper giving
// tests a synchronous-feeling Send/WaitForTag vocabulary over what is
// actually an asynchronous goroutine-driven loop. spec.md §1 names a
// full testing harness product as out of scope; this is the minimal
// in-repo version needed to write seed-scenario tests against
// machine.Definition/engine/actor without reaching into actor internals.
package harness

import (
	"fmt"
	"time"

	"github.com/comalice/actorstate/actor"
	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/tag"
)

// Harness wraps a live actor.Ref with blocking helpers convenient for
// table-driven tests.
type Harness struct {
	ref     *actor.Ref
	changes <-chan tag.State
}

// Spawn starts an actor under test, subscribing to its change stream
// immediately so no transitions are missed between spawn and the first
// WaitForTag call.
func Spawn(id string, def *machine.Definition, opts ...actor.Option) (*Harness, error) {
	ref, err := actor.Spawn(id, def, opts...)
	if err != nil {
		return nil, err
	}
	return &Harness{ref: ref, changes: ref.Changes()}, nil
}

// Ref returns the underlying actor reference, for assertions the harness
// doesn't wrap directly (Matches, Can, Subscribe, ...).
func (h *Harness) Ref() *actor.Ref {
	return h.ref
}

// Send enqueues ev on the actor's mailbox.
func (h *Harness) Send(ev tag.Event) error {
	return h.ref.Send(ev)
}

// State returns the actor's current state.
func (h *Harness) State() tag.State {
	return h.ref.State()
}

// WaitForTag blocks until the actor's state tag equals want or timeout
// elapses, returning the matching state. Already-current state counts
// immediately.
func (h *Harness) WaitForTag(want string, timeout time.Duration) (tag.State, error) {
	if s := h.ref.State(); s.Tag == want {
		return s, nil
	}
	deadline := time.After(timeout)
	for {
		select {
		case s, ok := <-h.changes:
			if !ok {
				return tag.State{}, fmt.Errorf("harness: actor stopped before reaching tag %q", want)
			}
			if s.Tag == want {
				return s, nil
			}
		case <-deadline:
			return tag.State{}, fmt.Errorf("harness: timed out waiting for tag %q, last seen %q", want, h.ref.State().Tag)
		}
	}
}

// Drain collects every state change observed within window, for tests
// asserting an exact transition sequence (spec.md §8 seed scenario 1).
func (h *Harness) Drain(window time.Duration) []tag.State {
	var seen []tag.State
	deadline := time.After(window)
	for {
		select {
		case s, ok := <-h.changes:
			if !ok {
				return seen
			}
			seen = append(seen, s)
		case <-deadline:
			return seen
		}
	}
}

// Stop tears the actor down.
func (h *Harness) Stop() {
	h.ref.Stop()
}

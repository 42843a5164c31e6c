package actor

import (
	"sync"

	"github.com/comalice/actorstate/tag"
)

// stateCell is the single-writer/multi-reader cell holding an actor's
// current state (spec.md §3 "state_cell"). The loop goroutine is the only
// writer; Get is safe from any goroutine.
//
// Grounded on the teacher's Machine.Current()/m.mu.RLock() pattern in
// internal/core/machine.go, narrowed from a slice of active leaf paths to
// a single tag.State value since this spec's states are flat.
type stateCell struct {
	mu    sync.RWMutex
	state tag.State
}

func newStateCell(initial tag.State) *stateCell {
	return &stateCell{state: initial}
}

func (c *stateCell) Get() tag.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *stateCell) Set(s tag.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

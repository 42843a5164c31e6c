package actor

import (
	"github.com/comalice/actorstate/actorlog"
	"github.com/comalice/actorstate/inspect"
	"github.com/comalice/actorstate/tag"
)

// Option configures an Actor at Spawn time, following the teacher's
// functional-options pattern (internal/core/options.go).
type Option func(*Actor)

// WithInspectionSink installs the sink every lifecycle/transition/effect
// event is dispatched to (spec.md §4.H).
func WithInspectionSink(sink inspect.Sink) Option {
	return func(a *Actor) {
		a.sink = sink
	}
}

// WithLogger installs the logger used for defects the inspection sink
// doesn't already surface loudly enough to need separate handling (e.g.
// the AlwaysOnce livelock guard).
func WithLogger(log *actorlog.Logger) Option {
	return func(a *Actor) {
		a.log = log
	}
}

// WithMachineType sets the machine type tag recorded on inspection events
// and required by actorsystem.RestoreAll.
func WithMachineType(machineType string) Option {
	return func(a *Actor) {
		a.machineType = machineType
	}
}

// WithInitialState overrides the state Spawn starts from, instead of
// def.Initial, and suppresses running the initial state's spawn effects
// (used by package persistentactor to resume from a restored state without
// re-running one-time startup effects). Not meaningful for a plain
// actor.Spawn call.
func WithInitialState(s tag.State) Option {
	return func(a *Actor) {
		a.startOverride = &s
	}
}

// WithMaxAlwaysIterations bounds how many consecutive eventless ("always")
// transitions the loop will apply after a single event before declaring a
// guard-cycle livelock defect (spec.md §7 supplemented behavior). Default
// is 1000.
func WithMaxAlwaysIterations(n int) Option {
	return func(a *Actor) {
		a.maxAlwaysIterations = n
	}
}

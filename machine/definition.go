package machine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/comalice/actorstate/tag"
)

// Transition is one entry of Definition.Transitions. StateTag is either a
// concrete state tag or tag.Wildcard. Transitions are matched in
// registration order within a (StateTag, EventTag) bucket — see Index.
type Transition struct {
	StateTag string
	EventTag string
	Handler  TransitionHandler
	Reenter  bool
	Guard    *GuardRef // nil means unconditional
}

// SpawnEffect pairs a state tag with a handler run under that state's scope
// on every entry (spec.md §3 "spawn_effects").
type SpawnEffect struct {
	StateTag string
	Handler  EffectHandler
}

// BackgroundEffect runs under the actor's whole-lifetime scope, forked once
// at actor start (spec.md §3 "background_effects").
type BackgroundEffect struct {
	Handler EffectHandler
}

// ParamSchema is a declarative description of a slot's expected parameters.
// The runtime does not interpret it — schema validation is an external
// collaborator's concern (spec.md §1); it exists here purely as the call
// contract a Definition advertises, following the teacher's
// transitionconfig.go Validate() which checks syntax, not semantics.
type ParamSchema map[string]string

// Definition is the immutable, frozen machine definition (spec.md
// component B). Build one via machine/builder, or by hand for tests.
type Definition struct {
	// MachineType optionally names the kind of machine this Definition
	// describes (e.g. "order", "session"). actorsystem.RestoreAll requires
	// it to be set, to avoid restoring actors under the wrong definition.
	MachineType string

	Initial           tag.State
	Transitions       []Transition
	SpawnEffects      []SpawnEffect
	BackgroundEffects []BackgroundEffect
	FinalStates       map[string]struct{}

	Guards  map[string]ParamSchema
	Effects map[string]ParamSchema

	GuardHandlers  map[string]GuardHandler
	EffectHandlers map[string]EffectSlotHandler

	indexOnce sync.Once
	index     *Index // lazily built, memoized; see Index() below
}

// IsFinal reports whether t is a registered final state tag.
func (d *Definition) IsFinal(t string) bool {
	_, ok := d.FinalStates[t]
	return ok
}

// MissingSlots returns every declared guard/effect name that has no
// handler bound yet. A Definition is "provisioned" when this is empty
// (spec.md §4.D).
func (d *Definition) MissingSlots() []string {
	var missing []string
	for name := range d.Guards {
		if _, ok := d.GuardHandlers[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range d.Effects {
		if _, ok := d.EffectHandlers[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Validate checks structural well-formedness: the initial tag is non-empty,
// not reserved and not tag.Wildcard; every transition has a state tag and
// a handler, and any guard it names is a declared guard slot; every spawn
// effect has a state tag and a handler; every background effect has a
// handler. An empty event tag is accepted: it marks an eventless
// ("always") transition. FinalStates are not checked.
//
// Mirrors internal/primitives/machineconfig.go's Validate(): non-empty
// required fields, then a reachability-style pass over registered names.
func (d *Definition) Validate() error {
	if d.Initial.Tag == "" {
		return errors.New("machine: initial state tag is required")
	}
	if tag.IsReserved(d.Initial.Tag) || d.Initial.Tag == tag.Wildcard {
		return fmt.Errorf("machine: initial state tag %q is reserved", d.Initial.Tag)
	}
	for i, tr := range d.Transitions {
		// tr.EventTag == "" is the documented sentinel for an eventless
		// ("always") transition (machine/builder's Always/AlwaysGuarded,
		// Index.Always) — not a missing field.
		if tr.StateTag == "" {
			return fmt.Errorf("machine: transition %d: state tag is required (use tag.Wildcard for any)", i)
		}
		if tr.Handler == nil {
			return fmt.Errorf("machine: transition %d (%s/%s): handler is required", i, tr.StateTag, tr.EventTag)
		}
		if tr.Guard != nil {
			if _, ok := d.Guards[tr.Guard.Name]; !ok {
				return fmt.Errorf("machine: transition %d (%s/%s): guard %q not declared", i, tr.StateTag, tr.EventTag, tr.Guard.Name)
			}
		}
	}
	for i, se := range d.SpawnEffects {
		if se.StateTag == "" {
			return fmt.Errorf("machine: spawn effect %d: state tag is required", i)
		}
		if se.Handler == nil {
			return fmt.Errorf("machine: spawn effect %d (%s): handler is required", i, se.StateTag)
		}
	}
	for i, be := range d.BackgroundEffects {
		if be.Handler == nil {
			return fmt.Errorf("machine: background effect %d: handler is required", i)
		}
	}
	return nil
}

// Index returns the memoized transition index, building it on first call.
// Multiple actors commonly share one *Definition (actorsystem.Spawn never
// copies it), so the first build is guarded by sync.Once rather than the
// teacher's eager precompute-on-Start (internal/core/machine.go) — spec.md
// §4.C calls for "computed on demand and memoized", lazy by design.
func (d *Definition) Index() *Index {
	d.indexOnce.Do(func() {
		d.index = buildIndex(d)
	})
	return d.index
}

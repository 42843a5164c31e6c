// Package builder is a minimal fluent DSL for assembling a
// machine.Definition, grounded on the teacher's
// internal/primitives/machinebuilder.go fluent-chain-then-Build() shape.
// spec.md §1 names a standalone builder product as explicitly out of
// scope; this package is the thin in-repo version needed to exercise
// machine.Definition/engine/actor with anything other than hand-built
// struct literals — no YAML/schema loading, no nested-state stack, just
// flat transition/spawn/effect registration.
package builder

import (
	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/tag"
)

// Builder accumulates a Definition's fields; call Build to freeze it.
type Builder struct {
	def *machine.Definition
}

// New starts a builder with the given initial state.
func New(initial tag.State) *Builder {
	return &Builder{
		def: &machine.Definition{
			Initial:        initial,
			FinalStates:    make(map[string]struct{}),
			Guards:         make(map[string]machine.ParamSchema),
			Effects:        make(map[string]machine.ParamSchema),
			GuardHandlers:  make(map[string]machine.GuardHandler),
			EffectHandlers: make(map[string]machine.EffectSlotHandler),
		},
	}
}

// MachineType names the kind of machine being built (spec.md: required for
// actorsystem.RestoreAll).
func (b *Builder) MachineType(t string) *Builder {
	b.def.MachineType = t
	return b
}

// On registers a non-reentering transition for (stateTag, eventTag).
// stateTag may be tag.Wildcard.
func (b *Builder) On(stateTag, eventTag string, handler machine.TransitionHandler) *Builder {
	return b.on(stateTag, eventTag, handler, false, nil)
}

// OnGuarded is On with a guard reference.
func (b *Builder) OnGuarded(stateTag, eventTag string, guard machine.GuardRef, handler machine.TransitionHandler) *Builder {
	return b.on(stateTag, eventTag, handler, false, &guard)
}

// Reenter registers a transition that always runs scope teardown/setup
// even when the target tag equals stateTag (spec.md §4.E step 4).
func (b *Builder) Reenter(stateTag, eventTag string, handler machine.TransitionHandler) *Builder {
	return b.on(stateTag, eventTag, handler, true, nil)
}

// ReenterGuarded is Reenter with a guard reference.
func (b *Builder) ReenterGuarded(stateTag, eventTag string, guard machine.GuardRef, handler machine.TransitionHandler) *Builder {
	return b.on(stateTag, eventTag, handler, true, &guard)
}

// Always registers an eventless transition, evaluated by the actor loop
// after every committed state update (spec.md §9 Open Question (ii)).
func (b *Builder) Always(stateTag string, handler machine.TransitionHandler) *Builder {
	return b.on(stateTag, "", handler, false, nil)
}

// AlwaysGuarded is Always with a guard reference.
func (b *Builder) AlwaysGuarded(stateTag string, guard machine.GuardRef, handler machine.TransitionHandler) *Builder {
	return b.on(stateTag, "", handler, false, &guard)
}

func (b *Builder) on(stateTag, eventTag string, handler machine.TransitionHandler, reenter bool, guard *machine.GuardRef) *Builder {
	b.def.Transitions = append(b.def.Transitions, machine.Transition{
		StateTag: stateTag,
		EventTag: eventTag,
		Handler:  handler,
		Reenter:  reenter,
		Guard:    guard,
	})
	return b
}

// Spawn registers a spawn effect, forked on every entry into stateTag.
func (b *Builder) Spawn(stateTag string, handler machine.EffectHandler) *Builder {
	b.def.SpawnEffects = append(b.def.SpawnEffects, machine.SpawnEffect{StateTag: stateTag, Handler: handler})
	return b
}

// Background registers a background effect, forked once at actor start.
func (b *Builder) Background(handler machine.EffectHandler) *Builder {
	b.def.BackgroundEffects = append(b.def.BackgroundEffects, machine.BackgroundEffect{Handler: handler})
	return b
}

// Final marks stateTag as a terminal state.
func (b *Builder) Final(stateTag string) *Builder {
	b.def.FinalStates[stateTag] = struct{}{}
	return b
}

// Guard declares a named guard slot with its parameter schema (schema may
// be nil).
func (b *Builder) Guard(name string, schema machine.ParamSchema) *Builder {
	b.def.Guards[name] = schema
	return b
}

// Effect declares a named effect slot with its parameter schema.
func (b *Builder) Effect(name string, schema machine.ParamSchema) *Builder {
	b.def.Effects[name] = schema
	return b
}

// Build validates and returns the frozen Definition.
func (b *Builder) Build() (*machine.Definition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return b.def, nil
}

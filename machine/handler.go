// Package machine defines the immutable machine definition (spec.md
// component B), its transition index (component C), and the slot
// declaration/provisioning contract (component D).
//
// A Definition is frozen once built: nothing here mutates a Definition after
// construction, matching the teacher's MachineConfig invariant in
// internal/primitives/machineconfig.go ("no mutation after the first actor
// derives from it").
package machine

import (
	"context"

	"github.com/comalice/actorstate/tag"
)

// SelfRef lets a handler enqueue events back onto its own actor's mailbox.
// Defined here (rather than imported from package actor) to avoid a cycle:
// actor imports machine, so machine cannot import actor back. Any type with
// this method — actor.Ref satisfies it — can be plugged in.
type SelfRef interface {
	Send(ev tag.Event) error
}

// SlotInvoker lets a handler synchronously dispatch into a named guard or
// effect slot (spec.md §4.D: "A slot can be invoked from transition
// handlers... or referenced by name from a spawn/background handler").
// Implemented by package engine over a *Definition's provisioned handlers;
// declared here to keep HandlerContext free of an engine import.
type SlotInvoker interface {
	Guard(name string, params map[string]any) (bool, error)
	Effect(name string, params map[string]any) error
}

// HandlerContext is the `{state, event, self}` context spec.md §4.E and §9
// says is injected via a DI-like tag in the source. Here it is passed
// explicitly, per spec.md §9 ("pass the context explicitly as a parameter").
type HandlerContext struct {
	Ctx   context.Context
	State tag.State
	Event tag.Event
	Self  SelfRef
	Slots SlotInvoker
}

// TransitionHandler runs in the machine's context and produces the next
// state, either directly (handler returns before the call returns) or via a
// suspending computation (the handler blocks on ctx/IO internally — Go's
// goroutine-per-actor model makes "suspending" and "blocking" the same
// thing, since the whole loop lives on one goroutine per actor).
type TransitionHandler func(hctx HandlerContext) (tag.State, error)

// EffectHandler is a spawn or background effect body. It runs until
// hctx.Ctx is cancelled (scope close) or it returns on its own; it has no
// user-visible success value, matching spec.md §4.D ("no user-visible
// success value (void)").
type EffectHandler func(hctx HandlerContext) error

// GuardHandler is a provisioned guard implementation. It returns whether the
// transition should be taken; an error here is a defect (spec.md's
// SlotProvision kind is for *missing* handlers — handler-internal errors are
// surfaced as transition defects the same way transition handler errors
// are, see engine.Apply).
type GuardHandler func(params map[string]any, hctx HandlerContext) (bool, error)

// EffectSlotHandler is a provisioned named-effect implementation, invocable
// synchronously from within a transition handler or referenced by name from
// a spawn/background handler (spec.md §4.D).
type EffectSlotHandler func(params map[string]any, hctx HandlerContext) error

// GuardRef names a declared guard slot plus the parameters this particular
// transition invokes it with.
type GuardRef struct {
	Name   string
	Params map[string]any
}

// EffectRef names a declared effect slot plus invocation parameters.
type EffectRef struct {
	Name   string
	Params map[string]any
}

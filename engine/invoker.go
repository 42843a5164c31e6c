package engine

import (
	"fmt"

	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/tag"
)

// defInvoker implements machine.SlotInvoker over a Definition's provisioned
// handler tables. A missing handler at call time is the SlotProvision
// defect from spec.md §7 — fail-loud, since it means an actor was spawned
// against an under-provisioned Definition, which should have been caught by
// MissingSlots() at spawn time.
type defInvoker struct {
	def *machine.Definition
	hc  *machine.HandlerContext
}

func (i defInvoker) Guard(name string, params map[string]any) (bool, error) {
	h, ok := i.def.GuardHandlers[name]
	if !ok {
		panic(fmt.Sprintf("engine: SlotProvision defect: guard %q invoked but not provisioned", name))
	}
	return h(params, *i.hc)
}

func (i defInvoker) Effect(name string, params map[string]any) error {
	h, ok := i.def.EffectHandlers[name]
	if !ok {
		panic(fmt.Sprintf("engine: SlotProvision defect: effect %q invoked but not provisioned", name))
	}
	return h(params, *i.hc)
}

// newHandlerContext builds the {state, event, self} context for a single
// handler invocation, wiring in the slot invoker bound to that same
// context. Each invocation gets its own immutable copy, matching spec.md
// §4.E: "the handler runs with the snapshot values of state/event captured
// before the state replacement". hc.Slots holds a pointer back to hc itself
// (rather than a value snapshot taken before Slots was assigned) so a
// guard/effect that composes via hctx.Slots.Guard/Effect sees the same
// populated Slots field, not a copy made while it was still nil.
func newHandlerContext(def *machine.Definition, state tag.State, event tag.Event, self machine.SelfRef) machine.HandlerContext {
	hc := &machine.HandlerContext{
		State: state,
		Event: event,
		Self:  self,
	}
	hc.Slots = defInvoker{def: def, hc: hc}
	return *hc
}

// NewHandlerContext is the exported form of newHandlerContext, for callers
// outside this package that need to build a handler context wired to the
// same slot invoker the engine itself uses — package actor uses this for
// background effects, which run outside of Apply's per-transition
// bookkeeping.
func NewHandlerContext(def *machine.Definition, state tag.State, event tag.Event, self machine.SelfRef) machine.HandlerContext {
	return newHandlerContext(def, state, event, self)
}

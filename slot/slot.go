// Package slot implements guard composition and handler provisioning
// (spec.md component D, "Slot system") over a machine.Definition.
//
// Split out of package machine because provisioning produces a *new*
// Definition value (spec.md: "Producing a partial handler map returns a
// fresh machine; the original remains reusable with alternative
// providers") — keeping that copy-construction logic separate from
// Definition's own field layout keeps both files small, the way the
// teacher splits internal/extensibility (runtime behavior) from
// internal/primitives (data shape).
package slot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/comalice/actorstate/machine"
)

// ErrProvisionValidation is returned by Provision when the supplied handler
// map is not exactly the declared slot set. It always carries every missing
// and every extra name, collected in one pass (spec.md §4.D, §8).
var ErrProvisionValidation = errors.New("slot: provisioning validation failed")

// Handlers is the input to Provision: concrete implementations for some or
// all of a Definition's declared guard/effect slots.
type Handlers struct {
	Guards  map[string]machine.GuardHandler
	Effects map[string]machine.EffectSlotHandler
}

// Provision binds handlers to every declared slot of def, returning a new
// Definition that is fully provisioned. def itself is never mutated — the
// original remains usable with a different Handlers set (spec.md: "the
// original remains reusable with alternative providers"; spec.md §8:
// "two independent actors that do not share mutable state").
//
// Provision is total: if Handlers does not exactly cover the declared slot
// set (nothing missing, nothing extra), it reports every discrepancy in one
// ErrProvisionValidation-wrapped error, in a single pass — mirroring
// internal/primitives/machineconfig.go's MachineConfig.Validate(), which
// collects every state's failures before giving up, generalized here from
// "stop at first problem" to "collect every problem" per spec.md's
// stricter single-pass contract.
func Provision(def machine.Definition, h Handlers) (machine.Definition, error) {
	var missing, extra []string

	for name := range def.Guards {
		if _, ok := h.Guards[name]; !ok {
			missing = append(missing, "guard:"+name)
		}
	}
	for name := range h.Guards {
		if _, ok := def.Guards[name]; !ok {
			extra = append(extra, "guard:"+name)
		}
	}
	for name := range def.Effects {
		if _, ok := h.Effects[name]; !ok {
			missing = append(missing, "effect:"+name)
		}
	}
	for name := range h.Effects {
		if _, ok := def.Effects[name]; !ok {
			extra = append(extra, "effect:"+name)
		}
	}

	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		var msgs []string
		if len(missing) > 0 {
			msgs = append(msgs, fmt.Sprintf("missing: %s", strings.Join(missing, ", ")))
		}
		if len(extra) > 0 {
			msgs = append(msgs, fmt.Sprintf("extra: %s", strings.Join(extra, ", ")))
		}
		return machine.Definition{}, fmt.Errorf("%w (%s)", ErrProvisionValidation, strings.Join(msgs, "; "))
	}

	out := def
	out.GuardHandlers = make(map[string]machine.GuardHandler, len(h.Guards))
	for name, fn := range h.Guards {
		out.GuardHandlers[name] = fn
	}
	out.EffectHandlers = make(map[string]machine.EffectSlotHandler, len(h.Effects))
	for name, fn := range h.Effects {
		out.EffectHandlers[name] = fn
	}
	// Force a fresh memoized index for the copy: the zero value of
	// sync.Once inside machine.Definition already gives us that for free
	// because `out := def` copies the (unfired) Once by value when def's
	// own index has never been built; if def's index WAS already built,
	// copying it is harmless — guard/effect handlers don't change how
	// transitions are indexed.
	return out, nil
}

// GuardFunc is a guard evaluated directly against a HandlerContext, used by
// And/Or/Not below instead of the slower named-slot dispatch path — useful
// when composing provisioned slots inline within a transition's own Guard
// resolution is unnecessary ceremony.
type GuardFunc func(hctx machine.HandlerContext) (bool, error)

// And evaluates every guard left-to-right, short-circuiting on the first
// false or error result (spec.md §4.D: "composition is semantically
// parallel evaluation with short-circuit allowed; implementations may
// evaluate eagerly in registration order").
func And(guards ...GuardFunc) GuardFunc {
	return func(hctx machine.HandlerContext) (bool, error) {
		for _, g := range guards {
			ok, err := g(hctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

// Or evaluates every guard left-to-right, short-circuiting on the first
// true result.
func Or(guards ...GuardFunc) GuardFunc {
	return func(hctx machine.HandlerContext) (bool, error) {
		for _, g := range guards {
			ok, err := g(hctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// Not negates a single guard.
func Not(g GuardFunc) GuardFunc {
	return func(hctx machine.HandlerContext) (bool, error) {
		ok, err := g(hctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// Package engine implements the transition engine (spec.md component E):
// given the current state and an incoming event, it picks the winning
// transition, runs its handler, and — only when the state tag changes or
// reentry was requested — closes the outgoing state's Scope before opening
// a fresh one and forking the new state's spawn effects.
//
// Grounded on internal/core/interpreter.go's candidate-resolution shape
// (collect candidates, pick the winner, run actions), generalized from the
// teacher's hierarchical LCCA exit/entry walk to this spec's flat state-tag
// lifecycle decision (spec.md §4.E step 4).
package engine

import (
	"context"
	"fmt"

	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/tag"
)

// Result is the outcome of a successful Apply. When a call did not match
// any transition, Apply returns (Result{}, false, curScope, nil) instead,
// handing back the scope it was given unchanged — the caller must not
// mutate state on a miss (spec.md §4.E step 2).
type Result struct {
	Previous     tag.State
	Next         tag.State
	LifecycleRan bool
	IsFinal      bool
}

// Fault reports a transition defect: a non-nil error returned by a guard
// or a transition handler during Apply, ApplyPure or AlwaysOnce. Handler
// defects are NOT recoverable — spec.md §7: "the actor does not continue,
// because the state would be ambiguous"; spec.md §4.F's loop is what
// decides whether to treat a Fault as fatal. Spawn and background effect
// failures do not produce a Fault: Scope.Fork hands them to its onFault
// callback as plain errors.
type Fault struct {
	Phase string // always "transition"
	State tag.State
	Event tag.Event
	Err   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("engine: %s defect in state %q on event %q: %v", f.Phase, f.State.Tag, f.Event.Tag, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Apply resolves and applies one transition for (current, event) against
// def/idx, per spec.md §4.E:
//
//  1. Resolve candidates via idx.Find.
//  2. Walk them in order; the first whose guard is absent or true wins.
//     No winner -> matched=false, scope/state untouched.
//  3. Run the winning handler with a HandlerContext snapshotting
//     current/event.
//  4. lifecycleRuns = (next.Tag != current.Tag) || transition.Reenter.
//  5. If lifecycleRuns: close curScope (interrupts+awaits outgoing spawn
//     fibers), open a fresh scope, fork every spawn effect registered for
//     next.Tag with the $enter event.
//  6. Else: state replaces in place, scope untouched.
//
// curScope may be nil only for the very first call from a fresh actor
// (there is no "outgoing" scope to close yet). When matched is true and the
// lifecycle ran, Apply returns the fresh non-nil scope; otherwise it
// returns curScope as given, which is nil if nil was passed in.
func Apply(
	ctx context.Context,
	def *machine.Definition,
	idx *machine.Index,
	current tag.State,
	event tag.Event,
	self machine.SelfRef,
	curScope *Scope,
	onSpawnFault func(err error),
) (result Result, matched bool, newScope *Scope, err error) {
	candidates := idx.Find(current.Tag, event.Tag)

	hctx := newHandlerContext(def, current, event, self)

	var winner *machine.Transition
	for i := range candidates {
		tr := &candidates[i]
		ok, gerr := evalGuard(def, tr.Guard, hctx)
		if gerr != nil {
			return Result{}, false, curScope, &Fault{Phase: "transition", State: current, Event: event, Err: gerr}
		}
		if ok {
			winner = tr
			break
		}
	}
	if winner == nil {
		return Result{}, false, curScope, nil
	}

	next, herr := winner.Handler(hctx)
	if herr != nil {
		return Result{}, false, curScope, &Fault{Phase: "transition", State: current, Event: event, Err: herr}
	}

	lifecycleRuns := next.Tag != current.Tag || winner.Reenter
	scope := curScope

	if lifecycleRuns {
		if curScope != nil {
			curScope.Close()
		}
		scope = NewScope(ctx)
		enterEvent := tag.EnterEvent()
		for _, se := range def.SpawnEffects {
			if se.StateTag != next.Tag {
				continue
			}
			enterCtx := newHandlerContext(def, next, enterEvent, self)
			scope.Fork(se.Handler, enterCtx, onSpawnFault)
		}
	}

	return Result{
		Previous:     current,
		Next:         next,
		LifecycleRan: lifecycleRuns,
		IsFinal:      def.IsFinal(next.Tag),
	}, true, scope, nil
}

// ApplyPure resolves and runs one transition exactly like Apply, but never
// touches a Scope: no outgoing scope is closed and no spawn effects are
// forked. package persistentactor's replay path uses this to recompute
// state from a journal without re-running spawn/background side effects
// (spec.md §4.J: "scoped spawn effects are NOT run during replay").
func ApplyPure(
	ctx context.Context,
	def *machine.Definition,
	idx *machine.Index,
	current tag.State,
	event tag.Event,
	self machine.SelfRef,
) (result Result, matched bool, err error) {
	candidates := idx.Find(current.Tag, event.Tag)
	hctx := newHandlerContext(def, current, event, self)

	var winner *machine.Transition
	for i := range candidates {
		tr := &candidates[i]
		ok, gerr := evalGuard(def, tr.Guard, hctx)
		if gerr != nil {
			return Result{}, false, &Fault{Phase: "transition", State: current, Event: event, Err: gerr}
		}
		if ok {
			winner = tr
			break
		}
	}
	if winner == nil {
		return Result{}, false, nil
	}

	next, herr := winner.Handler(hctx)
	if herr != nil {
		return Result{}, false, &Fault{Phase: "transition", State: current, Event: event, Err: herr}
	}

	lifecycleRuns := next.Tag != current.Tag || winner.Reenter
	return Result{
		Previous:     current,
		Next:         next,
		LifecycleRan: lifecycleRuns,
		IsFinal:      def.IsFinal(next.Tag),
	}, true, nil
}

// evalGuard evaluates a transition's optional guard. A nil guard always
// passes (spec.md §4.E step 2: "the first whose guard is absent or
// evaluates true wins").
func evalGuard(def *machine.Definition, g *machine.GuardRef, hctx machine.HandlerContext) (bool, error) {
	if g == nil {
		return true, nil
	}
	h, ok := def.GuardHandlers[g.Name]
	if !ok {
		return false, fmt.Errorf("engine: SlotProvision defect: guard %q invoked but not provisioned", g.Name)
	}
	return h(g.Params, hctx)
}

// SpawnInitial forks every spawn effect registered for def.Initial.Tag
// under scope, using the $init event rather than $enter (spec.md §4.F
// step 1: "run initial spawn effects (with $init event) on initial state
// scope"). Called once by the actor runtime at startup, before the event
// loop begins.
func SpawnInitial(ctx context.Context, def *machine.Definition, self machine.SelfRef, scope *Scope, onSpawnFault func(err error)) {
	initEvent := tag.InitEvent()
	for _, se := range def.SpawnEffects {
		if se.StateTag != def.Initial.Tag {
			continue
		}
		hctx := newHandlerContext(def, def.Initial, initEvent, self)
		scope.Fork(se.Handler, hctx, onSpawnFault)
	}
}

// AlwaysOnce evaluates the eventless ("always") transitions registered for
// state.Tag and, if one's guard passes, applies it exactly like a normal
// transition (minus re-resolving candidates from an incoming event). The
// caller (package actor) loops this until it returns matched=false,
// implementing spec.md §9 Open Question (ii)'s recommended resolution:
// apply always-transitions uniformly, after the state cell is set and
// before opening the next scope's mailbox wait.
func AlwaysOnce(
	ctx context.Context,
	def *machine.Definition,
	idx *machine.Index,
	current tag.State,
	self machine.SelfRef,
	curScope *Scope,
	onSpawnFault func(err error),
) (result Result, matched bool, newScope *Scope, err error) {
	candidates := idx.Always(current.Tag)
	emptyEvent := tag.Event{}
	hctx := newHandlerContext(def, current, emptyEvent, self)

	var winner *machine.Transition
	for i := range candidates {
		tr := &candidates[i]
		ok, gerr := evalGuard(def, tr.Guard, hctx)
		if gerr != nil {
			return Result{}, false, curScope, &Fault{Phase: "transition", State: current, Event: emptyEvent, Err: gerr}
		}
		if ok {
			winner = tr
			break
		}
	}
	if winner == nil {
		return Result{}, false, curScope, nil
	}

	next, herr := winner.Handler(hctx)
	if herr != nil {
		return Result{}, false, curScope, &Fault{Phase: "transition", State: current, Event: emptyEvent, Err: herr}
	}

	lifecycleRuns := next.Tag != current.Tag || winner.Reenter
	scope := curScope
	if lifecycleRuns {
		if curScope != nil {
			curScope.Close()
		}
		scope = NewScope(ctx)
		enterEvent := tag.EnterEvent()
		for _, se := range def.SpawnEffects {
			if se.StateTag != next.Tag {
				continue
			}
			enterCtx := newHandlerContext(def, next, enterEvent, self)
			scope.Fork(se.Handler, enterCtx, onSpawnFault)
		}
	}

	return Result{
		Previous:     current,
		Next:         next,
		LifecycleRan: lifecycleRuns,
		IsFinal:      def.IsFinal(next.Tag),
	}, true, scope, nil
}

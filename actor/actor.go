// Package actor implements the actor event loop (spec.md component F): a
// per-actor mailbox processor that drives the transition engine, enforces
// single-writer state semantics, and owns the scoped lifetime of spawned
// effects.
//
// Grounded on the teacher's Machine/interpret goroutine in
// internal/core/machine.go (`go m.interpret()` over a `select` on
// eventQueue/done), generalized to an unbounded mailbox plus the
// scope-close-before-scope-open step the teacher's flat machine has no
// concept of (spawn effects are new engine behavior layered onto the
// teacher's loop skeleton).
package actor

import (
	"context"
	"sync"

	"github.com/comalice/actorstate/actorlog"
	"github.com/comalice/actorstate/engine"
	"github.com/comalice/actorstate/inspect"
	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/tag"
)

const defaultMaxAlwaysIterations = 1000

// Actor is the internal runtime state of one live machine instance. Use
// Spawn to create one; external callers interact through the returned Ref.
type Actor struct {
	id          string
	machineType string

	def *machine.Definition
	idx *machine.Index

	cell *stateCell
	mbox *mailbox

	scopeMu sync.Mutex
	scope   *engine.Scope
	bgScope *engine.Scope

	listenersMu sync.Mutex
	listeners   map[int]func(tag.State)
	nextListener int

	changesMu   sync.Mutex
	changeSubs  map[int]chan tag.State
	nextChange  int

	sink  inspect.Sink
	log   *actorlog.Logger
	clock Clock

	maxAlwaysIterations int

	startOverride *tag.State

	stopOnce sync.Once
	stopped  chan struct{}
}

// Spawn builds and starts a live actor from a provisioned Definition
// (spec.md §4.F step 1). def must have an empty MissingSlots() result;
// otherwise Spawn returns *UnprovidedSlots without creating anything.
func Spawn(id string, def *machine.Definition, opts ...Option) (*Ref, error) {
	if missing := def.MissingSlots(); len(missing) > 0 {
		return nil, &UnprovidedSlots{Names: missing}
	}

	a := &Actor{
		id:                  id,
		machineType:         def.MachineType,
		def:                 def,
		idx:                 def.Index(),
		mbox:                newMailbox(),
		listeners:           make(map[int]func(tag.State)),
		changeSubs:          make(map[int]chan tag.State),
		clock:               systemClock,
		maxAlwaysIterations: defaultMaxAlwaysIterations,
		stopped:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = actorlog.NewFromEnv("actor")
	}

	initial := def.Initial
	if a.startOverride != nil {
		initial = *a.startOverride
	}
	a.cell = newStateCell(initial)

	self := selfRef{a: a}

	a.dispatch(inspect.Event{
		Kind:        inspect.KindSpawn,
		ActorID:     a.id,
		MachineType: a.machineType,
		State:       initial,
		TsMS:        a.clock(),
	})

	a.bgScope = engine.NewScope(context.Background())
	for _, be := range def.BackgroundEffects {
		hctx := engine.NewHandlerContext(a.def, initial, tag.InitEvent(), self)
		a.bgScope.Fork(be.Handler, hctx, a.onBackgroundFault)
	}

	a.scope = engine.NewScope(a.bgScope.Context())
	if a.startOverride == nil {
		engine.SpawnInitial(context.Background(), a.def, self, a.scope, a.onSpawnFault)
	}

	if a.def.IsFinal(initial.Tag) {
		a.teardown(initial)
		return &Ref{a: a}, nil
	}

	go a.loop(self)

	return &Ref{a: a}, nil
}

func (a *Actor) loop(self selfRef) {
	for {
		ev, ok := a.mbox.take()
		if !ok {
			return
		}

		current := a.cell.Get()
		a.dispatch(inspect.Event{
			Kind:        inspect.KindEvent,
			ActorID:     a.id,
			MachineType: a.machineType,
			State:       current,
			Event:       ev,
			TsMS:        a.clock(),
		})

		result, matched, newScope, err := a.applyLocked(current, ev, self)
		if err != nil {
			a.onTransitionDefect(current, ev, err)
			return
		}
		if !matched {
			continue
		}
		a.commit(result, newScope, ev)

		if a.runAlwaysChain(self) {
			return
		}

		if a.def.IsFinal(a.cell.Get().Tag) {
			a.teardown(a.cell.Get())
			return
		}
	}
}

// applyLocked guards the only place current/scope are read-then-used
// together; the loop goroutine is the sole caller so no lock is actually
// needed, but the scope field is also read by Stop() from another
// goroutine, so access to a.scope goes through scopeMu.
func (a *Actor) applyLocked(current tag.State, ev tag.Event, self selfRef) (engine.Result, bool, *engine.Scope, error) {
	a.scopeMu.Lock()
	scope := a.scope
	a.scopeMu.Unlock()
	return engine.Apply(context.Background(), a.def, a.idx, current, ev, self, scope, a.onSpawnFault)
}

// commit installs the engine's result into the state cell/scope and
// notifies listeners/change subscribers, per spec.md §4.E steps 5-6 and
// §4.F step 2 ("update the state cell and call listeners").
func (a *Actor) commit(result engine.Result, newScope *engine.Scope, ev tag.Event) {
	a.scopeMu.Lock()
	a.scope = newScope
	a.scopeMu.Unlock()

	a.cell.Set(result.Next)

	a.dispatch(inspect.Event{
		Kind:         inspect.KindTransition,
		ActorID:      a.id,
		MachineType:  a.machineType,
		Previous:     result.Previous,
		Next:         result.Next,
		Event:        ev,
		LifecycleRan: result.LifecycleRan,
		TsMS:         a.clock(),
	})

	a.notifyListeners(result.Next)
	a.notifyChanges(result.Next)
}

// runAlwaysChain applies eventless transitions for the current state until
// none fire, per spec.md §7's supplemented resolution of Open Question
// (ii). Returns true if the actor tore itself down mid-chain (a final
// state was reached, or a guard cycle was detected).
func (a *Actor) runAlwaysChain(self selfRef) bool {
	iterations := 0
	for {
		if a.def.IsFinal(a.cell.Get().Tag) {
			a.teardown(a.cell.Get())
			return true
		}

		current := a.cell.Get()
		a.scopeMu.Lock()
		scope := a.scope
		a.scopeMu.Unlock()

		result, matched, newScope, err := engine.AlwaysOnce(context.Background(), a.def, a.idx, current, self, scope, a.onSpawnFault)
		if err != nil {
			a.onTransitionDefect(current, tag.Event{}, err)
			return true
		}
		if !matched {
			return false
		}
		a.commit(result, newScope, tag.Event{})

		iterations++
		if iterations >= a.maxAlwaysIterations {
			a.log.WithActor(a.id, a.machineType).
				WithField("iterations", iterations).
				Warn("actor: always-transition chain exceeded iteration bound, treating as livelock")
			a.onTransitionDefect(a.cell.Get(), tag.Event{}, errAlwaysLivelock)
			return true
		}
	}
}

func (a *Actor) onTransitionDefect(state tag.State, ev tag.Event, err error) {
	a.dispatch(inspect.Event{
		Kind:        inspect.KindError,
		ActorID:     a.id,
		MachineType: a.machineType,
		State:       state,
		Event:       ev,
		Err:         err,
		Phase:       "transition",
		TsMS:        a.clock(),
	})
	a.log.WithError(a.id, a.machineType, err).Error("actor: transition defect, stopping")
	a.teardown(state)
}

// onSpawnFault and onBackgroundFault both re-raise the fault as an actor
// defect, per spec.md's error-event contract: a handler defect in any
// phase is logged as a `phase`-tagged error event and the actor does not
// continue (spec.md line 268: "re-raised as an actor defect — the actor
// does not continue").
func (a *Actor) onSpawnFault(err error) {
	state := a.cell.Get()
	a.dispatch(inspect.Event{
		Kind:        inspect.KindError,
		ActorID:     a.id,
		MachineType: a.machineType,
		State:       state,
		Err:         err,
		Phase:       "spawn",
		TsMS:        a.clock(),
	})
	a.log.WithError(a.id, a.machineType, err).Error("actor: spawn effect fault, stopping")
	a.teardown(state)
}

func (a *Actor) onBackgroundFault(err error) {
	state := a.cell.Get()
	a.dispatch(inspect.Event{
		Kind:        inspect.KindError,
		ActorID:     a.id,
		MachineType: a.machineType,
		State:       state,
		Err:         err,
		Phase:       "background",
		TsMS:        a.clock(),
	})
	a.log.WithError(a.id, a.machineType, err).Error("actor: background effect fault, stopping")
	a.teardown(state)
}

// Send enqueues ev on the mailbox (spec.md §4.F: "never blocks on a
// bounded boundary").
func (a *Actor) Send(ev tag.Event) error {
	return a.mbox.send(ev)
}

// can evaluates whether event e has a winning candidate transition against
// the current state, without mutating anything.
func (a *Actor) can(e string) bool {
	current := a.cell.Get()
	candidates := a.idx.Find(current.Tag, e)
	self := selfRef{a: a}
	hctx := engine.NewHandlerContext(a.def, current, tag.Event{Tag: e}, self)
	for i := range candidates {
		tr := &candidates[i]
		if tr.Guard == nil {
			return true
		}
		h, ok := a.def.GuardHandlers[tr.Guard.Name]
		if !ok {
			continue
		}
		ok2, err := h(tr.Guard.Params, hctx)
		if err == nil && ok2 {
			return true
		}
	}
	return false
}

func (a *Actor) addListener(fn func(tag.State)) func() {
	a.listenersMu.Lock()
	id := a.nextListener
	a.nextListener++
	a.listeners[id] = fn
	a.listenersMu.Unlock()

	return func() {
		a.listenersMu.Lock()
		delete(a.listeners, id)
		a.listenersMu.Unlock()
	}
}

// notifyListeners calls every subscriber synchronously in insertion order,
// swallowing panics/recovering so a faulty listener cannot stop the loop
// (spec.md §4.F: "Observer failures must NOT affect actor progress").
func (a *Actor) notifyListeners(s tag.State) {
	a.listenersMu.Lock()
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	a.listenersMu.Unlock()

	sortInts(ids)
	for _, id := range ids {
		a.listenersMu.Lock()
		fn, ok := a.listeners[id]
		a.listenersMu.Unlock()
		if !ok {
			continue
		}
		a.callListenerSafely(fn, s)
	}
}

func (a *Actor) callListenerSafely(fn func(tag.State), s tag.State) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithActor(a.id, a.machineType).WithField("panic", r).Warn("actor: listener panicked, ignoring")
		}
	}()
	fn(s)
}

func sortInts(ids []int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

func (a *Actor) addChangeSubscriber() <-chan tag.State {
	ch := make(chan tag.State, 8)
	a.changesMu.Lock()
	id := a.nextChange
	a.nextChange++
	a.changeSubs[id] = ch
	a.changesMu.Unlock()
	return ch
}

// notifyChanges fans the new state out to every Changes() subscriber,
// dropping on backpressure (same discipline as inspect.ChannelSink).
func (a *Actor) notifyChanges(s tag.State) {
	a.changesMu.Lock()
	defer a.changesMu.Unlock()
	for _, ch := range a.changeSubs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (a *Actor) closeChangeSubscribers() {
	a.changesMu.Lock()
	defer a.changesMu.Unlock()
	for id, ch := range a.changeSubs {
		close(ch)
		delete(a.changeSubs, id)
	}
}

// dispatch fans an inspection event to the configured sink, if any.
func (a *Actor) dispatch(ev inspect.Event) {
	inspect.Dispatch(a.sink, ev)
}

// Stop performs the idempotent shutdown sequence from spec.md §4.F:
// "emit stop inspection event with final state, shut down mailbox,
// interrupt loop fiber, close state scope, interrupt background fibers".
func (a *Actor) Stop() {
	a.teardown(a.cell.Get())
}

func (a *Actor) teardown(finalState tag.State) {
	a.stopOnce.Do(func() {
		a.dispatch(inspect.Event{
			Kind:        inspect.KindStop,
			ActorID:     a.id,
			MachineType: a.machineType,
			State:       finalState,
			TsMS:        a.clock(),
		})

		a.mbox.shutdown()

		a.scopeMu.Lock()
		scope := a.scope
		a.scopeMu.Unlock()
		if scope != nil {
			scope.Close()
		}
		if a.bgScope != nil {
			a.bgScope.Close()
		}

		a.closeChangeSubscribers()
		close(a.stopped)
	})
}

// errAlwaysLivelock is the defect surfaced when an always-transition chain
// exceeds its iteration bound.
var errAlwaysLivelock = &livelockError{}

type livelockError struct{}

func (*livelockError) Error() string {
	return "actor: always-transition chain exceeded iteration bound"
}

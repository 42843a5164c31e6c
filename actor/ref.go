package actor

import "github.com/comalice/actorstate/tag"

// selfRef is the capability handed to transition/spawn/background handlers
// via HandlerContext.Self — enqueue-only, per spec.md §3 "self_ref:
// Capability for handlers to enqueue events back into mailbox". Kept
// distinct from Ref so a handler cannot call Stop/Subscribe on itself
// through the back door.
type selfRef struct {
	a *Actor
}

func (s selfRef) Send(ev tag.Event) error {
	return s.a.Send(ev)
}

// Ref is the public ActorRef handle returned by Spawn (spec.md §4.F).
// Safe for concurrent use by any number of callers.
type Ref struct {
	a *Actor
}

// Send enqueues ev on the mailbox. Never blocks on a bounded boundary; only
// fails if the actor has already stopped.
func (r *Ref) Send(ev tag.Event) error {
	return r.a.Send(ev)
}

// State returns the current state by value. Consistent with the loop's
// last committed write, per spec.md's state-cell contract.
func (r *Ref) State() tag.State {
	return r.a.cell.Get()
}

// Changes returns a channel receiving every state replacement strictly
// after this call (spec.md §4.F: "only emits after initial"). The channel
// is closed when the actor stops. Delivery is non-blocking-with-drop, the
// same discipline as the teacher's ChannelPublisher — a slow reader misses
// intermediate states but never stalls the loop.
func (r *Ref) Changes() <-chan tag.State {
	return r.a.addChangeSubscriber()
}

// Snapshot is a synchronous read of the current state (spec.md's
// `snapshot_sync`; there is no suspending variant in this translation,
// since Go's State() already never blocks).
func (r *Ref) Snapshot() tag.State {
	return r.State()
}

// Matches reports whether the current state's tag equals t.
func (r *Ref) Matches(t string) bool {
	return r.a.cell.Get().Tag == t
}

// Can reports whether event tag e has a winning candidate transition
// against the current state, without mutating anything — it runs guard
// evaluation the same way Apply does, but discards the result.
func (r *Ref) Can(e string) bool {
	return r.a.can(e)
}

// Subscribe installs a synchronous observer, called after every committed
// state update (spec.md §4.F), in insertion order alongside every other
// subscriber. Returns an unsubscribe function; safe to call more than
// once.
func (r *Ref) Subscribe(fn func(tag.State)) (unsubscribe func()) {
	return r.a.addListener(fn)
}

// Stop performs orderly shutdown: idempotent, safe to call more than once
// or concurrently with the actor stopping itself by reaching a final
// state.
func (r *Ref) Stop() {
	r.a.Stop()
}

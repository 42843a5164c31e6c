package engine

import (
	"context"
	"sync"

	"github.com/comalice/actorstate/machine"
)

// Scope is the structured lifetime owning a state's spawn-effect fibers
// (spec.md: "State scope"). Closing a Scope cancels its context and blocks
// until every forked effect has returned — the invariant spec.md §9 calls
// "the linchpin of the design": a half-closed scope is a correctness bug.
//
// This generalizes the teacher's goroutine-per-"RunAsActor" cancellation in
// root statechart.go (a context.WithCancel plus deferred Stop) from a whole
// runtime's lifetime down to a single state's lifetime, repeated on every
// transition that changes state tag or requests reentry.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewScope opens a fresh scope as a child of parent.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Fork runs handler on a new goroutine under the scope, supplying hctx with
// the scope's own (cancellable) context. onFault is called, if non-nil,
// when handler panics or returns a non-nil error — effects have no
// user-visible success value (spec.md §4.D), so an error is only ever
// observable via this callback, which the actor runtime wires to its
// inspection sink.
func (s *Scope) Fork(handler machine.EffectHandler, hctx machine.HandlerContext, onFault func(err error)) {
	hctx.Ctx = s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil && onFault != nil {
				onFault(faultFromPanic(r))
			}
		}()
		if err := handler(hctx); err != nil && onFault != nil {
			onFault(err)
		}
	}()
}

// Close cancels the scope and waits for every forked fiber to observe the
// cancellation and return. Idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Done returns the scope's cancellation channel, for effect handlers that
// want to select on it directly instead of threading hctx.Ctx through.
func (s *Scope) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Context returns the scope's own (cancellable) context, so a caller can
// derive a child scope that is also cancelled when this one closes (e.g.
// the actor runtime's state scope is a child of its background scope).
func (s *Scope) Context() context.Context {
	return s.ctx
}

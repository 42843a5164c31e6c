package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/tag"
)

type fakeSelf struct {
	sent []tag.Event
}

func (f *fakeSelf) Send(ev tag.Event) error {
	f.sent = append(f.sent, ev)
	return nil
}

func counterDef() *machine.Definition {
	return &machine.Definition{
		Initial: tag.NewState("idle", 0),
		Transitions: []machine.Transition{
			{
				StateTag: "idle",
				EventTag: "inc",
				Handler: func(hctx machine.HandlerContext) (tag.State, error) {
					n, _ := hctx.State.Data.(int)
					return tag.NewState("idle", n+1), nil
				},
			},
			{
				StateTag: "idle",
				EventTag: "finish",
				Handler: func(hctx machine.HandlerContext) (tag.State, error) {
					return tag.NewState("done", hctx.State.Data), nil
				},
			},
		},
		FinalStates: map[string]struct{}{"done": {}},
	}
}

func TestApplyNoMatchLeavesStateAndScopeUntouched(t *testing.T) {
	def := counterDef()
	idx := def.Index()
	self := &fakeSelf{}
	scope := NewScope(context.Background())
	defer scope.Close()

	result, matched, newScope, err := Apply(context.Background(), def, idx, tag.NewState("idle", 0), tag.NewEvent("nope", nil), self, scope, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if matched {
		t.Fatal("Apply() matched = true, want false for unknown event")
	}
	if newScope != scope {
		t.Error("Apply() returned a different scope on a miss")
	}
	if result != (Result{}) {
		t.Errorf("Apply() result = %+v on a miss, want zero value", result)
	}
}

func TestApplySameTagDoesNotReopenScope(t *testing.T) {
	def := counterDef()
	idx := def.Index()
	self := &fakeSelf{}
	scope := NewScope(context.Background())
	defer scope.Close()

	result, matched, newScope, err := Apply(context.Background(), def, idx, tag.NewState("idle", 0), tag.NewEvent("inc", nil), self, scope, nil)
	if err != nil || !matched {
		t.Fatalf("Apply() = (%v, %v, _, %v), want matched", result, matched, err)
	}
	if result.LifecycleRan {
		t.Error("LifecycleRan = true for a same-tag, non-reentering transition")
	}
	if newScope != scope {
		t.Error("Apply() replaced the scope for a same-tag transition")
	}
	if result.Next.Data.(int) != 1 {
		t.Errorf("Next.Data = %v, want 1", result.Next.Data)
	}
}

func TestApplyTagChangeClosesAndReopensScope(t *testing.T) {
	def := counterDef()
	idx := def.Index()
	self := &fakeSelf{}
	scope := NewScope(context.Background())

	result, matched, newScope, err := Apply(context.Background(), def, idx, tag.NewState("idle", 5), tag.NewEvent("finish", nil), self, scope, nil)
	if err != nil || !matched {
		t.Fatalf("Apply() = (_, %v, _, %v), want matched", matched, err)
	}
	if !result.LifecycleRan {
		t.Error("LifecycleRan = false for a tag-changing transition")
	}
	if newScope == scope {
		t.Error("Apply() reused the outgoing scope across a tag change")
	}
	select {
	case <-scope.Done():
	default:
		t.Error("outgoing scope was not closed on a tag change")
	}
	if !result.IsFinal {
		t.Error("IsFinal = false for a transition into a registered final state")
	}
	newScope.Close()
}

func TestApplyReentrantSameTagClosesAndReopensScope(t *testing.T) {
	entered := make(chan struct{}, 2)
	cancelled := make(chan struct{}, 2)

	def := &machine.Definition{
		Initial: tag.NewState("idle", 0),
		Transitions: []machine.Transition{
			{
				StateTag: "idle",
				EventTag: "poke",
				Reenter:  true,
				Handler: func(hctx machine.HandlerContext) (tag.State, error) {
					n, _ := hctx.State.Data.(int)
					return tag.NewState("idle", n+1), nil
				},
			},
		},
		SpawnEffects: []machine.SpawnEffect{
			{
				StateTag: "idle",
				Handler: func(hctx machine.HandlerContext) error {
					entered <- struct{}{}
					<-hctx.Ctx.Done()
					cancelled <- struct{}{}
					return nil
				},
			},
		},
	}
	idx := def.Index()
	self := &fakeSelf{}

	initialScope := NewScope(context.Background())
	SpawnInitial(context.Background(), def, self, initialScope, nil)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("initial spawn effect never ran")
	}

	result, matched, newScope, err := Apply(context.Background(), def, idx, tag.NewState("idle", 0), tag.NewEvent("poke", nil), self, initialScope, nil)
	if err != nil || !matched {
		t.Fatalf("Apply() = (_, %v, _, %v), want matched", matched, err)
	}
	if !result.LifecycleRan {
		t.Error("LifecycleRan = false for a Reenter transition, want true even though the tag did not change")
	}
	if newScope == initialScope {
		t.Error("Apply() reused the outgoing scope for a Reenter transition")
	}

	select {
	case <-cancelled:
	default:
		t.Fatal("old scope's spawn effect was not cancelled before Apply() returned, want the outgoing scope closed on Reenter")
	}

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("reentering idle did not fork a fresh spawn effect under the new scope")
	}

	newScope.Close()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("new scope's spawn effect was never cancelled on Close()")
	}
}

func TestApplyGuardDefectIsFault(t *testing.T) {
	boom := errors.New("boom")
	def := &machine.Definition{
		Initial: tag.NewState("idle", nil),
		Transitions: []machine.Transition{
			{
				StateTag: "idle",
				EventTag: "go",
				Guard:    &machine.GuardRef{Name: "bad"},
				Handler:  func(hctx machine.HandlerContext) (tag.State, error) { return hctx.State, nil },
			},
		},
		Guards:        map[string]machine.ParamSchema{"bad": nil},
		GuardHandlers: map[string]machine.GuardHandler{"bad": func(params map[string]any, hctx machine.HandlerContext) (bool, error) { return false, boom }},
	}
	idx := def.Index()
	_, matched, _, err := Apply(context.Background(), def, idx, def.Initial, tag.NewEvent("go", nil), &fakeSelf{}, nil, nil)
	if matched {
		t.Fatal("Apply() matched = true on guard defect")
	}
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("Apply() error = %v, want *Fault", err)
	}
	if !errors.Is(err, boom) {
		t.Error("Fault does not unwrap to the underlying guard error")
	}
}

func TestApplyPureRunsHandlerWithoutScope(t *testing.T) {
	def := counterDef()
	idx := def.Index()
	result, matched, err := ApplyPure(context.Background(), def, idx, tag.NewState("idle", 0), tag.NewEvent("inc", nil), &fakeSelf{})
	if err != nil || !matched {
		t.Fatalf("ApplyPure() = (_, %v, %v), want matched", matched, err)
	}
	if result.Next.Data.(int) != 1 {
		t.Errorf("Next.Data = %v, want 1", result.Next.Data)
	}
}

func TestSpawnInitialForksRegisteredEffects(t *testing.T) {
	ran := make(chan struct{}, 1)
	def := &machine.Definition{
		Initial: tag.NewState("idle", nil),
		SpawnEffects: []machine.SpawnEffect{
			{StateTag: "idle", Handler: func(hctx machine.HandlerContext) error {
				ran <- struct{}{}
				return nil
			}},
		},
	}
	scope := NewScope(context.Background())
	SpawnInitial(context.Background(), def, &fakeSelf{}, scope, nil)
	select {
	case <-ran:
	case <-time.After(time.Second):
		scope.Close()
		t.Fatal("spawn effect for initial state did not run")
	}
	scope.Close()
}

func TestAlwaysOnceAppliesEventlessTransition(t *testing.T) {
	def := &machine.Definition{
		Initial: tag.NewState("a", nil),
		Transitions: []machine.Transition{
			{StateTag: "a", EventTag: "", Handler: func(hctx machine.HandlerContext) (tag.State, error) {
				return tag.NewState("b", nil), nil
			}},
		},
	}
	idx := def.Index()
	result, matched, _, err := AlwaysOnce(context.Background(), def, idx, def.Initial, &fakeSelf{}, nil, nil)
	if err != nil || !matched {
		t.Fatalf("AlwaysOnce() = (_, %v, _, %v), want matched", matched, err)
	}
	if result.Next.Tag != "b" {
		t.Errorf("Next.Tag = %q, want b", result.Next.Tag)
	}
}

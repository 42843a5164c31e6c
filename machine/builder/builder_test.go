package builder

import (
	"testing"

	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/tag"
)

func TestBuildSimpleMachine(t *testing.T) {
	def, err := New(tag.NewState("red", nil)).
		MachineType("traffic").
		On("red", "TIMER", func(hctx machine.HandlerContext) (tag.State, error) {
			return tag.NewState("green", nil), nil
		}).
		On("green", "TIMER", func(hctx machine.HandlerContext) (tag.State, error) {
			return tag.NewState("red", nil), nil
		}).
		Final("off").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if def.MachineType != "traffic" {
		t.Errorf("MachineType = %q, want traffic", def.MachineType)
	}
	if len(def.Transitions) != 2 {
		t.Fatalf("len(Transitions) = %d, want 2", len(def.Transitions))
	}
	if !def.IsFinal("off") {
		t.Error("IsFinal(\"off\") = false, want true")
	}
}

func TestBuildRejectsInvalidDefinition(t *testing.T) {
	_, err := New(tag.State{}).Build()
	if err == nil {
		t.Fatal("Build() with empty initial tag = nil error, want error")
	}
}

func TestBuildGuardedAndAlwaysTransitions(t *testing.T) {
	def, err := New(tag.NewState("idle", nil)).
		Guard("ready", nil).
		OnGuarded("idle", "go", machine.GuardRef{Name: "ready"}, func(hctx machine.HandlerContext) (tag.State, error) {
			return tag.NewState("running", nil), nil
		}).
		Always("running", func(hctx machine.HandlerContext) (tag.State, error) {
			return tag.NewState("done", nil), nil
		}).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	idx := def.Index()
	if len(idx.Find("idle", "go")) != 1 {
		t.Error("expected one candidate for idle/go")
	}
	if len(idx.Always("running")) != 1 {
		t.Error("expected one always-transition for running")
	}
}

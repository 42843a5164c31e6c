package machine

import (
	"testing"

	"github.com/comalice/actorstate/tag"
)

func noopHandler(hctx HandlerContext) (tag.State, error) {
	return hctx.State, nil
}

func TestValidateRequiresInitial(t *testing.T) {
	def := &Definition{}
	if err := def.Validate(); err == nil {
		t.Fatal("Validate() with empty Initial.Tag = nil error, want error")
	}
}

func TestValidateRejectsReservedInitial(t *testing.T) {
	def := &Definition{Initial: tag.NewState(tag.Init, nil)}
	if err := def.Validate(); err == nil {
		t.Fatal("Validate() with reserved initial tag = nil error, want error")
	}
}

func TestValidateCatchesUnknownGuard(t *testing.T) {
	def := &Definition{
		Initial: tag.NewState("idle", nil),
		Transitions: []Transition{
			{StateTag: "idle", EventTag: "go", Handler: noopHandler, Guard: &GuardRef{Name: "missing"}},
		},
	}
	if err := def.Validate(); err == nil {
		t.Fatal("Validate() with undeclared guard = nil error, want error")
	}
}

func TestMissingSlots(t *testing.T) {
	def := &Definition{
		Guards:         map[string]ParamSchema{"g": nil},
		Effects:        map[string]ParamSchema{"e": nil},
		GuardHandlers:  map[string]GuardHandler{},
		EffectHandlers: map[string]EffectSlotHandler{},
	}
	missing := def.MissingSlots()
	if len(missing) != 2 {
		t.Fatalf("MissingSlots() = %v, want 2 entries", missing)
	}
}

func TestIndexIsMemoized(t *testing.T) {
	def := &Definition{
		Initial: tag.NewState("idle", nil),
		Transitions: []Transition{
			{StateTag: "idle", EventTag: "go", Handler: noopHandler},
		},
	}
	first := def.Index()
	second := def.Index()
	if first != second {
		t.Error("Index() built a new Index on second call, want memoized pointer")
	}
}

func TestIsFinal(t *testing.T) {
	def := &Definition{FinalStates: map[string]struct{}{"done": {}}}
	if !def.IsFinal("done") {
		t.Error("IsFinal(\"done\") = false, want true")
	}
	if def.IsFinal("idle") {
		t.Error("IsFinal(\"idle\") = true, want false")
	}
}

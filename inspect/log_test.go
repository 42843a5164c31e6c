package inspect

import (
	"errors"
	"testing"

	"github.com/comalice/actorstate/actorlog"
	"github.com/comalice/actorstate/tag"
)

func TestLogSinkHandlesEveryKindWithoutPanicking(t *testing.T) {
	log := actorlog.New("test", "debug", "text")
	sink := NewLogSink(log)

	events := []Event{
		{Kind: KindSpawn, ActorID: "a1", State: tag.NewState("idle", nil)},
		{Kind: KindEvent, ActorID: "a1", Event: tag.NewEvent("go", nil)},
		{Kind: KindTransition, ActorID: "a1", Previous: tag.NewState("idle", nil), Next: tag.NewState("active", nil)},
		{Kind: KindEffect, ActorID: "a1", Phase: "spawn", Err: errors.New("boom")},
		{Kind: KindError, ActorID: "a1", Phase: "transition", Err: errors.New("defect")},
		{Kind: KindStop, ActorID: "a1", State: tag.NewState("active", nil)},
	}
	for _, ev := range events {
		sink.Inspect(ev)
	}
}

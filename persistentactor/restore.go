package persistentactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comalice/actorstate/actor"
	"github.com/comalice/actorstate/actorlog"
	"github.com/comalice/actorstate/engine"
	"github.com/comalice/actorstate/inspect"
	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/persistence"
	"github.com/comalice/actorstate/tag"
)

// noopSelf discards every Send call. Replay runs handlers outside any live
// actor's mailbox context, so self-sent events during replay have nowhere
// meaningful to go — spec.md §4.J: "async handlers during replay-to are
// skipped; they cannot be executed without the actor's context".
type noopSelf struct{}

func (noopSelf) Send(tag.Event) error { return nil }

// Restore loads any persisted state for id and, if something was found,
// replays journaled events past the snapshot's version (or from
// def.Initial if only a bare journal exists) through the transition
// engine's pure computation, then spawns a live actor at the resulting
// state without re-running its initial spawn effects.
//
// The bool return is false (with a nil *Actor and nil error) when nothing
// is persisted for id — spec.md §4.J: "no persisted actor" is not an
// error, just an empty restore.
func Restore(
	id string,
	def *machine.Definition,
	adapter persistence.Adapter,
	stateSchema persistence.StateSchema,
	eventSchema persistence.EventSchema,
	schedule SnapshotSchedule,
	sink inspect.Sink,
	opts ...actor.Option,
) (*Actor, bool, error) {
	ctx := context.Background()

	snap, err := adapter.LoadSnapshot(ctx, id, stateSchema)
	haveSnapshot := err == nil
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return nil, false, fmt.Errorf("persistentactor: load snapshot %s: %w", id, err)
	}

	var sinceVersion uint64
	var state tag.State
	if haveSnapshot {
		sinceVersion = snap.Version
		state = snap.State
	}

	events, err := adapter.LoadEvents(ctx, id, eventSchema, sinceVersion)
	if err != nil {
		return nil, false, fmt.Errorf("persistentactor: load events %s: %w", id, err)
	}

	if !haveSnapshot {
		if len(events) == 0 {
			return nil, false, nil
		}
		state = def.Initial
	}

	idx := def.Index()
	version := sinceVersion
	for _, pe := range events {
		result, matched, aerr := engine.ApplyPure(ctx, def, idx, state, pe.Event, noopSelf{})
		if aerr != nil {
			return nil, false, fmt.Errorf("persistentactor: replay %s at version %d: %w", id, pe.Version, aerr)
		}
		if matched {
			state = result.Next
		}
		version = pe.Version
	}

	createdAt := time.Time{}
	if meta, merr := adapter.LoadMetadata(ctx, id); merr == nil {
		createdAt = meta.CreatedAt
	} else if !errors.Is(merr, persistence.ErrNotFound) && !errors.Is(merr, persistence.ErrNotSupported) {
		return nil, false, fmt.Errorf("persistentactor: load metadata %s: %w", id, merr)
	}

	pa := &Actor{
		id:          id,
		machineType: def.MachineType,
		adapter:     adapter,
		schedule:    schedule,
		log:         actorlog.NewFromEnv("persistentactor"),
		clock:       time.Now,
		version:     version,
		createdAt:   createdAt,
	}
	if haveSnapshot {
		pa.lastSnapshotAt = snap.Timestamp
	}

	allOpts := append(append([]actor.Option{}, opts...),
		actor.WithInitialState(state),
		actor.WithInspectionSink(inspect.NewMultiSink(sink, pa)),
	)
	ref, err := actor.Spawn(id, def, allOpts...)
	if err != nil {
		return nil, false, err
	}
	pa.ref = ref
	pa.armSchedule()

	return pa, true, nil
}

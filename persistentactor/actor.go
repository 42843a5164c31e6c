// Package persistentactor wraps package actor with the durability layer
// spec.md component J describes: a monotonic version counter, an
// append-only journal, metadata bookkeeping, and scheduled snapshotting.
//
// Grounded on the teacher's internal/core/machine.go, which already
// carries a `version` field and snapshot/metadata plumbing on its flat
// Machine type (internal/core/registry.go's Registry persists
// MachineSnapshot/MachineMetadata) — generalized here from "the one
// machine type the teacher hardcodes" to any machine.Definition, and
// from the teacher's Load-time-only persistence to this spec's
// every-transition journal append plus background snapshot schedule.
package persistentactor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/comalice/actorstate/actor"
	"github.com/comalice/actorstate/actorlog"
	"github.com/comalice/actorstate/inspect"
	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/persistence"
)

// Actor wraps a live actor.Ref with the bookkeeping described above. It
// implements inspect.Sink itself, installing a combined sink (its own
// bookkeeping plus any caller-supplied sink) on the wrapped actor so the
// caller keeps its own observability without persistentactor needing to
// proxy every Ref method by hand.
type Actor struct {
	ref         *actor.Ref
	id          string
	machineType string
	adapter     persistence.Adapter
	log         *actorlog.Logger
	clock       func() time.Time

	mu             sync.Mutex
	version        uint64
	createdAt      time.Time
	lastActivity   time.Time
	lastSnapshotAt time.Time

	schedule     SnapshotSchedule
	stopSchedule func()
}

// Spawn starts a brand-new persistent actor at def.Initial, wiring
// version/journal/snapshot bookkeeping around a plain actor.Spawn call.
// adapter and schedule may be nil for callers that want the version
// counter without any storage (schedule == nil disables snapshotting
// entirely; adapter == nil skips every journal, snapshot and metadata
// write, since each adapter call is guarded by a nil check).
func Spawn(id string, def *machine.Definition, adapter persistence.Adapter, schedule SnapshotSchedule, sink inspect.Sink, opts ...actor.Option) (*Actor, error) {
	pa := &Actor{
		id:          id,
		machineType: def.MachineType,
		adapter:     adapter,
		schedule:    schedule,
		log:         actorlog.NewFromEnv("persistentactor"),
		clock:       time.Now,
	}

	allOpts := append(append([]actor.Option{}, opts...), actor.WithInspectionSink(inspect.NewMultiSink(sink, pa)))
	ref, err := actor.Spawn(id, def, allOpts...)
	if err != nil {
		return nil, err
	}
	pa.ref = ref
	pa.armSchedule()
	return pa, nil
}

func (a *Actor) armSchedule() {
	if a.schedule != nil {
		a.stopSchedule = a.schedule.Start(a.maybeSnapshot)
	}
}

// Ref returns the underlying actor reference for Send/State/Changes/etc.
func (a *Actor) Ref() *actor.Ref { return a.ref }

// Version returns the current journal version (spec.md §3: "version:
// monotonically increasing counter, bumped on every applied transition").
func (a *Actor) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// Stop tears down the wrapped actor. The inspection sink's KindStop
// handler halts the snapshot schedule as part of the same teardown.
func (a *Actor) Stop() {
	a.ref.Stop()
}

// Inspect implements inspect.Sink: version bump + journal append +
// metadata save on every committed transition, metadata save on spawn,
// and schedule teardown on stop.
func (a *Actor) Inspect(ev inspect.Event) {
	now := a.clock()

	switch ev.Kind {
	case inspect.KindSpawn:
		a.mu.Lock()
		if a.createdAt.IsZero() {
			a.createdAt = now
		}
		a.lastActivity = now
		meta := a.metadataLocked(ev.State.Tag)
		a.mu.Unlock()
		a.saveMetadata(meta)

	case inspect.KindTransition:
		a.mu.Lock()
		a.version++
		version := a.version
		a.lastActivity = now
		meta := a.metadataLocked(ev.Next.Tag)
		a.mu.Unlock()

		if a.adapter != nil {
			pe := persistence.PersistedEvent{Event: ev.Event, Version: version, Timestamp: now}
			if err := a.adapter.AppendEvent(context.Background(), a.id, pe); err != nil {
				a.log.WithError(a.id, a.machineType, err).Warn("persistentactor: journal append failed")
			}
			a.saveMetadata(meta)
		}

	case inspect.KindStop:
		if a.stopSchedule != nil {
			a.stopSchedule()
		}
	}
}

// metadataLocked builds the current ActorMetadata snapshot. Callers must
// hold a.mu.
func (a *Actor) metadataLocked(stateTag string) persistence.ActorMetadata {
	return persistence.ActorMetadata{
		ID:             a.id,
		MachineType:    a.machineType,
		CreatedAt:      a.createdAt,
		LastActivityAt: a.lastActivity,
		Version:        a.version,
		StateTag:       stateTag,
	}
}

func (a *Actor) saveMetadata(meta persistence.ActorMetadata) {
	if a.adapter == nil {
		return
	}
	if err := a.adapter.SaveMetadata(context.Background(), meta); err != nil && !errors.Is(err, persistence.ErrNotSupported) {
		a.log.WithError(a.id, a.machineType, err).Warn("persistentactor: metadata save failed")
	}
}

// maybeSnapshot is the schedule's due callback: it unconditionally writes
// the actor's current (state, version) — the schedule itself is what
// decides cadence, so by the time due fires a snapshot really is wanted.
// Failures are logged and swallowed; per spec.md §4.J a failed snapshot
// write must never terminate the actor.
func (a *Actor) maybeSnapshot() {
	if a.adapter == nil {
		return
	}

	a.mu.Lock()
	version := a.version
	a.mu.Unlock()

	ts := a.clock()
	snap := persistence.Snapshot{State: a.ref.Snapshot(), Version: version, Timestamp: ts}
	if err := a.adapter.SaveSnapshot(context.Background(), a.id, snap); err != nil {
		a.log.WithError(a.id, a.machineType, err).Warn("persistentactor: snapshot write failed")
		return
	}

	a.mu.Lock()
	a.lastSnapshotAt = ts
	a.mu.Unlock()
}

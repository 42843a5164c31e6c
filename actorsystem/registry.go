// Package actorsystem implements the actor system registry (spec.md
// component K): a keyed collection of live actors supporting spawn, stop,
// lookup, and bulk restore from a persistence.Adapter.
//
// Grounded on the teacher's internal/core/registry.go Registry interface,
// generalized from "versioned snapshot storage keyed by machine id" to
// "live actor bookkeeping keyed by actor id" — this package is the thing
// that calls persistentactor.Restore for every id a caller hands it,
// rather than storing snapshots itself.
package actorsystem

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/comalice/actorstate/actor"
	"github.com/comalice/actorstate/inspect"
	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/persistence"
	"github.com/comalice/actorstate/persistentactor"
)

// ErrDuplicateActor is returned by Spawn/Restore when id is already live.
var ErrDuplicateActor = errors.New("actorsystem: actor already registered")

// ErrMissingSchema is returned by RestoreAll when def.MachineType is
// empty — restoring without a machine type would risk applying the wrong
// Definition to a persisted actor that belongs to a different one.
var ErrMissingSchema = errors.New("actorsystem: machine type is required for RestoreAll")

// ErrUnknownActor is returned by Get/Stop for an id with no live entry.
var ErrUnknownActor = errors.New("actorsystem: no live actor with this id")

type entry struct {
	ref  *actor.Ref
	stop func()
}

// System is a registry of live actors keyed by id. The zero value is not
// usable; construct with New. Safe for concurrent use.
type System struct {
	adapter persistence.Adapter
	sink    inspect.Sink

	mu     sync.Mutex
	actors map[string]entry
}

// Option configures a System at construction time.
type Option func(*System)

// WithInspectionSink installs a sink every actor the system spawns or
// restores forwards its inspection events to, in addition to
// persistentactor's own bookkeeping sink.
func WithInspectionSink(sink inspect.Sink) Option {
	return func(s *System) { s.sink = sink }
}

// New builds a System backed by adapter. adapter may be nil if the caller
// only intends to use Spawn (never Restore/RestoreMany/RestoreAll).
func New(adapter persistence.Adapter, opts ...Option) *System {
	s := &System{
		adapter: adapter,
		actors:  make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn starts a brand-new, non-persistent actor and registers it under
// id. Returns ErrDuplicateActor if id is already live.
//
// The duplicate check and the id's reservation happen under the same lock
// acquisition (a zero-value entry with a nil ref, released or replaced
// once actor.Spawn returns) so two concurrent Spawn/Restore calls for the
// same id can never both pass the check and both construct an actor —
// the loser observes the reservation and fails fast instead of racing
// actor.Spawn to install the final entry.
func (s *System) Spawn(id string, def *machine.Definition, opts ...actor.Option) (*actor.Ref, error) {
	s.mu.Lock()
	if _, exists := s.actors[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateActor, id)
	}
	s.actors[id] = entry{}
	s.mu.Unlock()

	allOpts := opts
	if s.sink != nil {
		allOpts = append(append([]actor.Option{}, opts...), actor.WithInspectionSink(s.sink))
	}
	ref, err := actor.Spawn(id, def, allOpts...)
	if err != nil {
		s.mu.Lock()
		delete(s.actors, id)
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.actors[id] = entry{ref: ref, stop: ref.Stop}
	s.mu.Unlock()
	return ref, nil
}

// Restore loads and resumes one persisted actor, registering it under id
// if something was found. The bool mirrors persistentactor.Restore's: it
// is false with a nil ref and nil error when nothing is persisted for id.
//
// Reserves id under the lock before calling persistentactor.Restore, for
// the same reason Spawn does: Restore can be slow (it hits the adapter),
// and without the reservation two concurrent Restore/Spawn calls for the
// same id could both pass the duplicate check first.
func (s *System) Restore(
	id string,
	def *machine.Definition,
	stateSchema persistence.StateSchema,
	eventSchema persistence.EventSchema,
	schedule persistentactor.SnapshotSchedule,
	opts ...actor.Option,
) (*actor.Ref, bool, error) {
	s.mu.Lock()
	if _, exists := s.actors[id]; exists {
		s.mu.Unlock()
		return nil, false, fmt.Errorf("%w: %s", ErrDuplicateActor, id)
	}
	s.actors[id] = entry{}
	s.mu.Unlock()

	pa, ok, err := persistentactor.Restore(id, def, s.adapter, stateSchema, eventSchema, schedule, s.sink, opts...)
	if err != nil || !ok {
		s.mu.Lock()
		delete(s.actors, id)
		s.mu.Unlock()
		return nil, ok, err
	}

	s.mu.Lock()
	s.actors[id] = entry{ref: pa.Ref(), stop: pa.Stop}
	s.mu.Unlock()
	return pa.Ref(), true, nil
}

// RestoreMany restores each id independently, collecting per-id failures
// instead of aborting the whole batch on the first error.
func (s *System) RestoreMany(
	ids []string,
	def *machine.Definition,
	stateSchema persistence.StateSchema,
	eventSchema persistence.EventSchema,
	schedule persistentactor.SnapshotSchedule,
	opts ...actor.Option,
) (restored []string, failed map[string]error) {
	failed = make(map[string]error)
	for _, id := range ids {
		_, ok, err := s.Restore(id, def, stateSchema, eventSchema, schedule, opts...)
		if err != nil {
			failed[id] = err
			continue
		}
		if ok {
			restored = append(restored, id)
		}
	}
	return restored, failed
}

// RestoreAll lists every persisted actor whose metadata's MachineType
// matches def.MachineType (and, if filter is non-nil, for which filter
// also returns true), and restores each one. def.MachineType must be set;
// otherwise RestoreAll returns ErrMissingSchema without touching the
// adapter.
func (s *System) RestoreAll(
	def *machine.Definition,
	filter func(persistence.ActorMetadata) bool,
	stateSchema persistence.StateSchema,
	eventSchema persistence.EventSchema,
	schedule persistentactor.SnapshotSchedule,
	opts ...actor.Option,
) (restored []string, failed map[string]error, err error) {
	if def.MachineType == "" {
		return nil, nil, ErrMissingSchema
	}
	if s.adapter == nil {
		return nil, nil, errors.New("actorsystem: RestoreAll requires a non-nil adapter")
	}

	all, lerr := s.adapter.ListActors(context.Background())
	if lerr != nil {
		return nil, nil, fmt.Errorf("actorsystem: list actors: %w", lerr)
	}

	var ids []string
	for _, meta := range all {
		if meta.MachineType != def.MachineType {
			continue
		}
		if filter != nil && !filter(meta) {
			continue
		}
		ids = append(ids, meta.ID)
	}

	restored, failed = s.RestoreMany(ids, def, stateSchema, eventSchema, schedule, opts...)
	return restored, failed, nil
}

// Get returns the live ref registered under id, if any. An id reserved by
// an in-flight Spawn/Restore (construction not yet finished) is reported
// as not found, the same as before the reservation existed.
func (s *System) Get(id string) (*actor.Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.actors[id]
	if !ok || e.ref == nil {
		return nil, false
	}
	return e.ref, true
}

// Stop tears down and deregisters the actor under id. Reports
// ErrUnknownActor if nothing is registered under id, including an id
// whose Spawn/Restore is still in flight.
func (s *System) Stop(id string) error {
	s.mu.Lock()
	e, ok := s.actors[id]
	if ok && e.ref != nil {
		delete(s.actors, id)
	}
	s.mu.Unlock()
	if !ok || e.ref == nil {
		return fmt.Errorf("%w: %s", ErrUnknownActor, id)
	}
	e.stop()
	return nil
}

// StopAll tears down and deregisters every live actor.
func (s *System) StopAll() {
	s.mu.Lock()
	entries := make([]entry, 0, len(s.actors))
	for id, e := range s.actors {
		if e.ref == nil {
			continue
		}
		entries = append(entries, e)
		delete(s.actors, id)
	}
	s.mu.Unlock()
	for _, e := range entries {
		e.stop()
	}
}

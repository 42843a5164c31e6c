// Package persistence defines the storage contract for persistent actors
// (spec.md §6 "Persistence adapter") and three concrete adapters.
//
// State and Event payloads are opaque `any` values at the machine layer
// (package tag); persisting them requires a caller-supplied Schema that
// knows how to decode a tag's raw JSON payload back into its concrete Go
// type — spec.md §6: "`_tag` is a required schema field in state and
// event encodings", naming schema-driven decode as part of the contract
// rather than an implementation detail.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/comalice/actorstate/tag"
)

// ErrNotFound is returned by LoadSnapshot and LoadMetadata when nothing is
// persisted for an id; LoadEvents returns an empty list and no error instead.
var ErrNotFound = errors.New("persistence: not found")

// ErrNotSupported is returned by the optional ActorMetadata operations on
// adapters that don't implement them.
var ErrNotSupported = errors.New("persistence: operation not supported by this adapter")

// StateSchema decodes a state's raw Data payload for the given tag.
type StateSchema func(stateTag string, raw json.RawMessage) (any, error)

// EventSchema decodes an event's raw Data payload for the given tag.
type EventSchema func(eventTag string, raw json.RawMessage) (any, error)

// PersistedEvent is one journal entry: {event, version, timestamp}
// (spec.md §3).
type PersistedEvent struct {
	Event     tag.Event
	Version   uint64
	Timestamp time.Time
}

// Snapshot is {state, version, timestamp} (spec.md §3).
type Snapshot struct {
	State     tag.State
	Version   uint64
	Timestamp time.Time
}

// ActorMetadata is {id, machine_type, created_at, last_activity_at,
// version, state_tag} (spec.md §3).
type ActorMetadata struct {
	ID             string
	MachineType    string
	CreatedAt      time.Time
	LastActivityAt time.Time
	Version        uint64
	StateTag       string
}

// Adapter is the persistence contract (spec.md §6). ListActors,
// SaveMetadata, and LoadMetadata are optional: adapters that don't support
// them return ErrNotSupported.
type Adapter interface {
	LoadSnapshot(ctx context.Context, id string, schema StateSchema) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, id string, snap Snapshot) error

	// LoadEvents returns events with Version > sinceVersion, ascending.
	LoadEvents(ctx context.Context, id string, schema EventSchema, sinceVersion uint64) ([]PersistedEvent, error)
	AppendEvent(ctx context.Context, id string, ev PersistedEvent) error

	ListActors(ctx context.Context) ([]ActorMetadata, error)
	SaveMetadata(ctx context.Context, meta ActorMetadata) error
	LoadMetadata(ctx context.Context, id string) (*ActorMetadata, error)
}

// wireState/wireEvent are the on-disk/on-wire encodings: the tag decoded
// eagerly, the payload kept as raw bytes until a Schema is available to
// interpret it.
type wireState struct {
	Tag  string          `json:"tag"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wireEvent struct {
	Tag  string          `json:"tag"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encodeState(s tag.State) (wireState, error) {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return wireState{}, err
	}
	return wireState{Tag: s.Tag, Data: raw}, nil
}

func decodeState(w wireState, schema StateSchema) (tag.State, error) {
	if schema == nil || len(w.Data) == 0 {
		return tag.State{Tag: w.Tag}, nil
	}
	data, err := schema(w.Tag, w.Data)
	if err != nil {
		return tag.State{}, err
	}
	return tag.State{Tag: w.Tag, Data: data}, nil
}

func encodeEvent(e tag.Event) (wireEvent, error) {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return wireEvent{}, err
	}
	return wireEvent{Tag: e.Tag, Data: raw}, nil
}

func decodeEvent(w wireEvent, schema EventSchema) (tag.Event, error) {
	if schema == nil || len(w.Data) == 0 {
		return tag.Event{Tag: w.Tag}, nil
	}
	data, err := schema(w.Tag, w.Data)
	if err != nil {
		return tag.Event{}, err
	}
	return tag.Event{Tag: w.Tag, Data: data}, nil
}

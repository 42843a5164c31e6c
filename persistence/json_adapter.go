package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JSONAdapter persists each actor as a pair of files under dir: a snapshot
// file (`<id>.snapshot.json`, overwritten on every SaveSnapshot) and an
// append-only newline-delimited journal (`<id>.journal.ndjson`).
//
// Direct port of the teacher's JSONPersister
// (internal/production/persister.go), generalized from one MachineSnapshot
// file to this spec's snapshot-plus-journal pair.
type JSONAdapter struct {
	dir string
	mu  sync.Mutex
}

// NewJSONAdapter creates a JSONAdapter, ensuring dir exists.
func NewJSONAdapter(dir string) (*JSONAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: mkdir %s: %w", dir, err)
	}
	return &JSONAdapter{dir: dir}, nil
}

func (a *JSONAdapter) snapshotPath(id string) string { return filepath.Join(a.dir, id+".snapshot.json") }
func (a *JSONAdapter) journalPath(id string) string  { return filepath.Join(a.dir, id+".journal.ndjson") }
func (a *JSONAdapter) metadataPath(id string) string { return filepath.Join(a.dir, id+".metadata.json") }

type jsonSnapshotWire struct {
	State     wireState `json:"state"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type jsonEventWire struct {
	Event     wireEvent `json:"event"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func (a *JSONAdapter) SaveSnapshot(ctx context.Context, id string, snap Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ws, err := encodeState(snap.State)
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot state: %w", err)
	}
	wire := jsonSnapshotWire{State: ws, Version: snap.Version, Timestamp: snap.Timestamp}

	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(a.snapshotPath(id), data, 0o644); err != nil {
		return fmt.Errorf("persistence: write snapshot %s: %w", id, err)
	}
	return nil
}

func (a *JSONAdapter) LoadSnapshot(ctx context.Context, id string, schema StateSchema) (*Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.snapshotPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("persistence: read snapshot %s: %w", id, err)
	}

	var wire jsonSnapshotWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal snapshot %s: %w", id, err)
	}
	state, err := decodeState(wire.State, schema)
	if err != nil {
		return nil, fmt.Errorf("persistence: decode snapshot state %s: %w", id, err)
	}
	return &Snapshot{State: state, Version: wire.Version, Timestamp: wire.Timestamp}, nil
}

func (a *JSONAdapter) AppendEvent(ctx context.Context, id string, ev PersistedEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	we, err := encodeEvent(ev.Event)
	if err != nil {
		return fmt.Errorf("persistence: marshal event: %w", err)
	}
	wire := jsonEventWire{Event: we, Version: ev.Version, Timestamp: ev.Timestamp}
	line, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("persistence: marshal journal entry: %w", err)
	}

	f, err := os.OpenFile(a.journalPath(id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("persistence: open journal %s: %w", id, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("persistence: append journal %s: %w", id, err)
	}
	return nil
}

func (a *JSONAdapter) LoadEvents(ctx context.Context, id string, schema EventSchema, sinceVersion uint64) ([]PersistedEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(a.journalPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: open journal %s: %w", id, err)
	}
	defer f.Close()

	var out []PersistedEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wire jsonEventWire
		if err := json.Unmarshal(line, &wire); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal journal entry %s: %w", id, err)
		}
		if wire.Version <= sinceVersion {
			continue
		}
		ev, err := decodeEvent(wire.Event, schema)
		if err != nil {
			return nil, fmt.Errorf("persistence: decode journal event %s: %w", id, err)
		}
		out = append(out, PersistedEvent{Event: ev, Version: wire.Version, Timestamp: wire.Timestamp})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("persistence: scan journal %s: %w", id, err)
	}
	return out, nil
}

func (a *JSONAdapter) SaveMetadata(ctx context.Context, meta ActorMetadata) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal metadata: %w", err)
	}
	if err := os.WriteFile(a.metadataPath(meta.ID), data, 0o644); err != nil {
		return fmt.Errorf("persistence: write metadata %s: %w", meta.ID, err)
	}
	return nil
}

func (a *JSONAdapter) LoadMetadata(ctx context.Context, id string) (*ActorMetadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.metadataPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("persistence: read metadata %s: %w", id, err)
	}
	var meta ActorMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal metadata %s: %w", id, err)
	}
	return &meta, nil
}

func (a *JSONAdapter) ListActors(ctx context.Context) ([]ActorMetadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("persistence: read dir %s: %w", a.dir, err)
	}
	var out []ActorMetadata
	for _, e := range entries {
		name := e.Name()
		const suffix = ".metadata.json"
		if e.IsDir() || len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.dir, name))
		if err != nil {
			continue
		}
		var meta ActorMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

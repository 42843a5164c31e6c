package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLAdapter is JSONAdapter's sibling using gopkg.in/yaml.v3, following
// the teacher's YAMLPersister (internal/production/persister.go). The
// journal file is a stream of `---`-separated YAML documents, one per
// appended event, scanned back in LoadEvents the same way a multi-document
// YAML stream is conventionally read.
type YAMLAdapter struct {
	dir string
	mu  sync.Mutex
}

// NewYAMLAdapter creates a YAMLAdapter, ensuring dir exists.
func NewYAMLAdapter(dir string) (*YAMLAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: mkdir %s: %w", dir, err)
	}
	return &YAMLAdapter{dir: dir}, nil
}

func (a *YAMLAdapter) snapshotPath(id string) string { return filepath.Join(a.dir, id+".snapshot.yaml") }
func (a *YAMLAdapter) journalPath(id string) string  { return filepath.Join(a.dir, id+".journal.yaml") }
func (a *YAMLAdapter) metadataPath(id string) string { return filepath.Join(a.dir, id+".metadata.yaml") }

type yamlSnapshotWire struct {
	State     wireState `yaml:"state"`
	Version   uint64    `yaml:"version"`
	Timestamp time.Time `yaml:"timestamp"`
}

type yamlEventWire struct {
	Event     wireEvent `yaml:"event"`
	Version   uint64    `yaml:"version"`
	Timestamp time.Time `yaml:"timestamp"`
}

func (a *YAMLAdapter) SaveSnapshot(ctx context.Context, id string, snap Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ws, err := encodeState(snap.State)
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot state: %w", err)
	}
	wire := yamlSnapshotWire{State: ws, Version: snap.Version, Timestamp: snap.Timestamp}

	data, err := yaml.Marshal(wire)
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(a.snapshotPath(id), data, 0o644); err != nil {
		return fmt.Errorf("persistence: write snapshot %s: %w", id, err)
	}
	return nil
}

func (a *YAMLAdapter) LoadSnapshot(ctx context.Context, id string, schema StateSchema) (*Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.snapshotPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("persistence: read snapshot %s: %w", id, err)
	}

	var wire yamlSnapshotWire
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal snapshot %s: %w", id, err)
	}
	state, err := decodeState(wire.State, schema)
	if err != nil {
		return nil, fmt.Errorf("persistence: decode snapshot state %s: %w", id, err)
	}
	return &Snapshot{State: state, Version: wire.Version, Timestamp: wire.Timestamp}, nil
}

func (a *YAMLAdapter) AppendEvent(ctx context.Context, id string, ev PersistedEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	we, err := encodeEvent(ev.Event)
	if err != nil {
		return fmt.Errorf("persistence: marshal event: %w", err)
	}
	wire := yamlEventWire{Event: we, Version: ev.Version, Timestamp: ev.Timestamp}
	doc, err := yaml.Marshal(wire)
	if err != nil {
		return fmt.Errorf("persistence: marshal journal entry: %w", err)
	}

	f, err := os.OpenFile(a.journalPath(id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("persistence: open journal %s: %w", id, err)
	}
	defer f.Close()

	if _, err := f.WriteString("---\n"); err != nil {
		return fmt.Errorf("persistence: append journal separator %s: %w", id, err)
	}
	if _, err := f.Write(doc); err != nil {
		return fmt.Errorf("persistence: append journal %s: %w", id, err)
	}
	return nil
}

func (a *YAMLAdapter) LoadEvents(ctx context.Context, id string, schema EventSchema, sinceVersion uint64) ([]PersistedEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.journalPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: read journal %s: %w", id, err)
	}

	var out []PersistedEvent
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var wire yamlEventWire
		if err := dec.Decode(&wire); err != nil {
			break
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
	return out, nil
}

func (a *YAMLAdapter) SaveMetadata(ctx context.Context, meta ActorMetadata) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("persistence: marshal metadata: %w", err)
	}
	if err := os.WriteFile(a.metadataPath(meta.ID), data, 0o644); err != nil {
		return fmt.Errorf("persistence: write metadata %s: %w", meta.ID, err)
	}
	return nil
}

func (a *YAMLAdapter) LoadMetadata(ctx context.Context, id string) (*ActorMetadata, error) {
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
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal metadata %s: %w", id, err)
	}
	return &meta, nil
}

func (a *YAMLAdapter) ListActors(ctx context.Context) ([]ActorMetadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("persistence: read dir %s: %w", a.dir, err)
	}
	var out []ActorMetadata
	for _, e := range entries {
		name := e.Name()
		const suffix = ".metadata.yaml"
		if e.IsDir() || len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.dir, name))
		if err != nil {
			continue
		}
		var meta ActorMetadata
		if err := yaml.Unmarshal(data, &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresAdapter is the domain-stack persistence adapter: three tables,
// `actor_snapshots`, `actor_events` and `actor_metadata`, with an upsert-on-conflict write
// path for snapshots exactly like r3e-network-service_layer's
// services/indexer/storage.go `SaveTransaction`, and the same connection
// pool tuning (`SetMaxOpenConns(25)`, `SetMaxIdleConns(5)`,
// `SetConnMaxLifetime(5*time.Minute)`).
//
// Schema (caller-provisioned, not created here — matching Storage's
// assumption that migrations are an external concern):
//
//	CREATE TABLE actor_snapshots (
//	  actor_id    TEXT PRIMARY KEY,
//	  version     BIGINT NOT NULL,
//	  state_tag   TEXT NOT NULL,
//	  state_data  JSONB,
//	  updated_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE actor_events (
//	  actor_id    TEXT NOT NULL,
//	  version     BIGINT NOT NULL,
//	  event_tag   TEXT NOT NULL,
//	  event_data  JSONB,
//	  created_at  TIMESTAMPTZ NOT NULL,
//	  PRIMARY KEY (actor_id, version)
//	);
//	CREATE TABLE actor_metadata (
//	  actor_id           TEXT PRIMARY KEY,
//	  machine_type       TEXT NOT NULL,
//	  created_at         TIMESTAMPTZ NOT NULL,
//	  last_activity_at   TIMESTAMPTZ NOT NULL,
//	  version            BIGINT NOT NULL,
//	  state_tag          TEXT NOT NULL
//	);
type PostgresAdapter struct {
	db *sql.DB
}

// NewPostgresAdapter opens a connection pool against dsn and verifies
// connectivity, mirroring indexer.NewStorage's open-then-ping sequence.
func NewPostgresAdapter(dsn string) (*PostgresAdapter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: ping database: %w", err)
	}

	return &PostgresAdapter{db: db}, nil
}

// Close closes the underlying connection pool.
func (a *PostgresAdapter) Close() error {
	return a.db.Close()
}

func (a *PostgresAdapter) SaveSnapshot(ctx context.Context, id string, snap Snapshot) error {
	ws, err := encodeState(snap.State)
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot state: %w", err)
	}

	query := `
		INSERT INTO actor_snapshots (actor_id, version, state_tag, state_data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (actor_id) DO UPDATE SET
			version = EXCLUDED.version,
			state_tag = EXCLUDED.state_tag,
			state_data = EXCLUDED.state_data,
			updated_at = EXCLUDED.updated_at
	`
	_, err = a.db.ExecContext(ctx, query, id, snap.Version, ws.Tag, []byte(ws.Data), snap.Timestamp)
	if err != nil {
		return fmt.Errorf("persistence: save snapshot %s: %w", id, err)
	}
	return nil
}

func (a *PostgresAdapter) LoadSnapshot(ctx context.Context, id string, schema StateSchema) (*Snapshot, error) {
	query := `SELECT version, state_tag, state_data, updated_at FROM actor_snapshots WHERE actor_id = $1`
	var version uint64
	var stateTag string
	var rawData []byte
	var updatedAt time.Time
	err := a.db.QueryRowContext(ctx, query, id).Scan(&version, &stateTag, &rawData, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: load snapshot %s: %w", id, err)
	}

	state, err := decodeState(wireState{Tag: stateTag, Data: json.RawMessage(rawData)}, schema)
	if err != nil {
		return nil, fmt.Errorf("persistence: decode snapshot state %s: %w", id, err)
	}
	return &Snapshot{State: state, Version: version, Timestamp: updatedAt}, nil
}

func (a *PostgresAdapter) AppendEvent(ctx context.Context, id string, ev PersistedEvent) error {
	we, err := encodeEvent(ev.Event)
	if err != nil {
		return fmt.Errorf("persistence: marshal event: %w", err)
	}

	query := `
		INSERT INTO actor_events (actor_id, version, event_tag, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (actor_id, version) DO NOTHING
	`
	_, err = a.db.ExecContext(ctx, query, id, ev.Version, we.Tag, []byte(we.Data), ev.Timestamp)
	if err != nil {
		return fmt.Errorf("persistence: append event %s: %w", id, err)
	}
	return nil
}

func (a *PostgresAdapter) LoadEvents(ctx context.Context, id string, schema EventSchema, sinceVersion uint64) ([]PersistedEvent, error) {
	query := `
		SELECT version, event_tag, event_data, created_at
		FROM actor_events
		WHERE actor_id = $1 AND version > $2
		ORDER BY version ASC
	`
	rows, err := a.db.QueryContext(ctx, query, id, sinceVersion)
	if err != nil {
		return nil, fmt.Errorf("persistence: load events %s: %w", id, err)
	}
	defer rows.Close()

	var out []PersistedEvent
	for rows.Next() {
		var version uint64
		var eventTag string
		var rawData []byte
		var createdAt time.Time
		if err := rows.Scan(&version, &eventTag, &rawData, &createdAt); err != nil {
			return nil, fmt.Errorf("persistence: scan event %s: %w", id, err)
		}
		ev, err := decodeEvent(wireEvent{Tag: eventTag, Data: json.RawMessage(rawData)}, schema)
		if err != nil {
			return nil, fmt.Errorf("persistence: decode event %s: %w", id, err)
		}
		out = append(out, PersistedEvent{Event: ev, Version: version, Timestamp: createdAt})
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) SaveMetadata(ctx context.Context, meta ActorMetadata) error {
	query := `
		INSERT INTO actor_metadata (actor_id, machine_type, created_at, last_activity_at, version, state_tag)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (actor_id) DO UPDATE SET
			last_activity_at = EXCLUDED.last_activity_at,
			version = EXCLUDED.version,
			state_tag = EXCLUDED.state_tag
	`
	_, err := a.db.ExecContext(ctx, query, meta.ID, meta.MachineType, meta.CreatedAt, meta.LastActivityAt, meta.Version, meta.StateTag)
	if err != nil {
		return fmt.Errorf("persistence: save metadata %s: %w", meta.ID, err)
	}
	return nil
}

func (a *PostgresAdapter) LoadMetadata(ctx context.Context, id string) (*ActorMetadata, error) {
	query := `SELECT actor_id, machine_type, created_at, last_activity_at, version, state_tag FROM actor_metadata WHERE actor_id = $1`
	var meta ActorMetadata
	err := a.db.QueryRowContext(ctx, query, id).Scan(&meta.ID, &meta.MachineType, &meta.CreatedAt, &meta.LastActivityAt, &meta.Version, &meta.StateTag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: load metadata %s: %w", id, err)
	}
	return &meta, nil
}

func (a *PostgresAdapter) ListActors(ctx context.Context) ([]ActorMetadata, error) {
	query := `SELECT actor_id, machine_type, created_at, last_activity_at, version, state_tag FROM actor_metadata ORDER BY actor_id`
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("persistence: list actors: %w", err)
	}
	defer rows.Close()

	var out []ActorMetadata
	for rows.Next() {
		var meta ActorMetadata
		if err := rows.Scan(&meta.ID, &meta.MachineType, &meta.CreatedAt, &meta.LastActivityAt, &meta.Version, &meta.StateTag); err != nil {
			return nil, fmt.Errorf("persistence: scan actor metadata: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

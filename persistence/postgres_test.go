package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/actorstate/tag"
)

func TestPostgresAdapterSaveSnapshotUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	a := &PostgresAdapter{db: db}

	snap := Snapshot{State: tag.NewState("idle", 1), Version: 2, Timestamp: time.Unix(100, 0).UTC()}
	mock.ExpectExec("INSERT INTO actor_snapshots").
		WithArgs("a1", snap.Version, "idle", sqlmock.AnyArg(), snap.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = a.SaveSnapshot(context.Background(), "a1", snap)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapterLoadSnapshotNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	a := &PostgresAdapter{db: db}

	mock.ExpectQuery("SELECT version, state_tag, state_data, updated_at FROM actor_snapshots").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = a.LoadSnapshot(context.Background(), "missing", intStateSchema)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapterLoadEventsOrdersByVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	a := &PostgresAdapter{db: db}

	rows := sqlmock.NewRows([]string{"version", "event_tag", "event_data", "created_at"}).
		AddRow(uint64(1), "inc", []byte("1"), time.Unix(1, 0).UTC()).
		AddRow(uint64(2), "inc", []byte("2"), time.Unix(2, 0).UTC())
	mock.ExpectQuery("SELECT version, event_tag, event_data, created_at FROM actor_events").
		WithArgs("a1", uint64(0)).
		WillReturnRows(rows)

	events, err := a.LoadEvents(context.Background(), "a1", intEventSchema, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Version)
	assert.Equal(t, uint64(2), events[1].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapterAppendEventIgnoresConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	a := &PostgresAdapter{db: db}

	ev := PersistedEvent{Event: tag.NewEvent("inc", 1), Version: 1, Timestamp: time.Unix(1, 0).UTC()}
	mock.ExpectExec("INSERT INTO actor_events").
		WithArgs("a1", ev.Version, "inc", sqlmock.AnyArg(), ev.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = a.AppendEvent(context.Background(), "a1", ev)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package actorsystem

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/actorstate/actor"
	"github.com/comalice/actorstate/machine"
	"github.com/comalice/actorstate/machine/builder"
	"github.com/comalice/actorstate/persistence"
	"github.com/comalice/actorstate/tag"
)

func intStateSchema(_ string, raw json.RawMessage) (any, error) {
	var n int
	err := json.Unmarshal(raw, &n)
	return n, err
}

func intEventSchema(_ string, raw json.RawMessage) (any, error) {
	var n int
	err := json.Unmarshal(raw, &n)
	return n, err
}

func counterDef(t *testing.T) *machine.Definition {
	t.Helper()
	def, err := builder.New(tag.NewState("idle", 0)).
		MachineType("counter").
		On("idle", "inc", func(hctx machine.HandlerContext) (tag.State, error) {
			n, _ := hctx.State.Data.(int)
			return tag.NewState("idle", n+1), nil
		}).
		Build()
	require.NoError(t, err)
	return def
}

func TestSpawnRegistersAndRejectsDuplicateID(t *testing.T) {
	s := New(nil)
	ref, err := s.Spawn("a1", counterDef(t))
	require.NoError(t, err)
	defer s.StopAll()

	got, ok := s.Get("a1")
	assert.True(t, ok)
	assert.Same(t, ref, got)

	_, err = s.Spawn("a1", counterDef(t))
	assert.ErrorIs(t, err, ErrDuplicateActor)
}

func TestSpawnConcurrentSameIDOnlyOneWins(t *testing.T) {
	s := New(nil)
	defer s.StopAll()

	const n = 8
	var wg sync.WaitGroup
	refs := make([]*actor.Ref, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			refs[i], errs[i] = s.Spawn("racer", counterDef(t))
		}(i)
	}
	wg.Wait()

	var successes, duplicates int
	for i := 0; i < n; i++ {
		switch {
		case errs[i] == nil:
			successes++
			require.NotNil(t, refs[i])
		case errors.Is(errs[i], ErrDuplicateActor):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	assert.Equal(t, 1, successes, "exactly one Spawn call should win the race")
	assert.Equal(t, n-1, duplicates)

	got, ok := s.Get("racer")
	assert.True(t, ok)
	assert.NotNil(t, got)
}

func TestGetAndStopUnknownActor(t *testing.T) {
	s := New(nil)
	_, ok := s.Get("missing")
	assert.False(t, ok)

	err := s.Stop("missing")
	assert.ErrorIs(t, err, ErrUnknownActor)
}

func TestStopDeregistersTheActor(t *testing.T) {
	s := New(nil)
	_, err := s.Spawn("a1", counterDef(t))
	require.NoError(t, err)

	require.NoError(t, s.Stop("a1"))
	_, ok := s.Get("a1")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Stop("a1"), ErrUnknownActor)
}

func TestRestoreReregistersAPersistedActor(t *testing.T) {
	adapter, err := persistence.NewJSONAdapter(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, adapter.SaveMetadata(context.Background(), persistence.ActorMetadata{
		ID: "a1", MachineType: "counter", Version: 2, StateTag: "idle",
	}))
	require.NoError(t, adapter.SaveSnapshot(context.Background(), "a1", persistence.Snapshot{
		State: tag.NewState("idle", 2), Version: 2, Timestamp: time.Unix(1, 0).UTC(),
	}))

	s := New(adapter)
	ref, found, err := s.Restore("a1", counterDef(t), intStateSchema, intEventSchema, nil)
	require.NoError(t, err)
	require.True(t, found)
	defer s.StopAll()

	assert.Equal(t, 2, ref.State().Data)

	_, found, err = s.Restore("nobody", counterDef(t), intStateSchema, intEventSchema, nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRestoreRejectsDuplicateID(t *testing.T) {
	adapter, err := persistence.NewJSONAdapter(t.TempDir())
	require.NoError(t, err)

	s := New(adapter)
	_, err = s.Spawn("a1", counterDef(t))
	require.NoError(t, err)
	defer s.StopAll()

	_, _, err = s.Restore("a1", counterDef(t), intStateSchema, intEventSchema, nil)
	assert.ErrorIs(t, err, ErrDuplicateActor)
}

func TestRestoreAllRequiresMachineType(t *testing.T) {
	adapter, err := persistence.NewJSONAdapter(t.TempDir())
	require.NoError(t, err)
	s := New(adapter)

	bare, err := builder.New(tag.NewState("idle", 0)).Build()
	require.NoError(t, err)

	_, _, err = s.RestoreAll(bare, nil, intStateSchema, intEventSchema, nil)
	assert.ErrorIs(t, err, ErrMissingSchema)
}

func TestRestoreAllFiltersByMachineTypeAndFilterFunc(t *testing.T) {
	dir := t.TempDir()
	adapter, err := persistence.NewJSONAdapter(dir)
	require.NoError(t, err)

	for _, id := range []string{"keep1", "keep2", "skip-other-type"} {
		mt := "counter"
		if id == "skip-other-type" {
			mt = "other"
		}
		require.NoError(t, adapter.SaveMetadata(context.Background(), persistence.ActorMetadata{
			ID: id, MachineType: mt, Version: 0, StateTag: "idle",
		}))
		require.NoError(t, adapter.SaveSnapshot(context.Background(), id, persistence.Snapshot{
			State: tag.NewState("idle", 0), Version: 0, Timestamp: time.Unix(1, 0).UTC(),
		}))
	}

	s := New(adapter)
	restored, failed, err := s.RestoreAll(counterDef(t), func(m persistence.ActorMetadata) bool {
		return m.ID != "keep2"
	}, intStateSchema, intEventSchema, nil)
	require.NoError(t, err)
	defer s.StopAll()

	assert.Empty(t, failed)
	assert.ElementsMatch(t, []string{"keep1"}, restored)
}

func TestStopAllTearsDownEveryActor(t *testing.T) {
	s := New(nil)
	_, err := s.Spawn("a1", counterDef(t))
	require.NoError(t, err)
	_, err = s.Spawn("a2", counterDef(t))
	require.NoError(t, err)

	s.StopAll()

	_, ok1 := s.Get("a1")
	_, ok2 := s.Get("a2")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

package actorsystem

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/actorstate/inspect"
	"github.com/comalice/actorstate/tag"
)

type fnSink func(inspect.Event)

func (f fnSink) Inspect(ev inspect.Event) { f(ev) }

func TestFromEnvDefaultsToInfoAndJSON(t *testing.T) {
	os.Unsetenv("ACTORSYSTEM_LOG_LEVEL")
	os.Unsetenv("ACTORSYSTEM_LOG_FORMAT")

	s := FromEnv("test", nil)
	require.NotNil(t, s)
	assert.NotNil(t, s.sink)
}

func TestFromEnvHonorsOverrideVars(t *testing.T) {
	os.Setenv("ACTORSYSTEM_LOG_LEVEL", "debug")
	os.Setenv("ACTORSYSTEM_LOG_FORMAT", "text")
	defer os.Unsetenv("ACTORSYSTEM_LOG_LEVEL")
	defer os.Unsetenv("ACTORSYSTEM_LOG_FORMAT")

	s := FromEnv("test", nil)
	require.NotNil(t, s)
	assert.NotNil(t, s.sink)
}

func TestFromEnvLaterOptionsOverrideTheEnvSink(t *testing.T) {
	var replaced bool
	override := func(sys *System) {
		sys.sink = fnSink(func(inspect.Event) { replaced = true })
	}

	s := FromEnv("test", nil, override)
	require.NotNil(t, s)
	s.sink.Inspect(inspect.Event{Kind: inspect.KindSpawn, ActorID: "a1", State: tag.NewState("idle", nil)})
	assert.True(t, replaced)
}

package actorsystem

import (
	"os"
	"strings"

	"github.com/comalice/actorstate/actorlog"
	"github.com/comalice/actorstate/inspect"
	"github.com/comalice/actorstate/persistence"
)

// FromEnv builds a System wired to a log sink configured from
// ACTORSYSTEM_LOG_LEVEL and ACTORSYSTEM_LOG_FORMAT, defaulting to "info"
// and "json" when unset — the same defaulting shape as
// actorlog.NewFromEnv's LOG_LEVEL/LOG_FORMAT, namespaced under
// ACTORSYSTEM_ so a process embedding more than one actorlog-backed
// component doesn't collide on the bare variable names.
//
// component labels the resulting logger the way actorlog.New's first
// argument does. adapter may be nil under the same conditions as New's.
// Any opts passed are applied after the env-derived WithInspectionSink,
// so a caller can still override the sink.
func FromEnv(component string, adapter persistence.Adapter, opts ...Option) *System {
	level := strings.TrimSpace(os.Getenv("ACTORSYSTEM_LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("ACTORSYSTEM_LOG_FORMAT"))
	if format == "" {
		format = "json"
	}

	log := actorlog.New(component, level, format)
	sink := inspect.NewLogSink(log)

	allOpts := append([]Option{WithInspectionSink(sink)}, opts...)
	return New(adapter, allOpts...)
}

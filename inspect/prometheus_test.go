package inspect

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/comalice/actorstate/tag"
)

func TestPrometheusSinkCountsSpawnsAndTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetricsWithRegistry(reg)
	sink := NewPrometheusSink(metrics)

	sink.Inspect(Event{Kind: KindSpawn, MachineType: "traffic"})
	sink.Inspect(Event{Kind: KindTransition, MachineType: "traffic", Next: tag.NewState("green", nil)})
	sink.Inspect(Event{Kind: KindTransition, MachineType: "traffic", Next: tag.NewState("green", nil)})
	sink.Inspect(Event{Kind: KindStop, MachineType: "traffic"})

	if got := testutil.ToFloat64(metrics.SpawnsTotal.WithLabelValues("traffic")); got != 1 {
		t.Errorf("SpawnsTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("traffic", "green")); got != 2 {
		t.Errorf("TransitionsTotal = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.LiveActors); got != 0 {
		t.Errorf("LiveActors = %v, want 0 after one spawn and one stop", got)
	}
}

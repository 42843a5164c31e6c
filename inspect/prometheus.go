package inspect

import "github.com/prometheus/client_golang/prometheus"

// PrometheusMetrics holds the counters/gauge the runtime updates on every
// inspection event. Grounded on r3e-network-service_layer/infrastructure/
// metrics/metrics.go's constructor-registers-everything pattern: every
// collector is built and registered in one place, then handed out as
// struct fields rather than looked up by name at call time.
type PrometheusMetrics struct {
	SpawnsTotal      *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	LiveActors       prometheus.Gauge
}

// NewPrometheusMetrics registers the runtime's collectors against the
// default registerer.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWithRegistry registers against registerer, for tests
// that want an isolated prometheus.NewRegistry() instead of the default.
func NewPrometheusMetricsWithRegistry(registerer prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		SpawnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actor_spawns_total",
				Help: "Total number of actors spawned, by machine type.",
			},
			[]string{"machine_type"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actor_transitions_total",
				Help: "Total number of applied transitions, by machine type and resulting state tag.",
			},
			[]string{"machine_type", "state_tag"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actor_errors_total",
				Help: "Total number of transition/effect defects, by machine type and phase.",
			},
			[]string{"machine_type", "phase"},
		),
		LiveActors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "actor_live_count",
				Help: "Current number of live (not yet stopped) actors.",
			},
		),
	}

	registerer.MustRegister(
		m.SpawnsTotal,
		m.TransitionsTotal,
		m.ErrorsTotal,
		m.LiveActors,
	)

	return m
}

// PrometheusSink adapts PrometheusMetrics to the Sink interface.
type PrometheusSink struct {
	metrics *PrometheusMetrics
}

// NewPrometheusSink wraps metrics as a Sink.
func NewPrometheusSink(metrics *PrometheusMetrics) *PrometheusSink {
	return &PrometheusSink{metrics: metrics}
}

func (s *PrometheusSink) Inspect(ev Event) {
	switch ev.Kind {
	case KindSpawn:
		s.metrics.SpawnsTotal.WithLabelValues(ev.MachineType).Inc()
		s.metrics.LiveActors.Inc()
	case KindStop:
		s.metrics.LiveActors.Dec()
	case KindTransition:
		s.metrics.TransitionsTotal.WithLabelValues(ev.MachineType, ev.Next.Tag).Inc()
	case KindEffect:
		s.metrics.ErrorsTotal.WithLabelValues(ev.MachineType, ev.Phase).Inc()
	case KindError:
		s.metrics.ErrorsTotal.WithLabelValues(ev.MachineType, ev.Phase).Inc()
	}
}

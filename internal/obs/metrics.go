package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the run counters. Each run gets its own registry so parallel
// test runs never share state. All methods are nil-safe.
type Metrics struct {
	Registry *prometheus.Registry

	scenarios        *prometheus.CounterVec
	scenarioDuration prometheus.Histogram
	steps            *prometheus.CounterVec
	assertAttempts   prometheus.Counter
	assertTimeouts   prometheus.Counter
}

// NewMetrics creates a registry with the harness metrics registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uicheck",
			Name:      "scenarios_total",
			Help:      "Scenarios finished, by final status.",
		}, []string{"status"}),
		scenarioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uicheck",
			Name:      "scenario_duration_seconds",
			Help:      "Wall-clock duration of a scenario including session setup.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uicheck",
			Name:      "steps_total",
			Help:      "Steps executed, by kind.",
		}, []string{"kind"}),
		assertAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "uicheck",
			Name:      "assertion_attempts_total",
			Help:      "Observations read by the assertion poller.",
		}),
		assertTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "uicheck",
			Name:      "assertion_timeouts_total",
			Help:      "Assertions that never held within their timeout.",
		}),
	}
}

// ObserveScenario records a finished scenario.
func (m *Metrics) ObserveScenario(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.scenarios.WithLabelValues(status).Inc()
	m.scenarioDuration.Observe(d.Seconds())
}

// ObserveStep records an executed step.
func (m *Metrics) ObserveStep(kind string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(kind).Inc()
}

// ObserveAssertion records how many samples an assertion took and whether it timed out.
func (m *Metrics) ObserveAssertion(attempts int, timedOut bool) {
	if m == nil {
		return
	}
	m.assertAttempts.Add(float64(attempts))
	if timedOut {
		m.assertTimeouts.Inc()
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}

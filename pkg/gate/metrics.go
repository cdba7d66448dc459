package gate

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "perfgate"

// Metrics counts gate activity on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	submitted      prometheus.Counter
	submitFailures prometheus.Counter
	polls          prometheus.Counter
	verdicts       *prometheus.CounterVec
	tagFailures    prometheus.Counter
	enrichFailures prometheus.Counter
	infraErrors    *prometheus.CounterVec
	runPassed      prometheus.Gauge
}

// NewMetrics creates and registers the gate metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshots_submitted_total",
			Help:      "Number of snapshots successfully created",
		}),
		submitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_submit_failures_total",
			Help:      "Number of tests whose snapshot could not be created",
		}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_polls_total",
			Help:      "Number of snapshot status fetches",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_verdicts_total",
			Help:      "Number of evaluated snapshots by verdict",
		}, []string{"verdict"}),
		tagFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tag_failures_total",
			Help:      "Number of snapshots that could not be tagged",
		}),
		enrichFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "enrichment_failures_total",
			Help:      "Number of failed defect detail lookups",
		}),
		infraErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "infrastructure_errors_total",
			Help:      "Number of runs resolved by the fail-on-error policy, by decision",
		}, []string{"decision"}),
		runPassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "run_passed",
			Help:      "1 if the last gate run passed, 0 otherwise",
		}),
	}

	m.registry.MustRegister(
		m.submitted,
		m.submitFailures,
		m.polls,
		m.verdicts,
		m.tagFailures,
		m.enrichFailures,
		m.infraErrors,
		m.runPassed,
	)
	return m
}

// Registry returns the registry holding the gate metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) submittedOK() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *Metrics) submitFailed() {
	if m != nil {
		m.submitFailures.Inc()
	}
}

func (m *Metrics) polled() {
	if m != nil {
		m.polls.Inc()
	}
}

func (m *Metrics) verdict(passed bool) {
	if m == nil {
		return
	}
	if passed {
		m.verdicts.WithLabelValues("passed").Inc()
	} else {
		m.verdicts.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) tagFailed() {
	if m != nil {
		m.tagFailures.Inc()
	}
}

func (m *Metrics) enrichmentFailed() {
	if m != nil {
		m.enrichFailures.Inc()
	}
}

func (m *Metrics) infraError(failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.infraErrors.WithLabelValues("fail").Inc()
	} else {
		m.infraErrors.WithLabelValues("continue").Inc()
	}
}

func (m *Metrics) runResult(passed bool) {
	if m == nil {
		return
	}
	if passed {
		m.runPassed.Set(1)
	} else {
		m.runPassed.Set(0)
	}
}

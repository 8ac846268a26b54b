// Package metrics provides Prometheus metrics for runner lifecycle runs.
//
// The runner is a short-lived CLI, so nothing is scraped. Metrics are
// written once at exit in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	// API metrics
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec

	// Lifecycle metrics
	instancePollsTotal *prometheus.CounterVec
	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.GaugeVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpurunner_api_requests_total",
				Help: "Total number of Lambda Cloud API requests by operation and result",
			},
			[]string{"operation", "result"},
		),
		apiRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gpurunner_api_request_duration_seconds",
				Help:    "Latency of Lambda Cloud API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		instancePollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpurunner_instance_polls_total",
				Help: "Total number of instance status observations by status",
			},
			[]string{"status"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpurunner_lifecycle_runs_total",
				Help: "Total number of lifecycle runs by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		runDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gpurunner_lifecycle_run_duration_seconds",
				Help: "Duration of the last lifecycle run by action",
			},
			[]string{"action"},
		),
	}

	m.registry.MustRegister(
		m.apiRequestsTotal,
		m.apiRequestDuration,
		m.instancePollsTotal,
		m.runsTotal,
		m.runDuration,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePoll counts one instance status observation.
func (m *Metrics) ObservePoll(status lambda.Status) {
	s := string(status)
	if s == "" {
		s = "unknown"
	}
	m.instancePollsTotal.WithLabelValues(s).Inc()
}

// ObserveRun records the outcome and duration of a lifecycle run.
func (m *Metrics) ObserveRun(action, outcome string, d time.Duration) {
	m.runsTotal.WithLabelValues(action, outcome).Inc()
	m.runDuration.WithLabelValues(action).Set(d.Seconds())
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(operation string, err error, d time.Duration) {
	m.apiRequestsTotal.WithLabelValues(operation, requestResult(err)).Inc()
	m.apiRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// WriteTextfile writes every metric to path. The file is replaced
// atomically, so a collector never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

func requestResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case lambda.IsTransport(err):
		return "transport_error"
	default:
		return "api_error"
	}
}

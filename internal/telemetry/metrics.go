// Package telemetry provides Prometheus instrumentation for the mirror engine.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "repo_mirror"

// Metrics holds the Prometheus collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	rateLimitWaits  *prometheus.CounterVec
	rateRemaining   *prometheus.GaugeVec
	retries         *prometheus.CounterVec
	schedulerCycles *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. If reg is nil, it returns nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Repository and organization operations by kind and outcome.",
		}, []string{"operation", "status"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of repository and organization operations.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"operation"}),
		rateLimitWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Pauses taken while waiting for a provider quota reset.",
		}, []string{"provider"}),
		rateRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_remaining",
			Help:      "Last observed remaining provider quota.",
		}, []string{"provider"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Item retries performed by the retry executor.",
		}, []string{"operation"}),
		schedulerCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_cycles_total",
			Help:      "Configuration cycles run by the scheduler by outcome.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		m.operations, m.operationTime, m.rateLimitWaits, m.rateRemaining, m.retries, m.schedulerCycles,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordOperation counts one finished operation and observes its duration.
func (m *Metrics) RecordOperation(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.operationTime.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRateLimitWait(provider string) {
	if m == nil {
		return
	}
	m.rateLimitWaits.WithLabelValues(provider).Inc()
}

func (m *Metrics) SetRateLimitRemaining(provider string, remaining int) {
	if m == nil {
		return
	}
	m.rateRemaining.WithLabelValues(provider).Set(float64(remaining))
}

func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordCycle(status string) {
	if m == nil {
		return
	}
	m.schedulerCycles.WithLabelValues(status).Inc()
}

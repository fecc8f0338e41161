// Package metrics exposes Prometheus counters for a migration run.
//
// Every collector lives on a private registry so tests and repeated runs in
// one process never collide. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog_migrator"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeReused  = "reused"
	OutcomeSkipped = "skipped"
)

// Metrics holds the migrator collectors.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched     *prometheus.CounterVec
	LLMCalls         *prometheus.CounterVec
	Retries          *prometheus.CounterVec
	CatalogEntities  *prometheus.CounterVec
	ExtractionUnits  *prometheus.CounterVec
	LLMCallDuration  *prometheus.HistogramVec
	CheckpointWrites *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.PagesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_fetched_total",
		Help:      "Pages fetched during discovery and extraction",
	}, []string{"stage", "outcome"})

	m.LLMCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_calls_total",
		Help:      "Classification service calls by job and outcome",
	}, []string{"job", "outcome"})

	m.Retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Retries by reason",
	}, []string{"reason"})

	m.CatalogEntities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_entities_total",
		Help:      "Target catalog writes by entity kind and outcome",
	}, []string{"entity", "outcome"})

	m.ExtractionUnits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extraction_units_total",
		Help:      "Extraction units by outcome",
	}, []string{"outcome"})

	m.LLMCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_call_duration_seconds",
		Help:      "Latency of a single classification service call",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"job"})

	m.CheckpointWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkpoint_writes_total",
		Help:      "Checkpoint saves by name and outcome",
	}, []string{"name", "outcome"})

	m.registry.MustRegister(
		m.PagesFetched,
		m.LLMCalls,
		m.Retries,
		m.CatalogEntities,
		m.ExtractionUnits,
		m.LLMCallDuration,
		m.CheckpointWrites,
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PageFetched counts a page fetch.
func (m *Metrics) PageFetched(stage, outcome string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(stage, outcome).Inc()
}

// LLMCall counts a classification service call and observes its latency.
func (m *Metrics) LLMCall(job, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(job, outcome).Inc()
	m.LLMCallDuration.WithLabelValues(job).Observe(seconds)
}

// Retry counts one retry.
func (m *Metrics) Retry(reason string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(reason).Inc()
}

// CatalogEntity counts a catalog write.
func (m *Metrics) CatalogEntity(entity, outcome string) {
	if m == nil {
		return
	}
	m.CatalogEntities.WithLabelValues(entity, outcome).Inc()
}

// ExtractionUnit counts a finished extraction unit.
func (m *Metrics) ExtractionUnit(outcome string) {
	if m == nil {
		return
	}
	m.ExtractionUnits.WithLabelValues(outcome).Inc()
}

// CheckpointWrite counts a checkpoint save.
func (m *Metrics) CheckpointWrite(name, outcome string) {
	if m == nil {
		return
	}
	m.CheckpointWrites.WithLabelValues(name, outcome).Inc()
}

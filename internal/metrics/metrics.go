// Package metrics exposes Prometheus counters for revision runs.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperjump/redline/internal/docx"
	"github.com/hyperjump/redline/internal/extract"
	"github.com/hyperjump/redline/internal/llm"
	"github.com/hyperjump/redline/internal/models"
)

const namespace = "redline"

// Revision results, used as the "result" label.
const (
	ResultOK          = "ok"
	ResultMalformed   = "malformed_response"
	ResultUnavailable = "service_unavailable"
	ResultUnreadable  = "unreadable_document"
	ResultStorage     = "storage_write"
	ResultError       = "error"
)

// Metrics holds the collectors on a private registry.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry        *prometheus.Registry
	revisions       *prometheus.CounterVec
	proposals       *prometheus.CounterVec
	proposalLatency prometheus.Histogram
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		revisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revisions_total",
			Help:      "Revision runs by result.",
		}, []string{"result"}),
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_total",
			Help:      "Change proposals by applicator outcome.",
		}, []string{"status"}),
		proposalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proposal_request_seconds",
			Help:      "Time spent waiting for the proposal service.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
	}
	m.registry.MustRegister(
		m.revisions,
		m.proposals,
		m.proposalLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRevision counts a finished revision run.
func (m *Metrics) ObserveRevision(err error) {
	if m == nil {
		return
	}
	m.revisions.WithLabelValues(Result(err)).Inc()
}

// ObserveOutcomes counts applicator decisions.
func (m *Metrics) ObserveOutcomes(outcomes []models.Outcome) {
	if m == nil {
		return
	}
	for _, o := range outcomes {
		m.proposals.WithLabelValues(string(o.Status)).Inc()
	}
}

// ObserveProposalLatency records one proposal service round trip.
func (m *Metrics) ObserveProposalLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.proposalLatency.Observe(d.Seconds())
}

// Result classifies a revision error into a label value.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, llm.ErrMalformedResponse):
		return ResultMalformed
	case errors.Is(err, llm.ErrServiceUnavailable):
		return ResultUnavailable
	case errors.Is(err, extract.ErrUnreadableDocument):
		return ResultUnreadable
	case errors.Is(err, docx.ErrStorageWrite):
		return ResultStorage
	default:
		return ResultError
	}
}

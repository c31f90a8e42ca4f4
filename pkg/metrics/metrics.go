// Package metrics exposes Prometheus collectors for index builds and
// retrievals. Register collects everything onto a registry served at
// /metrics by the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for the engine.
type Metrics struct {
	BuildsTotal       *prometheus.CounterVec
	BuildDuration     *prometheus.HistogramVec
	BuildFragments    *prometheus.HistogramVec
	RetrievalsTotal   *prometheus.CounterVec
	RetrievalDuration *prometheus.HistogramVec
	RetrievalResults  *prometheus.HistogramVec
	ScopeClears       prometheus.Counter
	CollaboratorErrs  *prometheus.CounterVec
}

// New creates the collectors. They are unregistered until Register is called.
func New() *Metrics {
	return &Metrics{
		BuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygraph",
			Name:      "builds_total",
			Help:      "Index builds by outcome.",
		}, []string{"status"}),
		BuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keygraph",
			Name:      "build_duration_seconds",
			Help:      "Index build latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"status"}),
		BuildFragments: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keygraph",
			Name:      "build_fragments",
			Help:      "Fragments written per build.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"status"}),
		RetrievalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygraph",
			Name:      "retrievals_total",
			Help:      "Retrievals by outcome.",
		}, []string{"status"}),
		RetrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keygraph",
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		RetrievalResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keygraph",
			Name:      "retrieval_results",
			Help:      "Fragments returned per retrieval.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"status"}),
		ScopeClears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keygraph",
			Name:      "scope_clears_total",
			Help:      "Scope clear operations.",
		}),
		CollaboratorErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygraph",
			Name:      "collaborator_errors_total",
			Help:      "Failures from embedding and matching collaborators.",
		}, []string{"collaborator"}),
	}
}

// Register registers every collector on the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.BuildsTotal,
		m.BuildDuration,
		m.BuildFragments,
		m.RetrievalsTotal,
		m.RetrievalDuration,
		m.RetrievalResults,
		m.ScopeClears,
		m.CollaboratorErrs,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

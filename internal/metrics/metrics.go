// Package metrics holds the Prometheus collectors shared by the ingest, view and
// api packages. Collectors live on a private registry so tests can create as many
// independent sets as they need.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a set of registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	RowsParsed   *prometheus.CounterVec
	RowsDropped  *prometheus.CounterVec
	RowsFiltered *prometheus.CounterVec
	LoadFailures *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	Requests     *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RowsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wealthstack",
			Name:      "rows_parsed_total",
			Help:      "Rows normalized into records, by dataset.",
		}, []string{"dataset"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wealthstack",
			Name:      "rows_dropped_total",
			Help:      "Malformed rows dropped during normalization, by dataset.",
		}, []string{"dataset"}),
		RowsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wealthstack",
			Name:      "rows_filtered_total",
			Help:      "Rows rejected by the dataset predicate, by dataset.",
		}, []string{"dataset"}),
		LoadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wealthstack",
			Name:      "load_failures_total",
			Help:      "Dataset loads that failed, by dataset.",
		}, []string{"dataset"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wealthstack",
			Name:      "view_transitions_total",
			Help:      "View state transitions, by event kind.",
		}, []string{"event"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wealthstack",
			Name:      "http_requests_total",
			Help:      "API requests, by route and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(m.RowsParsed, m.RowsDropped, m.RowsFiltered, m.LoadFailures, m.Transitions, m.Requests)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

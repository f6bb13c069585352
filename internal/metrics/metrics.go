// Package metrics exposes Prometheus counters for upstream fetches and
// cache accumulation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all EconDash collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchesTotal     *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	Accumulations    *prometheus.CounterVec
	RowsFetched      *prometheus.CounterVec
	SeriesRows       *prometheus.GaugeVec
	StoreCorruptions prometheus.Counter

	registry *prometheus.Registry
}

// New creates a metrics set registered on its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econdash",
			Name:      "upstream_fetches_total",
			Help:      "Upstream fetches by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	m.FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "econdash",
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Upstream fetch latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
	m.Accumulations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econdash",
			Name:      "accumulations_total",
			Help:      "Cache accumulation runs by series and status",
		},
		[]string{"series", "status"},
	)
	m.RowsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econdash",
			Name:      "rows_fetched_total",
			Help:      "Observations returned by upstream fetches",
		},
		[]string{"series"},
	)
	m.SeriesRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "econdash",
			Name:      "series_rows",
			Help:      "Rows currently held in the cache per series",
		},
		[]string{"series"},
	)
	m.StoreCorruptions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "econdash",
		Name:      "store_corruptions_total",
		Help:      "Snapshot loads that fell back to the empty default",
	})

	m.registry.MustRegister(
		m.FetchesTotal,
		m.FetchDuration,
		m.Accumulations,
		m.RowsFetched,
		m.SeriesRows,
		m.StoreCorruptions,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveFetch records an upstream call. outcome is "ok" or an error kind.
func (m *Metrics) ObserveFetch(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(provider, outcome).Inc()
	m.FetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveAccumulation records the result of one accumulation run.
func (m *Metrics) ObserveAccumulation(series, status string, fetched, total int) {
	if m == nil {
		return
	}
	m.Accumulations.WithLabelValues(series, status).Inc()
	m.RowsFetched.WithLabelValues(series).Add(float64(fetched))
	m.SeriesRows.WithLabelValues(series).Set(float64(total))
}

func (m *Metrics) IncStoreCorruption() {
	if m == nil {
		return
	}
	m.StoreCorruptions.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

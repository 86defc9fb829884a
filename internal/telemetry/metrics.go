// Package telemetry exposes Prometheus metrics for the package API.
//
// Metrics are registered on a registry owned by the caller rather than the
// global default so that several handlers (one per test) can coexist.
//
// HTTP metrics are labelled by the chi route pattern (for example
// /api/v2/packages/{id}), never by the raw URL, to keep label cardinality
// bounded. Requests that match no route use the label "<no-route>".
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/foundry/pkgdemo/internal/core/services"
)

// NoRoute labels requests that did not match any registered route.
const NoRoute = "<no-route>"

// Upload outcomes used as the outcome label of pkgdemo_uploads_total.
const (
	UploadAccepted  = "accepted"
	UploadRejected  = "rejected"
	UploadCompleted = "completed"
)

// Metrics holds the collectors recorded by the HTTP layer.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	UploadsTotal    *prometheus.CounterVec
}

// New creates a registry with the HTTP, upload and store collectors plus the
// standard Go runtime and process collectors.
func New(store services.PackageStore) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pkgdemo",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed, by method, route pattern and status code.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pkgdemo",
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request latencies, by method and route pattern.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pkgdemo",
				Name:      "uploads_total",
				Help:      "Package uploads by outcome (accepted, rejected, completed).",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.UploadsTotal,
		NewStoreCollector(store),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// StoreCollector reports record counts straight from the store on each scrape.
type StoreCollector struct {
	store    services.PackageStore
	packages *prometheus.Desc
	pending  *prometheus.Desc
}

func NewStoreCollector(store services.PackageStore) *StoreCollector {
	return &StoreCollector{
		store: store,
		packages: prometheus.NewDesc(
			"pkgdemo_packages",
			"Number of package records visible to readers.",
			nil, nil,
		),
		pending: prometheus.NewDesc(
			"pkgdemo_pending_uploads",
			"Number of uploaded packages not yet polled for status.",
			nil, nil,
		),
	}
}

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packages
	ch <- c.pending
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.packages, prometheus.GaugeValue, float64(st.Packages))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(st.PendingUploads))
}

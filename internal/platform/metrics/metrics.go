package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes counters/histograms for the clinic API.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	gestures     *prometheus.CounterVec
	exports      *prometheus.CounterVec
	exportPages  prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gestures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "calendar",
			Name:      "gestures_total",
			Help:      "Calendar gestures by kind and outcome",
		}, []string{"kind", "outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "export",
			Name:      "documents_total",
			Help:      "Assessment documents exported",
		}, []string{"status"}),
		exportPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "export",
			Name:      "document_pages",
			Help:      "Pages per exported assessment document",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}),
	}
	reg.MustRegister(m.httpRequests, m.httpLatency, m.gestures, m.exports, m.exportPages)
	return m
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveGesture counts a calendar gesture; outcome is committed, rolled_back
// or busy.
func (m *Metrics) ObserveGesture(kind, outcome string) {
	if m == nil {
		return
	}
	m.gestures.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveExport(ok bool, pages int) {
	if m == nil {
		return
	}
	if !ok {
		m.exports.WithLabelValues("error").Inc()
		return
	}
	m.exports.WithLabelValues("ok").Inc()
	m.exportPages.Observe(float64(pages))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	if m == nil {
		return func(c echo.Context) error { return c.NoContent(http.StatusNotFound) }
	}
	return echo.WrapHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}

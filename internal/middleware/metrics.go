package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the coordinator's Prometheus collectors on a private
// registry. It also receives scan and message events from the core.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge

	Messages       *prometheus.CounterVec
	Scans          *prometheus.CounterVec
	EffectFailures *prometheus.CounterVec
	PortSessions   prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cici_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cici_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "cici_http_requests_in_flight",
			Help: "Requests being served.",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cici_messages_total",
			Help: "Router messages by kind.",
		}, []string{"kind"}),
		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cici_scans_total",
			Help: "Scan requests by outcome (cache_hit, remote, fallback).",
		}, []string{"outcome"}),
		EffectFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cici_scan_effect_failures_total",
			Help: "Failed post-scan side effects.",
		}, []string{"effect"}),
		PortSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "cici_port_sessions",
			Help: "Open websocket message ports.",
		}),
	}
}

func (m *Metrics) ObserveScan(outcome string)        { m.Scans.WithLabelValues(outcome).Inc() }
func (m *Metrics) ObserveEffectFailure(effect string) { m.EffectFailures.WithLabelValues(effect).Inc() }
func (m *Metrics) ObserveMessage(kind string)         { m.Messages.WithLabelValues(kind).Inc() }

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.InFlight.Inc()
		defer m.InFlight.Dec()
		start := time.Now()
		wrapped := wrap(w)

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

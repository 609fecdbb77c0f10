package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imgproxy/pkg/imgproxy"
)

const (
	routeImage = "/img/{key}"
	routeOther = "other"
)

// Metrics owns the process registry, the per-request HTTP collectors and the
// image lookup outcome counter.
type Metrics struct {
	reg      *prometheus.Registry
	inflight prometheus.Gauge
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	sent     *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// New creates a Metrics instance with a fresh registry and registers collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "imgproxy",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Requests currently being served.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imgproxy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served, by status code, method and route.",
		}, []string{"code", "method", "route"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imgproxy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time to first byte plus body streaming, by route.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imgproxy",
			Subsystem: "http",
			Name:      "response_bytes_total",
			Help:      "Body bytes written to clients, by route.",
		}, []string{"route"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imgproxy",
			Name:      "lookups_total",
			Help:      "Image requests by outcome: found, not_found, bad_path or fault.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inflight, m.requests, m.latency, m.sent, m.outcomes,
	)
	// Pre-create every outcome so rate() queries see zeros instead of gaps.
	for _, o := range []imgproxy.Outcome{imgproxy.OutcomeFound, imgproxy.OutcomeNotFound, imgproxy.OutcomeBadPath, imgproxy.OutcomeFault} {
		m.outcomes.WithLabelValues(string(o))
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveOutcome counts one image request; pass it to imgproxy.WithOutcome.
func (m *Metrics) ObserveOutcome(o imgproxy.Outcome) {
	m.outcomes.WithLabelValues(string(o)).Inc()
}

// responseRecorder captures the status code and body size written by a handler.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *responseRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware records inflight requests, counts, latency and bytes sent. Object
// keys never become label values; every image request shares one route label.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeOf(r.URL.Path)
		m.requests.WithLabelValues(strconv.Itoa(rec.status), r.Method, route).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		if rec.bytes > 0 {
			m.sent.WithLabelValues(route).Add(float64(rec.bytes))
		}
	})
}

func routeOf(path string) string {
	if _, ok := imgproxy.KeyFromPath(path); ok {
		return routeImage
	}
	return routeOther
}

// Registry returns the underlying registry so other collectors can share it.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opsboard_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsboard_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsboard_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsboard_upstream_requests_total",
			Help: "Calls to upstream services by outcome.",
		},
		[]string{"service", "outcome"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsboard_upstream_request_duration_seconds",
			Help:    "Upstream call latencies in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service"},
	)

	logBufferLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsboard_log_buffer_lookups_total",
			Help: "Log refresh buffer lookups by result.",
		},
		[]string{"result"},
	)

	assetsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsboard_assets_ingested_total",
			Help: "Assets archived from the asset service by entity and outcome.",
		},
		[]string{"entity", "outcome"},
	)

	registerOnce sync.Once
)

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			upstreamRequestsTotal,
			upstreamDuration,
			logBufferLookups,
			assetsIngested,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight requests.
// The route label is the chi pattern so path parameters do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Inc()
	})
}

// ObserveUpstream records one upstream call.
func ObserveUpstream(service string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	upstreamRequestsTotal.WithLabelValues(service, outcome).Inc()
}

func LogBufferLookup(result string) {
	logBufferLookups.WithLabelValues(result).Inc()
}

func AssetIngested(entity string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	assetsIngested.WithLabelValues(entity, outcome).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

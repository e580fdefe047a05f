package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Engagement engine metrics.
var (
	pointsAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_points_awarded_total",
			Help: "Total points awarded, by activity kind.",
		},
		[]string{"kind"},
	)

	votesCastTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engagement_votes_cast_total",
		Help: "Total accepted poll votes.",
	})

	alertsReportedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_alerts_reported_total",
			Help: "Total alerts reported, by severity.",
		},
		[]string{"severity"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		pointsAwardedTotal, votesCastTotal, alertsReportedTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePointsAwarded records a completed point award.
func ObservePointsAwarded(kind string, points int) {
	pointsAwardedTotal.WithLabelValues(kind).Add(float64(points))
}

// ObserveVoteCast records an accepted poll vote.
func ObserveVoteCast() {
	votesCastTotal.Inc()
}

// ObserveAlertReported records a newly reported alert.
func ObserveAlertReported(severity string) {
	alertsReportedTotal.WithLabelValues(severity).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

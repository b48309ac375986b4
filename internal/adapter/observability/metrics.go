package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_source_requests_total",
			Help: "Total number of scoring source invocations by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_source_duration_seconds",
			Help:    "Scoring source call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of recommendation requests served by engine",
		},
		[]string{"engine"},
	)
	MergedCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "merge_candidate_union_size",
			Help:    "Distribution of the merged candidate union size before filtering",
			Buckets: []float64{0, 5, 10, 20, 40, 80, 160, 320, 640},
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_events_total",
			Help: "Response cache lookups by outcome (hit, miss, error)",
		},
		[]string{"outcome"},
	)
)

// InitMetrics registers all Prometheus collectors once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(SourceRequestsTotal)
	prometheus.MustRegister(SourceRequestDuration)
	prometheus.MustRegister(RecommendationsTotal)
	prometheus.MustRegister(MergedCandidates)
	prometheus.MustRegister(CacheHitsTotal)
}

// ObserveSource records one scoring source invocation.
func ObserveSource(source string, dur time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SourceRequestsTotal.WithLabelValues(source, outcome).Inc()
	SourceRequestDuration.WithLabelValues(source).Observe(dur.Seconds())
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

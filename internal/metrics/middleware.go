package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests no route pattern matched.
const unmatchedRoute = "unmatched"

var (
	adminRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "route", "code"},
	)

	adminRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "requests_in_flight",
			Help:      "Admin API requests being served",
		},
	)
)

// Middleware records admin API latency per route pattern and the number of
// requests in flight. It must run inside a chi router.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			adminRequestsInFlight.Inc()
			defer adminRequestsInFlight.Dec()

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			adminRequestDuration.
				WithLabelValues(r.Method, routeOf(r), strconv.Itoa(code)).
				Observe(time.Since(start).Seconds())
		})
	}
}

// routeOf returns the matched chi pattern; raw paths would explode label cardinality.
func routeOf(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatchedRoute
}

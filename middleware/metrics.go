package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrNilRouteSource is returned when MetricsMiddleware is given a nil route
// source.
var ErrNilRouteSource = errors.New("metrics: route source must not be nil")

// unmatchedRoute is the route label value used for requests that match no
// registered route, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

// RouteSource reports the route template serving a request path.
// *httpd.Server satisfies it.
type RouteSource interface {
	RouteTemplate(path string) (string, bool)
}

// MetricsConfig configures the Metrics middleware behaviour.
type MetricsConfig struct {
	// Registerer receives the created collectors. Defaults to
	// prometheus.DefaultRegisterer when nil.
	Registerer prometheus.Registerer

	// Namespace is the metric name prefix. Defaults to "httpd".
	Namespace string

	// Subsystem is the metric subsystem segment, empty when unset.
	Subsystem string
}

// MetricsMiddleware returns a middleware that records Prometheus metrics for
// every request: a requests_total counter, a request_duration_seconds
// histogram, a response_size_bytes histogram, and a requests_in_flight
// gauge. Requests are labelled with the matched route template rather than
// the raw URL path so that label cardinality stays bounded; requests that
// match no route are labelled "unmatched".
//
// Collectors are registered once, when the middleware is constructed.
// Constructing a second metrics middleware against the same Registerer
// panics with a prometheus.AlreadyRegisteredError.
//
// It returns ErrNilRouteSource if routes is nil.
func MetricsMiddleware(routes RouteSource, cfg MetricsConfig) (httpd.MiddlewareFunc, error) {
	if routes == nil {
		return nil, ErrNilRouteSource
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "httpd"
	}

	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registerer)

	requestsTotal := factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: cfg.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "route", "status"},
	)

	responseSize := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: cfg.Subsystem,
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "route"},
	)

	inFlight := factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := routes.RouteTemplate(r.URL.Path)
			if !ok {
				route = unmatchedRoute
			}

			inFlight.Inc()
			defer inFlight.Dec()

			start := time.Now()
			rec := newResponseRecorder(w)
			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.status)
			requestsTotal.WithLabelValues(r.Method, route, status).Inc()
			requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			responseSize.WithLabelValues(r.Method, route).Observe(float64(rec.size))
		})
	}, nil
}

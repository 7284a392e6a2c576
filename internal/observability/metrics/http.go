// Package metrics registers the Prometheus collectors of the runtime and
// exposes them over HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentswap_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"handler", "method", "code"})

	HTTPErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentswap_http_request_errors_total",
		Help: "Total number of HTTP requests that resulted in a server error.",
	}, []string{"handler", "method"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentswap_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"handler", "method"})
)

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		HTTPErrors.WithLabelValues(handler, method).Inc()
	}
	HTTPLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks the RPC surface.
type HTTPMetrics struct {
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	throttled prometheus.Counter
}

var (
	httpOnce     sync.Once
	httpRegistry *HTTPMetrics
)

// HTTP returns the lazily registered RPC collectors.
func HTTP() *HTTPMetrics {
	httpOnce.Do(func() {
		httpRegistry = &HTTPMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "flashreserve",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "RPC requests segmented by route, method and status code.",
			}, []string{"route", "method", "status"}),
			durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "flashreserve",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "RPC request latency.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "flashreserve",
				Subsystem: "rpc",
				Name:      "throttled_total",
				Help:      "Requests rejected by the per-client rate limiter.",
			}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.durations, httpRegistry.throttled)
	})
	return httpRegistry
}

// Observe records a finished request.
func (m *HTTPMetrics) Observe(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Throttled counts a rate-limited request.
func (m *HTTPMetrics) Throttled() {
	if m == nil {
		return
	}
	m.throttled.Inc()
}

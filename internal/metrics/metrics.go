// Package metrics provides Prometheus instrumentation for the dashboard service.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FanoutFailures counts views whose source fetches failed, by view.
	FanoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energysys_fanout_failures_total",
		Help: "View fetches abandoned because a source failed",
	}, []string{"view"})

	// FanoutLatency tracks how long a view waits for all of its sources.
	FanoutLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "energysys_fanout_latency_seconds",
		Help:    "Time to resolve every source of a view",
		Buckets: prometheus.DefBuckets,
	}, []string{"view"})

	// StaleDiscards counts results dropped because a newer query was issued.
	StaleDiscards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energysys_stale_results_total",
		Help: "View results discarded because a newer query superseded them",
	}, []string{"view"})

	// DuplicateTimestamps counts series that carried repeated timestamps.
	DuplicateTimestamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energysys_duplicate_timestamps_total",
		Help: "Source series containing duplicate timestamps",
	}, []string{"source"})

	// PlantEvents counts plant event changes by action and type.
	PlantEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energysys_plant_events_total",
		Help: "Plant events started or finished",
	}, []string{"action", "type"})

	// ViewSessions tracks the number of retained view sessions.
	ViewSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "energysys_view_sessions",
		Help: "Number of retained view sessions",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "energysys_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energysys_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "energysys_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Package metrics provides Prometheus instrumentation for the pricing engine.
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
	// QuotesTotal counts priced quotes, partitioned by family and exercise
	// style.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpricer_quotes_total",
		Help: "Total number of quotes priced",
	}, []string{"family", "style"})

	// QuoteLatency tracks wall time spent simulating and valuing a quote.
	QuoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcpricer_quote_latency_seconds",
		Help:    "Quote pricing latency in seconds",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"family"})

	// QuoteFailures counts pricing runs that returned an error, by reason.
	QuoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpricer_quote_failures_total",
		Help: "Pricing runs that failed",
	}, []string{"reason"})

	// SimulatedCells counts grid cells simulated across all quotes.
	SimulatedCells = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcpricer_simulated_cells_total",
		Help: "Total simulated grid cells (assets x paths x (steps+1))",
	})

	// InFlightCells tracks the cells admitted by the work budget and not
	// yet released.
	InFlightCells = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcpricer_inflight_cells",
		Help: "Grid cells currently being simulated",
	})

	// BudgetRejections counts quotes rejected by the work limiter.
	BudgetRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpricer_budget_rejections_total",
		Help: "Quotes rejected by the work limiter",
	}, []string{"reason"})

	// ModelsCreated counts stored model specs by kind.
	ModelsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpricer_models_created_total",
		Help: "Model specs created",
	}, []string{"kind"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcpricer_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcpricer_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcpricer_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0, 30.0},
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
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
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

// Hijack passes through to the underlying writer so WebSocket upgrades work
// behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

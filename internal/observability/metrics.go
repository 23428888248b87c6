package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	transfersExecuted *prometheus.CounterVec
	transfersRejected prometheus.Counter
	stockMovements    *prometheus.CounterVec
	imbalanceRejected prometheus.Counter
}

// NewMetrics initialises the registry with HTTP and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paperline_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paperline_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transfersExecuted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paperline_transfers_executed_total",
		Help: "Completed weight transfers by transfer type.",
	}, []string{"type"})
	transfersRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paperline_transfers_rejected_total",
		Help: "Transfers terminated by rejection.",
	})
	stockMovements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paperline_stock_movements_total",
		Help: "Stock ledger mutations by movement kind.",
	}, []string{"kind"})
	imbalanceRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paperline_weight_imbalance_rejections_total",
		Help: "Processing results rejected for breaking weight conservation.",
	})
	registry.MustRegister(requests, duration, transfersExecuted, transfersRejected, stockMovements, imbalanceRejected)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		transfersExecuted: transfersExecuted,
		transfersRejected: transfersRejected,
		stockMovements:    stockMovements,
		imbalanceRejected: imbalanceRejected,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// TransferExecuted counts a completed transfer.
func (m *Metrics) TransferExecuted(transferType string) {
	if m == nil {
		return
	}
	m.transfersExecuted.WithLabelValues(transferType).Inc()
}

// TransferRejected counts a rejected transfer.
func (m *Metrics) TransferRejected() {
	if m == nil {
		return
	}
	m.transfersRejected.Inc()
}

// StockMovement counts one ledger mutation.
func (m *Metrics) StockMovement(kind string) {
	if m == nil {
		return
	}
	m.stockMovements.WithLabelValues(kind).Inc()
}

// WeightImbalanceRejected counts a processing result that failed conservation.
func (m *Metrics) WeightImbalanceRejected() {
	if m == nil {
		return
	}
	m.imbalanceRejected.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Provisioning metrics
	ProvisioningTotal     *prometheus.CounterVec
	ExternalAccountsTotal prometheus.Counter
	StaleExternalAccounts prometheus.Gauge

	// Reconciliation metrics
	ReconciliationRunsTotal *prometheus.CounterVec
	ReconciliationRowsTotal *prometheus.CounterVec

	// Gateway metrics
	GatewayRequestsTotal   *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ProvisioningTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idhub_service_account_provisioning_total",
				Help: "Total number of service account creation attempts",
			},
			[]string{"outcome"},
		),
		ExternalAccountsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idhub_external_accounts_total",
				Help: "Total number of externally provisioned accounts spawned",
			},
		),
		StaleExternalAccounts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "idhub_stale_external_accounts",
				Help: "PENDING external accounts past the provisioning deadline",
			},
		),
		ReconciliationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idhub_reconciliation_runs_total",
				Help: "Total number of identity-link reconciliation runs",
			},
			[]string{"status"},
		),
		ReconciliationRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idhub_reconciliation_rows_total",
				Help: "Reconciliation rows by outcome",
			},
			[]string{"outcome"},
		),
		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idhub_gateway_requests_total",
				Help: "Total number of IAM gateway calls",
			},
			[]string{"operation", "status"},
		),
		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idhub_gateway_request_duration_seconds",
				Help:    "IAM gateway call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "idhub_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "idhub_db_connections_idle",
				Help: "Idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ProvisioningTotal,
		m.ExternalAccountsTotal,
		m.StaleExternalAccounts,
		m.ReconciliationRunsTotal,
		m.ReconciliationRowsTotal,
		m.GatewayRequestsTotal,
		m.GatewayRequestDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the Prometheus metrics HTTP handler for a registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware records request counts and durations per route
func (m *Metrics) HTTPMiddleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

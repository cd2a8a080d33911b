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
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Task queue metrics
	TasksEnqueuedTotal   *prometheus.CounterVec
	TasksProcessedTotal  *prometheus.CounterVec
	TaskDuration         *prometheus.HistogramVec
	TasksDeadLetterTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// External service metrics
	EmailsSentTotal    *prometheus.CounterVec
	PDFRendersTotal    *prometheus.CounterVec
	PDFRenderDuration  prometheus.Histogram

	// Business metrics
	OrganizationsTotal prometheus.Gauge
	ProjectsTotal      prometheus.Gauge
	QuotesTotal        *prometheus.GaugeVec
	InvoicesTotal      *prometheus.GaugeVec
	CMSPagesTotal      prometheus.Gauge
	FilesTotal         prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Task queue metrics
		TasksEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_tasks_enqueued_total",
				Help: "Total number of tasks enqueued",
			},
			[]string{"type"},
		),
		TasksProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_tasks_processed_total",
				Help: "Total number of tasks processed",
			},
			[]string{"type", "status"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_task_duration_seconds",
				Help:    "Task processing duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"type"},
		),
		TasksDeadLetterTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_tasks_dead_letter_total",
				Help: "Total number of tasks moved to the dead letter queue",
			},
			[]string{"type"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"tier"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		// External service metrics
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_emails_sent_total",
				Help: "Total number of transactional emails sent",
			},
			[]string{"provider", "status"},
		),
		PDFRendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_pdf_renders_total",
				Help: "Total number of PDF render requests",
			},
			[]string{"document_type", "status"},
		),
		PDFRenderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "portal_pdf_render_duration_seconds",
				Help:    "PDF render duration in seconds",
				Buckets: []float64{.5, 1, 2, 5, 10, 30, 60},
			},
		),

		// Business metrics
		OrganizationsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_organizations_total",
				Help: "Total number of active organizations",
			},
		),
		ProjectsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_projects_total",
				Help: "Total number of projects",
			},
		),
		QuotesTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portal_quotes_total",
				Help: "Total number of quotes by status",
			},
			[]string{"status"},
		),
		InvoicesTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portal_invoices_total",
				Help: "Total number of invoices by status",
			},
			[]string{"status"},
		),
		CMSPagesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_cms_pages_total",
				Help: "Total number of registered CMS pages",
			},
		),
		FilesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_files_total",
				Help: "Total number of managed files and folders",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.TasksEnqueuedTotal,
		m.TasksProcessedTotal,
		m.TaskDuration,
		m.TasksDeadLetterTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.EmailsSentTotal,
		m.PDFRendersTotal,
		m.PDFRenderDuration,
		m.OrganizationsTotal,
		m.ProjectsTotal,
		m.QuotesTotal,
		m.InvoicesTotal,
		m.CMSPagesTotal,
		m.FilesTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

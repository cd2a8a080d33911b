// Package observability carries the portal's operational plumbing:
// structured JSON logging, Prometheus metrics, OTLP trace/metric export,
// health probes and graceful shutdown.
//
// Logging:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithComponent("task_worker").WithField("kind", kind).Info("task completed")
//
// Metrics are registered on an explicit registry and exposed on the internal
// health port:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.TasksProcessedTotal.WithLabelValues("generate_pdf_and_upload", "completed").Inc()
//
// The health checker treats Postgres as required and Redis (the CMS cache
// tier) as degradable. The shutdown manager drains the API server and then
// tears subsystems down in reverse registration order.
package observability

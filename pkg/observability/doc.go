// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing for the kotoba service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("generation stored")
//
// Request handlers should log through FromContext so request_id and user_id
// are attached automatically:
//
//	observability.FromContext(r.Context()).WithError(err).Warn("usage increment failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordSwallowedFailure(observability.StageIncrementUsage)
//
// kotoba_swallowed_failures_total is the signal to alert on: it counts
// generations that were returned to the user but not fully recorded.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
package observability

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Swallowed-failure stages. Persistence after a successful generation never
// fails the request; each swallowed error is counted under one of these.
const (
	StagePersistGeneration = "persist_generation"
	StageIncrementUsage    = "increment_usage"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Generation metrics
	GenerationsTotal         *prometheus.CounterVec
	UpstreamRequestDuration  *prometheus.HistogramVec
	SwallowedFailuresTotal   *prometheus.CounterVec
	QuotaRejectionsTotal     *prometheus.CounterVec
	RateLimitRejectionsTotal prometheus.Counter

	// Billing metrics
	WebhookEventsTotal *prometheus.CounterVec

	// Session metrics
	SignInsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotoba_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kotoba_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotoba_generations_total",
				Help: "Generation requests by pipeline and terminal outcome",
			},
			[]string{"pipeline", "outcome"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kotoba_upstream_request_duration_seconds",
				Help:    "Language model API call duration in seconds",
				Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"model", "status"},
		),
		SwallowedFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotoba_swallowed_failures_total",
				Help: "Persistence failures after a successful generation that did not fail the request",
			},
			[]string{"stage"},
		),
		QuotaRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotoba_quota_rejections_total",
				Help: "Generation requests denied by the monthly usage gate",
			},
			[]string{"plan"},
		),
		RateLimitRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kotoba_rate_limit_rejections_total",
				Help: "Requests rejected by the per-user rate limiter",
			},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotoba_stripe_webhook_events_total",
				Help: "Stripe webhook events by type and result",
			},
			[]string{"type", "result"},
		),
		SignInsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotoba_sign_ins_total",
				Help: "OAuth sign-in attempts by provider and result",
			},
			[]string{"provider", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GenerationsTotal,
		m.UpstreamRequestDuration,
		m.SwallowedFailuresTotal,
		m.QuotaRejectionsTotal,
		m.RateLimitRejectionsTotal,
		m.WebhookEventsTotal,
		m.SignInsTotal,
	)

	return m
}

// NewNopMetrics returns metrics registered on a throwaway registry
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// RecordSwallowedFailure counts a non-fatal persistence failure
func (m *Metrics) RecordSwallowedFailure(stage string) {
	if m == nil {
		return
	}
	m.SwallowedFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordGeneration counts a generation request outcome
func (m *Metrics) RecordGeneration(pipeline, outcome string) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(pipeline, outcome).Inc()
}

// RecordUpstream observes one language model API call
func (m *Metrics) RecordUpstream(model, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordQuotaRejection counts a request denied by the usage gate
func (m *Metrics) RecordQuotaRejection(plan string) {
	if m == nil {
		return
	}
	m.QuotaRejectionsTotal.WithLabelValues(plan).Inc()
}

// RecordRateLimitRejection counts a request denied by the rate limiter
func (m *Metrics) RecordRateLimitRejection() {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.Inc()
}

// RecordWebhookEvent counts a processed Stripe event
func (m *Metrics) RecordWebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(eventType, result).Inc()
}

// RecordSignIn counts an OAuth callback outcome
func (m *Metrics) RecordSignIn(provider, result string) {
	if m == nil {
		return
	}
	m.SignInsTotal.WithLabelValues(provider, result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labeled by mux route template so ids do not explode cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeTemplate(r *http.Request) string {
	if current := mux.CurrentRoute(r); current != nil {
		if tmpl, err := current.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

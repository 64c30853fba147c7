package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/kotoba/pkg/httputil"
	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/sso"
)

// DefaultMaxBodyBytes caps API request bodies
const DefaultMaxBodyBytes = 1 << 20

// Options holds the server's collaborators
type Options struct {
	Generation GenerationService
	Usage      UsageChecker
	Billing    BillingService
	SignIn     *sso.Handlers

	// Authenticate guards every /api route except the Stripe webhook
	Authenticate func(http.Handler) http.Handler
	// RateLimit wraps the generation routes; nil disables it
	RateLimit func(http.Handler) http.Handler

	Logger         *observability.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string
	MaxBodyBytes   int64
	DevMode        bool
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	opts    Options
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
	}
	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(opts.AllowedOrigins),
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
	)(s.router)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "no route for "+r.Method+" "+r.URL.Path)
	})

	// Signature-authenticated, so registered before the session subrouter
	billingHandlers := NewBillingHandlers(s.opts.Billing, s.opts.DevMode)
	billingHandlers.RegisterWebhookRoute(s.router)

	if s.opts.SignIn != nil {
		s.opts.SignIn.RegisterRoutes(s.router)
	}

	authed := s.router.PathPrefix("/api").Subrouter()
	if s.opts.Authenticate != nil {
		authed.Use(mux.MiddlewareFunc(s.opts.Authenticate))
	}

	NewGenerationHandlers(s.opts.Generation, s.opts.RateLimit, s.opts.DevMode).RegisterRoutes(authed)
	NewAccountHandlers(s.opts.Usage, s.opts.DevMode).RegisterRoutes(authed)
	billingHandlers.RegisterRoutes(authed)
}

// Router returns the route table
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/kotoba/pkg/api"
	"github.com/platinummonkey/kotoba/pkg/billing"
	"github.com/platinummonkey/kotoba/pkg/config"
	"github.com/platinummonkey/kotoba/pkg/generation"
	"github.com/platinummonkey/kotoba/pkg/middleware"
	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/sso"
	"github.com/platinummonkey/kotoba/pkg/storage/postgres"
	"github.com/platinummonkey/kotoba/pkg/usage"
	"github.com/platinummonkey/kotoba/pkg/users"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel.String()); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("kotoba exited: %v", err)
	}
	logger.Info("kotoba stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	appLogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("OpenTelemetry shutdown: %v", err)
		}
	}()

	conn, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	db := conn.DB()
	logger.Info("Connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(ctx, db, appLogger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "kotoba"),
	)
	metrics := observability.NewMetrics(registry)

	userStore := users.NewStore(db)
	tracker := usage.NewTracker(usage.NewPostgresLedger(db))

	prompts := generation.DefaultPromptConfig()
	prompts.Model = cfg.OpenAI.Model
	prompts.Temperature = cfg.OpenAI.Temperature
	if err := prompts.MergeFile(cfg.OpenAI.PromptsFile); err != nil {
		return err
	}

	generator := generation.NewOpenAIGenerator(generation.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.Timeout,
	}, prompts, metrics)
	generationService := generation.NewService(tracker, generator, generation.NewPostgresStore(db), prompts, metrics)

	var stripeSessions billing.SessionCreator
	if cfg.Stripe.SecretKey != "" {
		stripeSessions = billing.NewStripeSessions(cfg.Stripe.SecretKey)
	}
	billingService := billing.NewService(billing.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		PriceID:       cfg.Stripe.PriceID,
		AppURL:        cfg.AppURL,
	}, stripeSessions, userStore, billing.NewPostgresEventLog(db), metrics)
	if !billingService.Enabled() {
		logger.Warn("Stripe is not configured; checkout is disabled")
	}

	providers, err := signInProviders(ctx, cfg)
	if err != nil {
		return err
	}
	sessionManager := sso.NewSessionManager(db, sso.SessionConfig{
		TTL:       cfg.Auth.SessionTTL,
		CacheTTL:  cfg.Auth.SessionCacheTTL,
		CacheSize: cfg.Auth.SessionCacheSize,
	}, appLogger)

	var rateLimit func(http.Handler) http.Handler
	if redisClient != nil {
		sessionManager.WithRevocations(redisClient)

		limiter := middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.GenerateRequests,
			WindowDuration:    cfg.RateLimit.GenerateWindow,
		}, "kotoba:ratelimit:generate")
		rateLimit = middleware.NewRateLimitMiddleware(limiter, metrics).Handler
	}

	server := api.NewServer(api.Options{
		Generation:     generationService,
		Usage:          tracker,
		Billing:        billingService,
		SignIn:         sso.NewHandlers(providers, userStore, sessionManager, cfg.Auth.SecureCookies, metrics),
		Authenticate:   middleware.NewSessionAuth(sessionManager, userStore, cfg.DevMode).Handler,
		RateLimit:      rateLimit,
		Logger:         appLogger,
		Metrics:        metrics,
		AllowedOrigins: []string{cfg.AppURL},
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		DevMode:        cfg.DevMode,
	})

	var handler http.Handler = server
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(server, "kotoba-api")
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux(db, redisClient, registry, cfg.Observability.MetricsEnabled),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		return listen(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), healthServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func listen(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", server.Addr, err)
	}
	return nil
}

// connectRedis returns nil when Redis is not configured or unreachable. The
// generation rate limiter is only installed with a client.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logrus.Logger) *redis.Client {
	if cfg.URL == "" {
		logger.Info("Redis not configured; rate limiting disabled")
		return nil
	}

	client, err := postgres.NewRedisClient(ctx, postgres.RedisConfig{
		URL:        cfg.URL,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: cfg.MaxRetries,
		PoolSize:   cfg.PoolSize,
	})
	if err != nil {
		logger.Warnf("Redis unavailable, rate limiting disabled: %v", err)
		return nil
	}
	logger.Info("Connected to Redis")
	return client
}

func signInProviders(ctx context.Context, cfg *config.Config) ([]sso.Provider, error) {
	type credentials struct{ id, secret string }

	enabled := map[sso.ProviderName]credentials{}
	if cfg.Auth.GitHubEnabled() {
		enabled[sso.ProviderGitHub] = credentials{cfg.Auth.GitHubClientID, cfg.Auth.GitHubClientSecret}
	}
	if cfg.Auth.GoogleEnabled() {
		enabled[sso.ProviderGoogle] = credentials{cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret}
	}

	providers := make([]sso.Provider, 0, len(enabled))
	for _, name := range []sso.ProviderName{sso.ProviderGitHub, sso.ProviderGoogle} {
		creds, ok := enabled[name]
		if !ok {
			continue
		}

		providerConfig, err := sso.GetPresetConfig(name, cfg.AppURL)
		if err != nil {
			return nil, err
		}
		providerConfig.ClientID = creds.id
		providerConfig.ClientSecret = creds.secret

		provider, err := sso.NewProvider(ctx, providerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to configure %s sign-in: %w", name, err)
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

func healthMux(db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry, metricsEnabled bool) *http.ServeMux {
	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, observability.NewHealthChecker(db, redisClient, version))
	if metricsEnabled {
		observability.RegisterMetricsEndpoint(mux, registry)
	}
	return mux
}

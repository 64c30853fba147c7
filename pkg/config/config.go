package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/platinummonkey/kotoba/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	OpenAI        OpenAIConfig
	Stripe        StripeConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig

	// AppURL is the public base URL used to build redirect targets
	AppURL string

	// DevMode exposes internal error text in API error details
	DevMode bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	AutoMigrate bool
}

// RedisConfig holds Redis settings. An empty URL disables rate limiting.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// OpenAIConfig holds language model API settings
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	PromptsFile string
}

// StripeConfig holds payment processor settings
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
}

// AuthConfig holds OAuth provider and session settings
type AuthConfig struct {
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string
	SessionTTL         time.Duration
	SessionCacheTTL    time.Duration
	SessionCacheSize   int
	SecureCookies      bool
}

// RateLimitConfig holds the per-user generation rate limit
type RateLimitConfig struct {
	GenerateRequests int
	GenerateWindow   time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present; real environment
// variables win over it.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		OpenAI:        loadOpenAIConfig(),
		Stripe:        loadStripeConfig(),
		Auth:          loadAuthConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
		AppURL:        strings.TrimRight(getEnv("KOTOBA_APP_URL", "http://localhost:3000"), "/"),
		DevMode:       getEnvBool("KOTOBA_DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("KOTOBA_HOST", "0.0.0.0"),
		Port:            getEnv("KOTOBA_PORT", "8080"),
		ReadTimeout:     getEnvDuration("KOTOBA_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("KOTOBA_WRITE_TIMEOUT", 120*time.Second), // generation calls take tens of seconds
		IdleTimeout:     getEnvDuration("KOTOBA_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("KOTOBA_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("KOTOBA_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("KOTOBA_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("KOTOBA_DATABASE_URL", ""),
		MaxConns:    getEnvInt("KOTOBA_DATABASE_MAX_CONNS", 20),
		MinConns:    getEnvInt("KOTOBA_DATABASE_MIN_CONNS", 2),
		Timeout:     getEnvDuration("KOTOBA_DATABASE_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("KOTOBA_DATABASE_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("KOTOBA_DATABASE_MAX_IDLE_TIME", 5*time.Minute),
		AutoMigrate: getEnvBool("KOTOBA_DATABASE_AUTO_MIGRATE", true),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("KOTOBA_REDIS_URL", ""),
		Password:   getEnv("KOTOBA_REDIS_PASSWORD", ""),
		DB:         getEnvInt("KOTOBA_REDIS_DB", -1),
		MaxRetries: getEnvInt("KOTOBA_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("KOTOBA_REDIS_POOL_SIZE", 10),
	}
}

func loadOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      getEnv("KOTOBA_OPENAI_API_KEY", ""),
		BaseURL:     getEnv("KOTOBA_OPENAI_BASE_URL", ""),
		Model:       getEnv("KOTOBA_OPENAI_MODEL", "gpt-4"),
		Temperature: float32(getEnvFloat("KOTOBA_OPENAI_TEMPERATURE", 0.7)),
		Timeout:     getEnvDuration("KOTOBA_OPENAI_TIMEOUT", 90*time.Second),
		PromptsFile: getEnv("KOTOBA_PROMPTS_FILE", ""),
	}
}

func loadStripeConfig() StripeConfig {
	return StripeConfig{
		SecretKey:     getEnv("KOTOBA_STRIPE_SECRET_KEY", ""),
		WebhookSecret: getEnv("KOTOBA_STRIPE_WEBHOOK_SECRET", ""),
		PriceID:       getEnv("KOTOBA_STRIPE_PRICE_ID", ""),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		GitHubClientID:     getEnv("KOTOBA_GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("KOTOBA_GITHUB_CLIENT_SECRET", ""),
		GoogleClientID:     getEnv("KOTOBA_GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("KOTOBA_GOOGLE_CLIENT_SECRET", ""),
		SessionTTL:         getEnvDuration("KOTOBA_SESSION_TTL", 30*24*time.Hour),
		SessionCacheTTL:    getEnvDuration("KOTOBA_SESSION_CACHE_TTL", 10*time.Minute),
		SessionCacheSize:   getEnvInt("KOTOBA_SESSION_CACHE_SIZE", 10000),
		SecureCookies:      getEnvBool("KOTOBA_SECURE_COOKIES", true),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		GenerateRequests: getEnvInt("KOTOBA_GENERATE_RATE_LIMIT", 20),
		GenerateWindow:   getEnvDuration("KOTOBA_GENERATE_RATE_WINDOW", time.Minute),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("KOTOBA_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("KOTOBA_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("KOTOBA_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("KOTOBA_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("KOTOBA_OTEL_SERVICE_NAME", "kotoba"),
		OTelServiceVersion: getEnv("KOTOBA_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("KOTOBA_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("KOTOBA_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("KOTOBA_DATABASE_URL is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be positive")
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("KOTOBA_OPENAI_API_KEY is required")
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai temperature must be between 0 and 2, got %v", c.OpenAI.Temperature)
	}

	u, err := url.Parse(c.AppURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("KOTOBA_APP_URL must be an absolute URL, got %q", c.AppURL)
	}

	if !c.Auth.GitHubEnabled() && !c.Auth.GoogleEnabled() {
		return fmt.Errorf("at least one sign-in provider must be configured")
	}

	if c.RateLimit.GenerateRequests < 1 || c.RateLimit.GenerateWindow <= 0 {
		return fmt.Errorf("generate rate limit must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// JanitorConfig holds settings for the maintenance job
type JanitorConfig struct {
	Database      DatabaseConfig
	Observability ObservabilityConfig

	// Cron schedules, standard five-field syntax
	SessionsSchedule string
	EventsSchedule   string

	// EventRetention is how long processed Stripe event ids are kept
	EventRetention time.Duration
}

// LoadJanitorConfig loads the subset of configuration the maintenance job
// needs. It does not require API keys or sign-in credentials.
func LoadJanitorConfig() (*JanitorConfig, error) {
	_ = godotenv.Load()

	cfg := &JanitorConfig{
		Database:         loadDatabaseConfig(),
		Observability:    loadObservabilityConfig(),
		SessionsSchedule: getEnv("KOTOBA_JANITOR_SESSIONS_SCHEDULE", "*/15 * * * *"),
		EventsSchedule:   getEnv("KOTOBA_JANITOR_EVENTS_SCHEDULE", "0 3 * * *"),
		EventRetention:   getEnvDuration("KOTOBA_STRIPE_EVENT_RETENTION", 30*24*time.Hour),
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("KOTOBA_DATABASE_URL is required")
	}
	if cfg.EventRetention <= 0 {
		return nil, fmt.Errorf("stripe event retention must be positive")
	}
	return cfg, nil
}

// GitHubEnabled reports whether GitHub sign-in is configured
func (a AuthConfig) GitHubEnabled() bool {
	return a.GitHubClientID != "" && a.GitHubClientSecret != ""
}

// GoogleEnabled reports whether Google sign-in is configured
func (a AuthConfig) GoogleEnabled() bool {
	return a.GoogleClientID != "" && a.GoogleClientSecret != ""
}

// BillingEnabled reports whether Stripe checkout can be offered
func (s StripeConfig) BillingEnabled() bool {
	return s.SecretKey != "" && s.PriceID != ""
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

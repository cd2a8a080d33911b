package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sleads/portal/pkg/observability"
	"github.com/sleads/portal/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Observability configuration
	Observability ObservabilityConfig

	// Auth configuration
	Auth AuthConfig

	// Email delivery configuration
	Email EmailConfig

	// PDF rendering configuration
	PDF PDFConfig

	// SiteURL is the public base URL of the portal, used in emails and
	// OAuth redirect URLs.
	SiteURL string

	// SmartObjectsKey gates the dynamic table endpoints (SLEADS_SO_KEY).
	SmartObjectsKey string

	mu             sync.RWMutex
	trustedOrigins []string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// MaxBodyBytes limits request body size across the API
	MaxBodyBytes int64
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// AuthConfig holds OIDC provider credentials and platform admin allowlist
type AuthConfig struct {
	GithubClientID     string
	GithubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string

	// AdminUserIDs is a comma-separated list of user ids promoted to
	// platform admin on login (ADMIN_USER_IDS).
	AdminUserIDs string

	// SessionTTL controls how long issued sessions stay valid
	SessionTTL time.Duration
}

// EmailConfig holds transactional email provider keys
type EmailConfig struct {
	// BrevoAPIKey is the primary provider; ResendAPIKey is the fallback.
	BrevoAPIKey  string
	ResendAPIKey string
	FromAddress  string
	FromName     string
}

// PDFConfig holds the external PDF render service settings
type PDFConfig struct {
	RenderURL string
	Timeout   time.Duration
}

// LoadConfig loads configuration from an optional YAML file (PORTAL_CONFIG_FILE)
// with environment variables taking precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:          loadServerConfig(),
		Storage:         loadStorageConfig(),
		Observability:   loadObservabilityConfig(),
		Auth:            loadAuthConfig(),
		Email:           loadEmailConfig(),
		PDF:             loadPDFConfig(),
		SiteURL:         getEnv("SITE_URL", "http://localhost:8080"),
		SmartObjectsKey: getEnv("SLEADS_SO_KEY", ""),
	}
	cfg.trustedOrigins = parseOrigins(getEnv("TRUSTED_ORIGINS", "*"))

	if path := os.Getenv("PORTAL_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// TrustedOrigins returns the current CORS allowlist. The list can be swapped
// at runtime by the config file watcher.
func (c *Config) TrustedOrigins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.trustedOrigins))
	copy(out, c.trustedOrigins)
	return out
}

// SetTrustedOrigins replaces the CORS allowlist
func (c *Config) SetTrustedOrigins(origins []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trustedOrigins = origins
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PORTAL_HOST", "0.0.0.0"),
		Port:            getEnv("PORTAL_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PORTAL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PORTAL_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("PORTAL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PORTAL_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PORTAL_HEALTH_PORT", "9090"),
		MaxBodyBytes:    getEnvInt64("PORTAL_MAX_BODY_BYTES", 32<<20),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("PORTAL_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("PORTAL_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("PORTAL_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("PORTAL_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// S3 config (generated PDFs and uploaded file content)
	if s3Endpoint := getEnv("PORTAL_S3_ENDPOINT", ""); s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3Region := getEnv("PORTAL_S3_REGION", ""); s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Bucket := getEnv("PORTAL_S3_BUCKET", ""); s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3AccessKey := getEnv("PORTAL_S3_ACCESS_KEY", ""); s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey := getEnv("PORTAL_S3_SECRET_KEY", ""); s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
	if s3UsePathStyle := getEnv("PORTAL_S3_USE_PATH_STYLE", ""); s3UsePathStyle != "" {
		cfg.S3UsePathStyle = strings.ToLower(s3UsePathStyle) == "true"
	}

	// Redis config (CMS L2 cache)
	if redisURL := getEnv("PORTAL_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("PORTAL_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("PORTAL_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisPoolSize := getEnvInt("PORTAL_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	if cacheEnabled := getEnv("PORTAL_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if l1CacheSize := getEnvInt("PORTAL_L1_CACHE_SIZE", 0); l1CacheSize > 0 {
		cfg.L1CacheSize = l1CacheSize
	}
	if cacheTTL := getEnvDuration("PORTAL_CACHE_TTL", 0); cacheTTL > 0 {
		cfg.CacheTTL = cacheTTL
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("PORTAL_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PORTAL_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PORTAL_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PORTAL_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PORTAL_OTEL_SERVICE_NAME", "sleads-portal"),
		OTelServiceVersion: getEnv("PORTAL_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PORTAL_OTEL_INSECURE", true),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		GithubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GithubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		AdminUserIDs:       getEnv("ADMIN_USER_IDS", ""),
		SessionTTL:         getEnvDuration("PORTAL_SESSION_TTL", 24*time.Hour),
	}
}

func loadEmailConfig() EmailConfig {
	return EmailConfig{
		BrevoAPIKey:  getEnv("BREVO_API_KEY", ""),
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromAddress:  getEnv("PORTAL_EMAIL_FROM", "no-reply@sleads.so"),
		FromName:     getEnv("PORTAL_EMAIL_FROM_NAME", "Sleads"),
	}
}

func loadPDFConfig() PDFConfig {
	return PDFConfig{
		RenderURL: getEnv("PORTAL_PDF_RENDER_URL", ""),
		Timeout:   getEnvDuration("PORTAL_PDF_TIMEOUT", 60*time.Second),
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

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Email.BrevoAPIKey == "" && c.Email.ResendAPIKey == "" {
		return fmt.Errorf("at least one email provider key is required (BREVO_API_KEY or RESEND_API_KEY)")
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

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// parseOrigins splits a comma-separated origin list
func parseOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
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

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

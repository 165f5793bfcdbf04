package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/llm-cascade/services/providers"
)

// credentialEnv maps catalog provider names to the env var holding their key
var credentialEnv = map[string]string{
	"cerebras":   "CEREBRAS_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"mistral":    "MISTRAL_API_KEY",
	"together":   "TOGETHER_API_KEY",
	"groq":       "GROQ_API_KEY",
	"cloudflare": "CLOUDFLARE_API_KEY", // account_id/api_token
}

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: attempt persistence is disabled when nil
	Auth          AuthConfig
	Cascade       CascadeConfig
	Credentials   providers.CredentialSet
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds bearer token settings. Auth is disabled when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// Enabled reports whether API routes require a bearer token
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// CascadeConfig holds failover and generation settings
type CascadeConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxJitter       time.Duration
	MaxTokens       int
	Temperature     float64
	FallbackOnEmpty bool
	RequestTimeout  time.Duration
	CatalogFile     string // Optional YAML catalog; the built-in catalog is used when empty

	// Attempt logger worker pool
	AttemptWorkers    int
	AttemptBufferSize int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Cascade: CascadeConfig{
			MaxAttempts:       getEnvAsInt("CASCADE_MAX_ATTEMPTS", 3),
			InitialBackoff:    getEnvAsDuration("CASCADE_INITIAL_BACKOFF", 2*time.Second),
			MaxJitter:         getEnvAsDuration("CASCADE_MAX_JITTER", time.Second),
			MaxTokens:         getEnvAsInt("CASCADE_MAX_TOKENS", 32768),
			Temperature:       getEnvAsFloat("CASCADE_TEMPERATURE", 0.7),
			FallbackOnEmpty:   getEnvAsBool("CASCADE_FALLBACK_ON_EMPTY", true),
			RequestTimeout:    getEnvAsDuration("CASCADE_REQUEST_TIMEOUT", 60*time.Second),
			CatalogFile:       getEnv("CASCADE_CATALOG_FILE", ""),
			AttemptWorkers:    getEnvAsInt("ATTEMPT_LOG_WORKERS", 2),
			AttemptBufferSize: getEnvAsInt("ATTEMPT_LOG_BUFFER", 1000),
		},
		Credentials: loadCredentials(),
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Cascade.MaxAttempts < 1 {
		return fmt.Errorf("cascade max attempts must be at least 1, got %d", c.Cascade.MaxAttempts)
	}
	if c.Cascade.InitialBackoff < 0 || c.Cascade.MaxJitter < 0 {
		return fmt.Errorf("cascade backoff and jitter must not be negative")
	}
	if c.Cascade.MaxTokens < 1 {
		return fmt.Errorf("cascade max tokens must be positive, got %d", c.Cascade.MaxTokens)
	}
	if c.Cascade.Temperature < 0 || c.Cascade.Temperature > 2 {
		return fmt.Errorf("cascade temperature must be between 0 and 2, got %g", c.Cascade.Temperature)
	}
	if c.Cascade.RequestTimeout <= 0 {
		return fmt.Errorf("cascade request timeout must be positive")
	}

	// Auth is required in production
	if c.IsProduction() && !c.Auth.Enabled() {
		return fmt.Errorf("AUTH_JWT_SECRET is required in production")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// PersistenceEnabled reports whether attempts are written to PostgreSQL
func (c *Config) PersistenceEnabled() bool {
	return c.Database != nil
}

// GenerationParams returns the sampling settings sent to every provider
func (c *CascadeConfig) GenerationParams() providers.GenerationParams {
	return providers.GenerationParams{
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither is set.
func loadDatabaseConfig() *DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		pool.ConnectionString = dbURL
		return &pool
	}

	host := getEnv("DB_HOST", "")
	if host == "" {
		return nil
	}
	pool.Host = host
	pool.Port = getEnvAsInt("DB_PORT", 5432)
	pool.User = getEnv("DB_USER", "cascade")
	pool.Password = getEnv("DB_PASSWORD", "")
	pool.Database = getEnv("DB_NAME", "cascade")
	pool.SSLMode = getEnv("DB_SSLMODE", "disable")
	return &pool
}

// loadCredentials reads one API key per catalog provider. Unset keys are omitted.
func loadCredentials() providers.CredentialSet {
	creds := make(providers.CredentialSet, len(credentialEnv))
	for provider, key := range credentialEnv {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			creds[provider] = value
		}
	}
	return creds
}

// CredentialEnvVar returns the env var name that configures a provider's key
func CredentialEnvVar(provider string) (string, bool) {
	key, ok := credentialEnv[provider]
	return key, ok
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

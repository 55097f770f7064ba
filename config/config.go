package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfiguration is returned when required settings are missing or inconsistent.
// The service must refuse to start when it sees this error.
var ErrConfiguration = errors.New("invalid configuration")

const (
	// MinSigningKeyLength is the minimum number of bytes accepted for the HMAC session key
	MinSigningKeyLength = 32

	// MaxClockSkew bounds the leeway accepted when comparing token timestamps
	MaxClockSkew = 60 * time.Second
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Identity      IdentityConfig
	Session       SessionConfig
	Directory     DirectoryConfig
	Audit         AuditConfig
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
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
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

// IdentityConfig describes the trusted external identity provider whose
// assertions are accepted at login.
type IdentityConfig struct {
	Issuer        string   // trusted issuer identifier (iss)
	IssuerAliases []string // additional spellings of the same issuer
	ClientIDs     []string // accepted audiences; the first one is used for login
	JWKSURL       string   // when empty, resolved through OIDC discovery
	Discovery     bool

	RefreshInterval    time.Duration
	MinRefreshInterval time.Duration
	HTTPTimeout        time.Duration
	ClockSkew          time.Duration
}

// SessionConfig holds the settings for tokens minted by this service
type SessionConfig struct {
	SigningKey   string
	Issuer       string
	Audience     string
	DefaultTTL   time.Duration
	MaxTTL       time.Duration
	ClockSkew    time.Duration
	CookieName   string
	CookieSecure bool
}

// DirectoryConfig holds account lookup settings
type DirectoryConfig struct {
	LookupTimeout time.Duration
}

// AuditConfig holds the auth-event audit trail settings
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	WorkerCount int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := Load()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads the configuration from the environment without validating it
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*"}),
		},
		Database: loadDatabaseConfig(),
		Identity: IdentityConfig{
			Issuer:             getEnv("IDENTITY_ISSUER", "https://accounts.google.com"),
			IssuerAliases:      getEnvAsList("IDENTITY_ISSUER_ALIASES", nil),
			ClientIDs:          getEnvAsList("IDENTITY_CLIENT_IDS", nil),
			JWKSURL:            getEnv("IDENTITY_JWKS_URL", ""),
			Discovery:          getEnvAsBool("IDENTITY_DISCOVERY", true),
			RefreshInterval:    getEnvAsDuration("IDENTITY_KEYS_REFRESH_INTERVAL", time.Hour),
			MinRefreshInterval: getEnvAsDuration("IDENTITY_KEYS_MIN_REFRESH_INTERVAL", 30*time.Second),
			HTTPTimeout:        getEnvAsDuration("IDENTITY_HTTP_TIMEOUT", 10*time.Second),
			ClockSkew:          getEnvAsDuration("IDENTITY_CLOCK_SKEW", 30*time.Second),
		},
		Session: SessionConfig{
			SigningKey:   getEnv("SESSION_SIGNING_KEY", ""),
			Issuer:       getEnv("SESSION_ISSUER", "classroom-api"),
			Audience:     getEnv("SESSION_AUDIENCE", "classroom"),
			DefaultTTL:   getEnvAsDuration("SESSION_DEFAULT_TTL", 8*time.Hour),
			MaxTTL:       getEnvAsDuration("SESSION_MAX_TTL", 7*24*time.Hour),
			ClockSkew:    getEnvAsDuration("SESSION_CLOCK_SKEW", 30*time.Second),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "session"),
			CookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", true),
		},
		Directory: DirectoryConfig{
			LookupTimeout: getEnvAsDuration("DIRECTORY_LOOKUP_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			Enabled:     getEnvAsBool("AUDIT_ENABLED", true),
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount: getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate checks if all required configuration fields are set.
// Every failure wraps ErrConfiguration.
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return invalid("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return invalid("database user is required")
		}
		if c.Database.Database == "" {
			return invalid("database name is required")
		}
	}

	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}

	if c.IsProduction() && !c.Session.CookieSecure {
		return invalid("session cookie must be secure in production")
	}

	if c.Directory.LookupTimeout <= 0 {
		return invalid("directory lookup timeout must be positive")
	}

	if c.Audit.Enabled && (c.Audit.BufferSize <= 0 || c.Audit.WorkerCount <= 0) {
		return invalid("audit buffer size and worker count must be positive")
	}

	if c.Observability.LogLevel == "" {
		return invalid("log level is required")
	}

	return nil
}

// Validate checks the trusted identity provider settings
func (c *IdentityConfig) Validate() error {
	if c.Issuer == "" {
		return invalid("identity issuer is required")
	}
	if len(c.ClientIDs) == 0 {
		return invalid("at least one identity client id is required")
	}
	if c.JWKSURL == "" && !c.Discovery {
		return invalid("identity JWKS URL is required when discovery is disabled")
	}
	if c.RefreshInterval <= 0 {
		return invalid("identity key refresh interval must be positive")
	}
	if c.MinRefreshInterval < 0 || c.MinRefreshInterval > c.RefreshInterval {
		return invalid("identity minimum key refresh interval must be between 0 and the refresh interval")
	}
	if c.ClockSkew < 0 || c.ClockSkew > MaxClockSkew {
		return invalid(fmt.Sprintf("identity clock skew must be between 0 and %s", MaxClockSkew))
	}
	return nil
}

// Validate checks the session token settings
func (c *SessionConfig) Validate() error {
	if c.SigningKey == "" {
		return invalid("session signing key is required")
	}
	if len(c.SigningKey) < MinSigningKeyLength {
		return invalid(fmt.Sprintf("session signing key must be at least %d bytes", MinSigningKeyLength))
	}
	if c.Issuer == "" || c.Audience == "" {
		return invalid("session issuer and audience are required")
	}
	if c.DefaultTTL <= 0 {
		return invalid("session default TTL must be positive")
	}
	if c.MaxTTL < c.DefaultTTL {
		return invalid("session max TTL must not be lower than the default TTL")
	}
	if c.ClockSkew < 0 || c.ClockSkew > MaxClockSkew {
		return invalid(fmt.Sprintf("session clock skew must be between 0 and %s", MaxClockSkew))
	}
	return nil
}

// LoginAudience returns the client id assertions must be addressed to
func (c *IdentityConfig) LoginAudience() string {
	if len(c.ClientIDs) == 0 {
		return ""
	}
	return c.ClientIDs[0]
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
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

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "classroom"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "classroom"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
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

// getEnvAsList splits a comma separated variable, dropping blank entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

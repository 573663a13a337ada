package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/jobfill/jobfill/internal/crypto"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Profile seed sources
const (
	SeedNone  = "none"
	SeedFile  = "file"
	SeedMinIO = "minio"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	// Application
	App AppConfig

	// Server
	Server ServerConfig

	// Store backend selection
	Store StoreConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Profile seed
	Storage StorageConfig

	// Browser
	Browser BrowserConfig

	// Transport to the background service
	Transport TransportConfig

	// Rate Limits
	RateLimits RateLimitConfig

	// Security
	Security SecurityConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name    string `envconfig:"APP_NAME" default:"jobfill"`
	Version string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"60s"`
	MaxRequestSize  int64         `envconfig:"SERVER_MAX_REQUEST_SIZE" default:"1048576"` // 1MB
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects the key-value backend
type StoreConfig struct {
	Backend   string `envconfig:"STORE_BACKEND" default:"memory"` // memory, redis, postgres
	KeyPrefix string `envconfig:"STORE_KEY_PREFIX" default:"jobfill:"`

	// 32-byte key, base64 or raw; empty stores values in plaintext
	EncryptionKey string `envconfig:"STORE_ENCRYPTION_KEY" default:""`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"jobfill"`
	Password        string        `envconfig:"DB_PASSWORD" default:""`
	Database        string        `envconfig:"DB_NAME" default:"jobfill"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"1m"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig holds the profile seed settings
type StorageConfig struct {
	Source      string `envconfig:"PROFILE_SOURCE" default:"file"` // none, file, minio
	ProfilePath string `envconfig:"PROFILE_PATH" default:"profile.json"`
	Endpoint    string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKey   string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretKey   string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	Bucket      string `envconfig:"STORAGE_BUCKET" default:"jobfill"`
	Object      string `envconfig:"STORAGE_PROFILE_OBJECT" default:"profile.json"`
	Region      string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	UseSSL      bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

// BrowserConfig holds playwright settings
type BrowserConfig struct {
	Engine         string        `envconfig:"BROWSER_ENGINE" default:"chromium"` // chromium, firefox, webkit
	Headless       bool          `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo         float64       `envconfig:"BROWSER_SLOW_MO" default:"0"`
	NavigationWait time.Duration `envconfig:"BROWSER_NAVIGATION_TIMEOUT" default:"30s"`
	ActionTimeout  time.Duration `envconfig:"BROWSER_ACTION_TIMEOUT" default:"5s"`
	InstallDriver  bool          `envconfig:"BROWSER_INSTALL_DRIVER" default:"false"`
}

// TransportConfig holds settings for calls to the background service
type TransportConfig struct {
	BaseURL           string        `envconfig:"BACKGROUND_URL" default:"http://localhost:8080"`
	Timeout           time.Duration `envconfig:"BACKGROUND_TIMEOUT" default:"10s"`
	RequestsPerSecond float64       `envconfig:"BACKGROUND_RPS" default:"20"`
	Burst             int           `envconfig:"BACKGROUND_BURST" default:"5"`
	BreakerFailures   uint32        `envconfig:"BACKGROUND_BREAKER_FAILURES" default:"3"`
	BreakerTimeout    time.Duration `envconfig:"BACKGROUND_BREAKER_TIMEOUT" default:"10s"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMin int  `envconfig:"RATE_LIMIT_REQUESTS_PER_MIN" default:"600"`
	BurstSize      int  `envconfig:"RATE_LIMIT_BURST_SIZE" default:"50"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	// Shared key for the action API; empty disables authentication
	APIKey string `envconfig:"SECURITY_API_KEY" default:""`

	// CORS
	CORSEnabled        bool     `envconfig:"CORS_ENABLED" default:"true"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config without failing on invalid values (for CLI tools)
func LoadWithDefaults() (*Config, error) {
	var cfg Config

	// Try to load from env, but don't fail on bad values
	envconfig.Process("", &cfg)

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if cfg.Storage.Source == "" {
		cfg.Storage.Source = SeedNone
	}
	if cfg.Transport.BaseURL == "" {
		cfg.Transport.BaseURL = "http://localhost:8080"
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	switch c.Store.Backend {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.Env != EnvDevelopment && c.Database.Password == "" {
			errors = append(errors, "DB_PASSWORD is required in non-development mode")
		}
	default:
		errors = append(errors, fmt.Sprintf("STORE_BACKEND %q is not one of memory, redis, postgres", c.Store.Backend))
	}

	if k := c.Store.EncryptionKey; k != "" {
		if _, err := crypto.ParseKey(k); err != nil {
			errors = append(errors, fmt.Sprintf("STORE_ENCRYPTION_KEY: %v", err))
		}
	}

	switch c.Storage.Source {
	case SeedNone:
	case SeedFile:
		if c.Storage.ProfilePath == "" {
			errors = append(errors, "PROFILE_PATH is required for the file profile source")
		}
	case SeedMinIO:
		if c.Storage.Bucket == "" || c.Storage.Object == "" {
			errors = append(errors, "STORAGE_BUCKET and STORAGE_PROFILE_OBJECT are required for the minio profile source")
		}
	default:
		errors = append(errors, fmt.Sprintf("PROFILE_SOURCE %q is not one of none, file, minio", c.Storage.Source))
	}

	if c.RateLimits.Enabled && c.RateLimits.RequestsPerMin <= 0 {
		errors = append(errors, "RATE_LIMIT_REQUESTS_PER_MIN must be positive when rate limiting is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Auth       AuthConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	Queue      QueueConfig
	Scheduler  SchedulerConfig
	Encryption EncryptionConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration // Per-request handler timeout
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLSEnabled   bool
	MaxRetries   int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string

	// HTTP logging configuration
	SkipHealthLogs     bool // Skip logging health check endpoints
	SlowRequestSeconds int  // Log requests slower than this as warnings
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret           string
	JWTIssuer           string
	AccessTokenDuration time.Duration
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// QueueConfig holds job queue and admission control configuration.
type QueueConfig struct {
	// Concurrency is the number of concurrent executor workers.
	Concurrency int

	// MaxPendingPerOrg caps how many executions an organization may have
	// waiting in the queue before new requests are rejected.
	MaxPendingPerOrg int64

	// DefaultMaxRetries is the retry budget for workflows without an
	// explicit retry policy.
	DefaultMaxRetries int

	// TaskTimeout is the per-execution processing deadline.
	TaskTimeout time.Duration

	// RetentionDays controls how long finished task metadata is kept.
	RetentionDays int
}

// SchedulerConfig holds the schedule trigger scanner configuration.
type SchedulerConfig struct {
	Enabled bool
}

// EncryptionConfig holds the vault key for encrypting data source
// connection strings.
type EncryptionConfig struct {
	// Key must be exactly 32 bytes for AES-256-GCM. Can be provided raw,
	// hex-encoded (64 chars), or base64-encoded (44 chars).
	Key       string
	KeyFormat string
}

// IsConfigured returns true if encryption is configured.
func (c *EncryptionConfig) IsConfigured() bool {
	return c.Key != ""
}

// DecodedKey returns the raw 32-byte key. KeyFormat is resolved during
// Validate, so this only fails on a genuinely malformed key.
func (c *EncryptionConfig) DecodedKey() ([]byte, error) {
	switch c.KeyFormat {
	case "hex":
		return hex.DecodeString(c.Key)
	case "base64":
		return base64.StdEncoding.DecodeString(c.Key)
	default:
		return []byte(c.Key), nil
	}
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "netpad"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 1<<20), // 1MB default
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "netpad"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "netpad"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			TLSEnabled:   getEnvBool("REDIS_TLS_ENABLED", false),
			MaxRetries:   getEnvInt("REDIS_MAX_RETRIES", 3),
		},
		Log: LogConfig{
			Level:              getEnv("LOG_LEVEL", "info"),
			Format:             getEnv("LOG_FORMAT", "json"),
			SkipHealthLogs:     getEnvBool("LOG_SKIP_HEALTH", true),
			SlowRequestSeconds: getEnvInt("LOG_SLOW_REQUEST_SECONDS", 5),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer:           getEnv("AUTH_JWT_ISSUER", "netpad"),
			AccessTokenDuration: getEnvDuration("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 86400),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSec:  getEnvFloat("RATE_LIMIT_RPS", 100),
			Burst:           getEnvInt("RATE_LIMIT_BURST", 200),
			CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP", 1*time.Minute),
		},
		Queue: QueueConfig{
			Concurrency:       getEnvInt("QUEUE_CONCURRENCY", 10),
			MaxPendingPerOrg:  getEnvInt64("QUEUE_MAX_PENDING_PER_ORG", 100),
			DefaultMaxRetries: getEnvInt("QUEUE_DEFAULT_MAX_RETRIES", 2),
			TaskTimeout:       getEnvDuration("QUEUE_TASK_TIMEOUT", 10*time.Minute),
			RetentionDays:     getEnvInt("QUEUE_RETENTION_DAYS", 7),
		},
		Scheduler: SchedulerConfig{
			Enabled: getEnvBool("SCHEDULER_ENABLED", true),
		},
		Encryption: EncryptionConfig{
			Key:       getEnv("APP_ENCRYPTION_KEY", ""),
			KeyFormat: getEnv("APP_ENCRYPTION_KEY_FORMAT", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateBasic(); err != nil {
		return err
	}
	if c.App.Env == EnvProduction {
		return c.validateProduction()
	}
	return nil
}

// validateBasic validates basic configuration regardless of environment.
func (c *Config) validateBasic() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters")
	}
	if c.Queue.MaxPendingPerOrg < 1 {
		return fmt.Errorf("QUEUE_MAX_PENDING_PER_ORG must be at least 1, got %d", c.Queue.MaxPendingPerOrg)
	}
	if c.Queue.DefaultMaxRetries < 0 {
		return fmt.Errorf("QUEUE_DEFAULT_MAX_RETRIES must be non-negative, got %d", c.Queue.DefaultMaxRetries)
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("QUEUE_CONCURRENCY must be at least 1, got %d", c.Queue.Concurrency)
	}
	if err := c.validateEncryption(); err != nil {
		return err
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	return nil
}

// validateLog validates logging configuration.
func (c *Config) validateLog() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if c.Log.Level != "" && !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", c.Log.Format)
	}

	if c.Log.SlowRequestSeconds < 0 {
		return fmt.Errorf("LOG_SLOW_REQUEST_SECONDS must be non-negative, got %d", c.Log.SlowRequestSeconds)
	}

	return nil
}

// validateEncryption validates encryption configuration.
func (c *Config) validateEncryption() error {
	// Encryption key is optional in development, required in production
	if c.Encryption.Key == "" {
		if c.App.Env == EnvProduction {
			return fmt.Errorf("APP_ENCRYPTION_KEY is required in production")
		}
		return nil
	}

	keyLen := len(c.Encryption.Key)
	format := c.Encryption.KeyFormat

	// Auto-detect format if not specified
	if format == "" {
		switch {
		case keyLen == 32:
			format = "raw"
		case keyLen == 64:
			format = "hex"
		case keyLen == 44:
			format = "base64"
		default:
			return fmt.Errorf("APP_ENCRYPTION_KEY has invalid length %d (expected 32 raw, 64 hex, or 44 base64)", keyLen)
		}
		c.Encryption.KeyFormat = format
	}

	switch format {
	case "raw":
		if keyLen != 32 {
			return fmt.Errorf("APP_ENCRYPTION_KEY with format 'raw' must be exactly 32 bytes, got %d", keyLen)
		}
	case "hex":
		if keyLen != 64 {
			return fmt.Errorf("APP_ENCRYPTION_KEY with format 'hex' must be exactly 64 characters, got %d", keyLen)
		}
	case "base64":
		if keyLen != 44 {
			return fmt.Errorf("APP_ENCRYPTION_KEY with format 'base64' must be exactly 44 characters, got %d", keyLen)
		}
	default:
		return fmt.Errorf("APP_ENCRYPTION_KEY_FORMAT must be 'raw', 'hex', or 'base64', got '%s'", format)
	}

	return nil
}

// validateProduction validates production-specific configuration.
func (c *Config) validateProduction() error {
	if slices.Contains(c.CORS.AllowedOrigins, "*") {
		return fmt.Errorf("CORS wildcard origin not allowed in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database SSL must be enabled in production (use 'require' or 'verify-full')")
	}
	if !c.RateLimit.Enabled {
		return fmt.Errorf("rate limiting must be enabled in production")
	}
	if c.App.Debug {
		return fmt.Errorf("debug mode must be disabled in production")
	}
	if strings.ToLower(c.Log.Level) == "debug" {
		return fmt.Errorf("log level should not be 'debug' in production")
	}
	if len(c.Auth.JWTSecret) < 64 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 64 characters in production")
	}
	if c.Redis.Password == "" {
		return fmt.Errorf("redis password must be set in production")
	}
	if !c.Redis.TLSEnabled {
		return fmt.Errorf("redis TLS must be enabled in production")
	}
	return nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if the application is in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, p := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// GeoIP lookups
	GeoIPURL     string // Base URL of the IP-to-country service (optional)
	GeoIPTimeout time.Duration

	// Deep-scan analysis
	DeepScanURL     string // Base URL of the behavioral analysis service (optional)
	DeepScanAPIKey  string
	DeepScanTimeout time.Duration

	// Demo mode swaps the production evaluators and the deep-scan client for
	// deterministic local stand-ins. Useful for demos and integration tests.
	DemoMode bool

	// Security
	RateLimitRPS int

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint (optional, tracing disabled if not set)
}

const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultRateLimit       = 100
	DefaultGeoIPTimeout    = 3 * time.Second
	DefaultDeepScanTimeout = 10 * time.Second
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		GeoIPURL:        os.Getenv("GEOIP_URL"),
		GeoIPTimeout:    getEnvDuration("GEOIP_TIMEOUT", DefaultGeoIPTimeout),
		DeepScanURL:     os.Getenv("DEEPSCAN_URL"),
		DeepScanAPIKey:  os.Getenv("DEEPSCAN_API_KEY"),
		DeepScanTimeout: getEnvDuration("DEEPSCAN_TIMEOUT", DefaultDeepScanTimeout),
		DemoMode:        getEnvBool("DEMO_MODE", false),
		RateLimitRPS:    int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		OTLPEndpoint:    os.Getenv("OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are well formed
func (c *Config) Validate() error {
	if c.GeoIPURL != "" {
		if _, err := url.ParseRequestURI(c.GeoIPURL); err != nil {
			return fmt.Errorf("GEOIP_URL is not a valid URL: %w", err)
		}
	}
	if c.DeepScanURL != "" {
		if _, err := url.ParseRequestURI(c.DeepScanURL); err != nil {
			return fmt.Errorf("DEEPSCAN_URL is not a valid URL: %w", err)
		}
		if c.DeepScanAPIKey == "" && !c.DemoMode {
			return fmt.Errorf("DEEPSCAN_API_KEY is required when DEEPSCAN_URL is set")
		}
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Package config loads runtime settings from the environment and the tool
// catalog from disk.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Repository
	Root    string
	Catalog string

	// Crawl
	Concurrency      int
	ProbeConcurrency int
	Freshness        time.Duration
	Revalidate       bool

	// HTTP
	HTTPTimeout      time.Duration
	RateLimit        float64
	BreakerThreshold int
	GitHubToken      string

	// Logging
	LogLevel  string
	LogPretty bool

	// Metrics
	MetricsFile string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Root:    getEnv("TOOLURLS_ROOT", "data"),
		Catalog: getEnv("TOOLURLS_CATALOG", "tools.json"),

		Concurrency:      getIntEnv("TOOLURLS_CONCURRENCY", 4),
		ProbeConcurrency: getIntEnv("TOOLURLS_PROBE_CONCURRENCY", 4),
		Freshness:        getDurationEnv("TOOLURLS_FRESHNESS", 7*24*time.Hour),
		Revalidate:       getBoolEnv("TOOLURLS_REVALIDATE", false),

		HTTPTimeout:      getDurationEnv("TOOLURLS_HTTP_TIMEOUT", 30*time.Second),
		RateLimit:        getFloatEnv("TOOLURLS_RATE_LIMIT", 0),
		BreakerThreshold: getIntEnv("TOOLURLS_BREAKER_THRESHOLD", 5),
		GitHubToken:      getEnv("GITHUB_TOKEN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getBoolEnv("LOG_PRETTY", false),

		MetricsFile: getEnv("TOOLURLS_METRICS_FILE", ""),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

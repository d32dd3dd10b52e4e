package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Worker    WorkerConfig
	Fetcher   FetcherConfig
	LLM       LLMConfig
	Discovery DiscoveryConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// WorkerConfig bounds the job worker pool.
type WorkerConfig struct {
	BatchSize   int
	QueueSize   int
	RunDeadline time.Duration
	SweepEvery  time.Duration
	MaxRetries  int
}

// FetcherConfig holds outbound page-fetch configuration.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	CallDelay   time.Duration
}

// DiscoveryConfig lists seed directory pages to walk for candidate truck URLs.
// FetchDelay is the cooperative pause between consecutive seed fetches.
type DiscoveryConfig struct {
	SeedURLs   []string
	MaxURLs    int
	FetchDelay time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt("DB_MAX_CONNS", 10),
			ConnMaxLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Worker: WorkerConfig{
			BatchSize:   getEnvAsInt("WORKER_BATCH_SIZE", 4),
			QueueSize:   getEnvAsInt("WORKER_QUEUE_SIZE", 256),
			RunDeadline: getEnvAsDuration("WORKER_RUN_DEADLINE", 3*time.Minute),
			SweepEvery:  getEnvAsDuration("WORKER_SWEEP_INTERVAL", 30*time.Second),
			MaxRetries:  getEnvAsInt("WORKER_MAX_RETRIES", 3),
		},
		Fetcher: FetcherConfig{
			UserAgent: getEnv("FETCH_USER_AGENT", "streetbite-pipeline/1.0"),
			Timeout:   getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			Model:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			BaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Temperature: getEnvAsFloat32("GEMINI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("GEMINI_TIMEOUT", 45*time.Second),
			CallDelay:   getEnvAsDuration("GEMINI_CALL_DELAY", 1*time.Second),
		},
		Discovery: DiscoveryConfig{
			SeedURLs:   getEnvAsList("DISCOVERY_SEED_URLS"),
			MaxURLs:    getEnvAsInt("DISCOVERY_MAX_URLS", 50),
			FetchDelay: getEnvAsDuration("DISCOVERY_FETCH_DELAY", 1*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
	}
	if c.Worker.BatchSize <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKER_BATCH_SIZE must be positive", ErrInvalidInput)
	}
	return nil
}

// Package config loads runtime configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries all runtime settings for the billing service.
type Config struct {
	Environment string
	HTTPAddr    string

	Database DatabaseConfig
	Billing  BillingConfig
	Tracing  TracingConfig

	Bootstrap BootstrapConfig
}

// DatabaseConfig selects the gorm driver and connection string.
type DatabaseConfig struct {
	Driver string // "postgres" or "sqlite"
	DSN    string
}

// BillingConfig carries billing policy knobs.
type BillingConfig struct {
	// InvoiceNetTerms is the span between issue date and due date.
	InvoiceNetTerms time.Duration
	// PlanCacheTTL bounds staleness of cached catalog reads.
	PlanCacheTTL time.Duration
	// SchedulerSpec is the cron spec driving rollover and overdue sweeps.
	SchedulerSpec string
	// SchedulerBatchSize bounds rows claimed per sweep.
	SchedulerBatchSize int
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// BootstrapConfig controls startup seeding.
type BootstrapConfig struct {
	EnsureDefaultOrg bool
	SeedDemoCatalog  bool
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("DESKFLOW_ENV", "development"),
		HTTPAddr:    getEnv("DESKFLOW_HTTP_ADDR", ":8080"),
		Database: DatabaseConfig{
			Driver: getEnv("DESKFLOW_DB_DRIVER", "sqlite"),
			DSN:    getEnv("DESKFLOW_DB_DSN", "file:deskflow.db?cache=shared"),
		},
		Billing: BillingConfig{
			InvoiceNetTerms:    getDuration("DESKFLOW_INVOICE_NET_TERMS", 14*24*time.Hour),
			PlanCacheTTL:       getDuration("DESKFLOW_PLAN_CACHE_TTL", 30*time.Second),
			SchedulerSpec:      getEnv("DESKFLOW_SCHEDULER_SPEC", "@every 1m"),
			SchedulerBatchSize: getInt("DESKFLOW_SCHEDULER_BATCH_SIZE", 100),
		},
		Tracing: TracingConfig{
			Enabled:          getBool("DESKFLOW_TRACING_ENABLED", false),
			ServiceName:      getEnv("DESKFLOW_SERVICE_NAME", "deskflow"),
			ServiceVersion:   getEnv("DESKFLOW_SERVICE_VERSION", "dev"),
			ExporterEndpoint: getEnv("DESKFLOW_OTLP_ENDPOINT", ""),
			ExporterProtocol: getEnv("DESKFLOW_OTLP_PROTOCOL", "grpc"),
			SamplingRatio:    getFloat("DESKFLOW_TRACE_SAMPLING_RATIO", 0.1),
		},
		Bootstrap: BootstrapConfig{
			EnsureDefaultOrg: getBool("DESKFLOW_BOOTSTRAP_DEFAULT_ORG", true),
			SeedDemoCatalog:  getBool("DESKFLOW_BOOTSTRAP_DEMO_CATALOG", false),
		},
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Mailbox       MailboxConfig
	Pipeline      PipelineConfig
	Classifier    ClassifierConfig
	Forecast      ForecastConfig
	Export        ExportConfig
	Observability ObservabilityConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type MailboxConfig struct {
	// Directory of .eml files consumed by the local source. Remote mailbox
	// collaborators plug in behind the same Source interface.
	MessageDir string
	CursorPath string
	BatchSize  int
}

type PipelineConfig struct {
	Workers          int
	MaxAttempts      int
	RetryBaseDelay   time.Duration
	CapabilityPerSec float64
	Schedule         string // cron expression for ingestion runs
}

type ClassifierConfig struct {
	// Minimum calibrated score required to accept a semantic classification.
	MinConfidence  float64
	FuzzyThreshold int
	FallbackLocale string // "us" or "eu", used when the sender domain gives no hint
}

type ForecastConfig struct {
	HorizonMonths    int
	MinHistoryMonths int
	AutoConfirmScore float64
	SparseCategories []string
	Schedule         string // cron expression for forecast refresh
}

type ExportConfig struct {
	LedgerCSVPath string
	JobStatsPath  string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", ""),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "mailspend-dev"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Mailbox: MailboxConfig{
			MessageDir: getEnv("MAILBOX_MESSAGE_DIR", "./messages"),
			CursorPath: getEnv("MAILBOX_CURSOR_PATH", "./data/last_run.json"),
			BatchSize:  getEnvAsInt("MAILBOX_BATCH_SIZE", 200),
		},
		Pipeline: PipelineConfig{
			Workers:          getEnvAsInt("PIPELINE_WORKERS", 4),
			MaxAttempts:      getEnvAsInt("PIPELINE_MAX_ATTEMPTS", 3),
			RetryBaseDelay:   getEnvAsDuration("PIPELINE_RETRY_BASE_DELAY", 500*time.Millisecond),
			CapabilityPerSec: getEnvAsFloat("PIPELINE_CAPABILITY_PER_SEC", 10),
			Schedule:         getEnv("PIPELINE_SCHEDULE", "0 9 * * *"),
		},
		Classifier: ClassifierConfig{
			MinConfidence:  getEnvAsFloat("CLASSIFIER_MIN_CONFIDENCE", 0.35),
			FuzzyThreshold: getEnvAsInt("CLASSIFIER_FUZZY_THRESHOLD", 85),
			FallbackLocale: getEnv("CLASSIFIER_FALLBACK_LOCALE", "us"),
		},
		Forecast: ForecastConfig{
			HorizonMonths:    getEnvAsInt("FORECAST_HORIZON_MONTHS", 6),
			MinHistoryMonths: getEnvAsInt("FORECAST_MIN_HISTORY_MONTHS", 3),
			AutoConfirmScore: getEnvAsFloat("LEDGER_AUTO_CONFIRM_SCORE", 0.90),
			SparseCategories: getEnvAsList("FORECAST_SPARSE_CATEGORIES", nil),
			Schedule:         getEnv("FORECAST_SCHEDULE", "30 9 * * *"),
		},
		Export: ExportConfig{
			LedgerCSVPath: getEnv("EXPORT_LEDGER_CSV", "./data/ledger.csv"),
			JobStatsPath:  getEnv("EXPORT_JOB_STATS", "./data/job_stats.xlsx"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Pipeline.Workers < 1 {
		return nil, fmt.Errorf("PIPELINE_WORKERS must be >= 1, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Forecast.MinHistoryMonths < 2 {
		return nil, fmt.Errorf("FORECAST_MIN_HISTORY_MONTHS must be >= 2, got %d", cfg.Forecast.MinHistoryMonths)
	}

	return cfg, nil
}

// DSN returns the database connection string. Empty when no host is
// configured, which selects the in-memory ledger store.
func (c *DatabaseConfig) DSN() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

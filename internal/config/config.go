package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module exposes the loaded Config to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewTuningHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	Webhook   WebhookConfig
	AI        AIConfig
	Matching  MatchingConfig
	Redis     RedisConfig
	Submit    SubmitConfig
	Scheduler SchedulerConfig

	RabbitMQURL   string
	ReportLockTTL time.Duration
}

// WebhookConfig configures outbound show notifications.
type WebhookConfig struct {
	URL         string
	Secret      string
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	Mode        string
	BatchSize   int
	BatchPause  time.Duration
}

// AIConfig configures the AI-assisted match fallback. An empty APIKey disables it.
type AIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	RatePerSecond float64
}

// MatchingConfig controls show resolution.
type MatchingConfig struct {
	Concurrency int
}

// RedisConfig configures the optional redis client used for report locks.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SubmitConfig rate limits report submissions per organization. A zero Rate
// disables the limit.
type SubmitConfig struct {
	Rate  float64
	Burst int
}

// SchedulerConfig drives the background maintenance loop.
type SchedulerConfig struct {
	Enabled           bool
	RunInterval       time.Duration
	RecoveryThreshold time.Duration
	BatchSize         int
}

const (
	WebhookModeSequential = "sequential"
	WebhookModeParallel   = "parallel"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "tixsync"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getenv("LOG_FORMAT", "json")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tixsync"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "tixsync.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),

		Webhook: WebhookConfig{
			URL:         strings.TrimSpace(getenv("WEBHOOK_URL", "")),
			Secret:      strings.TrimSpace(getenv("WEBHOOK_SECRET", "")),
			MaxAttempts: getenvInt("WEBHOOK_MAX_ATTEMPTS", 3),
			BaseDelay:   getenvDuration("WEBHOOK_BASE_DELAY", time.Second),
			Timeout:     getenvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			Mode:        normalizeWebhookMode(getenv("WEBHOOK_MODE", WebhookModeSequential)),
			BatchSize:   getenvInt("WEBHOOK_BATCH_SIZE", 5),
			BatchPause:  getenvDuration("WEBHOOK_BATCH_PAUSE", 500*time.Millisecond),
		},
		AI: AIConfig{
			APIKey:        strings.TrimSpace(getenv("AI_API_KEY", "")),
			BaseURL:       strings.TrimSpace(getenv("AI_BASE_URL", "")),
			Model:         getenv("AI_MODEL", "gpt-4o-mini"),
			Timeout:       getenvDuration("AI_TIMEOUT", 20*time.Second),
			RatePerSecond: getenvFloat("AI_RATE_PER_SECOND", 2),
		},
		Matching: MatchingConfig{
			Concurrency: getenvInt("MATCH_CONCURRENCY", 4),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Submit: SubmitConfig{
			Rate:  getenvFloat("REPORT_SUBMIT_RATE", 0),
			Burst: getenvInt("REPORT_SUBMIT_BURST", 5),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:       getenvDuration("SCHEDULER_INTERVAL", time.Minute),
			RecoveryThreshold: getenvDuration("STALE_RUN_THRESHOLD", 15*time.Minute),
			BatchSize:         getenvInt("SCHEDULER_BATCH_SIZE", 50),
		},
		RabbitMQURL:   strings.TrimSpace(getenv("RABBITMQ_URL", "")),
		ReportLockTTL: getenvDuration("REPORT_LOCK_TTL", 5*time.Minute),
	}

	return cfg
}

// AIEnabled reports whether a reasoning-service credential is configured.
func (c Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

func normalizeWebhookMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case WebhookModeParallel, "batch", "batched":
		return WebhookModeParallel
	default:
		return WebhookModeSequential
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("750ms") or plain integers as milliseconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

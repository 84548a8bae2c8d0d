package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"sentinel/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	AI            AIConfig
	Search        SearchConfig
	Analysis      AnalysisConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"sentinel"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"sentinel"`
}

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Chat that receives digests and critical alerts
	ReportChatID int64 `envconfig:"TELEGRAM_REPORT_CHAT_ID" required:"true"`
}

type AIConfig struct {
	OpenAIKey    string        `envconfig:"OPENAI_API_KEY" required:"true"`
	Model        string        `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	Temperature  float64       `envconfig:"OPENAI_TEMPERATURE" default:"0.1"`
	MaxTokens    int           `envconfig:"OPENAI_MAX_TOKENS" default:"4096"`
	Timeout      time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	ReqPerMinute float64       `envconfig:"OPENAI_REQ_PER_MINUTE" default:"60"`
}

type SearchConfig struct {
	SerperKey    string        `envconfig:"SERPER_API_KEY" required:"true"`
	Timeout      time.Duration `envconfig:"SERPER_TIMEOUT" default:"15s"`
	ReqPerMinute float64       `envconfig:"SERPER_REQ_PER_MINUTE" default:"100"`
}

// AnalysisConfig drives the orchestration pipeline. Alert thresholds are part
// of the evaluation rules, not configuration; only timing and scope live here.
type AnalysisConfig struct {
	Competitors   []string      `envconfig:"ANALYSIS_COMPETITORS" default:"OpenAI,Anthropic,Google DeepMind"`
	RunTimeout    time.Duration `envconfig:"ANALYSIS_RUN_TIMEOUT" default:"10m"`
	RetentionDays int           `envconfig:"ANALYSIS_RETENTION_DAYS" default:"90"`
	// Lookback for synthesis inputs and trend history
	SynthesisLookback time.Duration `envconfig:"ANALYSIS_SYNTHESIS_LOOKBACK" default:"720h"`
	TrendLookback     time.Duration `envconfig:"ANALYSIS_TREND_LOOKBACK" default:"4320h"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for the background workers run in serve mode
type WorkerConfig struct {
	DailyAnalysisInterval  time.Duration `envconfig:"WORKER_DAILY_ANALYSIS_INTERVAL" default:"24h"`
	WeeklyDigestInterval   time.Duration `envconfig:"WORKER_WEEKLY_DIGEST_INTERVAL" default:"168h"`
	RetentionPurgeInterval time.Duration `envconfig:"WORKER_RETENTION_PURGE_INTERVAL" default:"24h"`

	DailyAnalysisEnabled  bool `envconfig:"WORKER_DAILY_ANALYSIS_ENABLED" default:"true"`
	WeeklyDigestEnabled   bool `envconfig:"WORKER_WEEKLY_DIGEST_ENABLED" default:"true"`
	RetentionPurgeEnabled bool `envconfig:"WORKER_RETENTION_PURGE_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}

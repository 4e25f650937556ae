package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the engine.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Notification NotificationConfig
	Tracing      TracingConfig
	Engine       EngineConfig
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME"                     envDefault:"support-rewards"`
	Env                   string `env:"APP_ENV"                      envDefault:"development"`
	Host                  string `env:"APP_HOST"                     envDefault:"0.0.0.0"`
	Port                  string `env:"APP_PORT"                     envDefault:"8080"`
	Version               string `env:"APP_VERSION"                  envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS"              envDefault:"10"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS"              envDefault:"2"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS"         envDefault:"true"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS"  envDefault:"30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS"  envDefault:"300"`
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB"       envDefault:"0"`
	LockTTL  time.Duration `env:"REDIS_LOCK_TTL" envDefault:"10s"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string `env:"LOG_LEVEL"       envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
	Service     string `env:"APP_NAME"        envDefault:"support-rewards"`
}

// NotificationConfig controls the fire-and-forget dispatcher.
type NotificationConfig struct {
	Enabled          bool          `env:"NOTIFY_ENABLED"           envDefault:"true"`
	Channel          string        `env:"NOTIFY_REDIS_CHANNEL"     envDefault:"support-rewards.notifications"`
	SupportRecipient string        `env:"NOTIFY_SUPPORT_RECIPIENT" envDefault:"support@example.com"`
	SendTimeout      time.Duration `env:"NOTIFY_SEND_TIMEOUT"      envDefault:"5s"`
}

// TracingConfig enables OTLP export. Tracing stays off without an endpoint.
type TracingConfig struct {
	Enabled  bool   `env:"OTEL_ENABLED"  envDefault:"true"`
	Endpoint string `env:"OTEL_ENDPOINT"`
}

// EngineConfig tunes the gamification engine.
type EngineConfig struct {
	LedgerMaxRetries        uint          `env:"ENGINE_LEDGER_MAX_RETRIES"        envDefault:"5"`
	LedgerRetryInitial      time.Duration `env:"ENGINE_LEDGER_RETRY_INITIAL"      envDefault:"20ms"`
	LockWaitTimeout         time.Duration `env:"ENGINE_LOCK_WAIT_TIMEOUT"         envDefault:"5s"`
	LeaderboardDefaultLimit int           `env:"ENGINE_LEADERBOARD_DEFAULT_LIMIT" envDefault:"10"`
	CatalogFile             string        `env:"ENGINE_CATALOG_FILE"`
}

// Load reads configuration from the environment, honoring a local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Addr returns the ops server bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RedisEnabled reports whether a Redis address was configured.
func (r RedisConfig) RedisEnabled() bool {
	return r.Addr != ""
}

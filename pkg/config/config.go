package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database       DatabaseConfig
	Redis          RedisConfig
	Cache          CacheConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Sentry         SentryConfig
	Studio         StudioConfig
	Sweeper        SweeperConfig
	Ledger         LedgerConfig
	Reconciliation ReconciliationConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs the schedule availability cache.
type CacheConfig struct {
	Enabled     bool
	ScheduleTTL time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type SentryConfig struct {
	DSN     string
	Release string
}

// StudioConfig describes studio-wide policy defaults.
type StudioConfig struct {
	UTCOffsetHours           int
	DefaultCancelHoursBefore int
}

// SweeperConfig configures the auto-completion sweep and its trigger.
type SweeperConfig struct {
	CronSecret        string
	CronSecretHash    string
	BatchSize         int
	Timeout           time.Duration
	LockTTL           time.Duration
	ExpireEnrollments bool
}

// LedgerConfig tunes compare-and-set behaviour on enrollment usage.
type LedgerConfig struct {
	CASRetries int
}

// ReconciliationConfig sizes the worker that persists ledger soft failures.
type ReconciliationConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled:     v.GetBool("ENABLE_CACHE"),
		ScheduleTTL: parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Sentry = SentryConfig{
		DSN:     v.GetString("SENTRY_DSN"),
		Release: v.GetString("SENTRY_RELEASE"),
	}

	cfg.Studio = StudioConfig{
		UTCOffsetHours:           v.GetInt("STUDIO_UTC_OFFSET_HOURS"),
		DefaultCancelHoursBefore: v.GetInt("DEFAULT_CANCEL_HOURS_BEFORE"),
	}

	batch := v.GetInt("SWEEP_BATCH_SIZE")
	if batch <= 0 {
		batch = 500
	}
	cfg.Sweeper = SweeperConfig{
		CronSecret:        v.GetString("CRON_SECRET"),
		CronSecretHash:    v.GetString("CRON_SECRET_HASH"),
		BatchSize:         batch,
		Timeout:           parseDuration(v.GetString("SWEEP_TIMEOUT"), 2*time.Minute),
		LockTTL:           parseDuration(v.GetString("SWEEP_LOCK_TTL"), 5*time.Minute),
		ExpireEnrollments: v.GetBool("SWEEPER_EXPIRE_ENROLLMENTS"),
	}

	cfg.Ledger = LedgerConfig{
		CASRetries: v.GetInt("LEDGER_CAS_RETRIES"),
	}

	cfg.Reconciliation = ReconciliationConfig{
		Workers:    v.GetInt("RECONCILIATION_WORKERS"),
		MaxRetries: v.GetInt("RECONCILIATION_RETRIES"),
		RetryDelay: parseDuration(v.GetString("RECONCILIATION_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "pawclass")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("SCHEDULE_CACHE_TTL", "1m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("SENTRY_RELEASE", "")

	v.SetDefault("STUDIO_UTC_OFFSET_HOURS", 9)
	v.SetDefault("DEFAULT_CANCEL_HOURS_BEFORE", 24)

	v.SetDefault("CRON_SECRET", "")
	v.SetDefault("CRON_SECRET_HASH", "")
	v.SetDefault("SWEEP_BATCH_SIZE", 500)
	v.SetDefault("SWEEP_TIMEOUT", "2m")
	v.SetDefault("SWEEP_LOCK_TTL", "5m")
	v.SetDefault("SWEEPER_EXPIRE_ENROLLMENTS", false)

	v.SetDefault("LEDGER_CAS_RETRIES", 3)

	v.SetDefault("RECONCILIATION_WORKERS", 1)
	v.SetDefault("RECONCILIATION_RETRIES", 3)
	v.SetDefault("RECONCILIATION_RETRY_DELAY", "2s")
}

// isMissingFile tolerates an absent .env when SetConfigFile is used, where viper
// surfaces the raw fs error instead of ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

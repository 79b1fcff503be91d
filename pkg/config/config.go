// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the bot and its companion tools.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	Bot       BotConfig             `mapstructure:"bot" validate:"required"`
	Server    ServerConfig          `mapstructure:"server"`
	Database  DatabaseConfig        `mapstructure:"database" validate:"required"`
	Redis     RedisConfig           `mapstructure:"redis" validate:"required"`
	Logger    LoggerConfig          `mapstructure:"logger"`
	Sentry    SentryConfig          `mapstructure:"sentry"`
	RateLimit RateLimitConfig       `mapstructure:"rate_limit"`
	Ledger    LedgerConfig          `mapstructure:"ledger"`
	Tiers     map[string]TierConfig `mapstructure:"tiers" validate:"required,dive"`
	Commands  CommandsConfig        `mapstructure:"commands"`
	BinLookup BinLookupConfig       `mapstructure:"bin_lookup"`
	Jobs      JobsConfig            `mapstructure:"jobs"`
	I18n      I18nConfig            `mapstructure:"i18n"`
}

// BotConfig configures the Telegram side of the bot.
type BotConfig struct {
	Token          string        `mapstructure:"token" validate:"required"`
	Username       string        `mapstructure:"username"`
	OwnerID        int64         `mapstructure:"owner_id" validate:"required"`
	Mode           string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	WebhookListen  string        `mapstructure:"webhook_listen"`
	WebhookURL     string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	PaymentDetails string        `mapstructure:"payment_details"`
}

// ServerConfig configures the operational HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig describes the PostgreSQL connection.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"required"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name" validate:"required"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// RedisConfig describes the Redis connection shared by caches, locks and queues.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables a rotating log file next to stdout.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// RateLimitRule is a limit over a window expressed as a duration string.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig holds per-tier request budgets and per-command cooldowns.
type RateLimitConfig struct {
	Enabled   bool                     `mapstructure:"enabled"`
	Whitelist []int64                  `mapstructure:"whitelist"`
	PerTier   map[string]RateLimitRule `mapstructure:"per_tier"`
	Owner     RateLimitRule            `mapstructure:"owner"`
	Cooldowns map[string]string        `mapstructure:"cooldowns"`
}

// LedgerConfig holds credit policy constants and locking parameters.
type LedgerConfig struct {
	RegistrationBonus int64         `mapstructure:"registration_bonus" validate:"gte=0"`
	ReferralBonus     int64         `mapstructure:"referral_bonus" validate:"gte=0"`
	MonthDays         int           `mapstructure:"month_days" validate:"gt=0"`
	Locker            string        `mapstructure:"locker" validate:"oneof=redis memory"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockWait          time.Duration `mapstructure:"lock_wait"`
}

// TierConfig describes one tier's pricing, quota and command set.
type TierConfig struct {
	CreditsPerCheck int64    `mapstructure:"credits_per_check" validate:"gt=0"`
	ChecksPerDay    int      `mapstructure:"checks_per_day" validate:"min=-1,ne=0"`
	Commands        []string `mapstructure:"commands"`
}

// CommandsConfig classifies commands independently of tiers.
type CommandsConfig struct {
	OwnerOnly  []string `mapstructure:"owner_only"`
	CheckClass []string `mapstructure:"check_class"`
}

// BinLookupConfig configures the issuer lookup client and its cache.
type BinLookupConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheBackend string        `mapstructure:"cache_backend" validate:"oneof=redis postgres memory"`
}

// JobsConfig configures the asynq worker and scheduler.
type JobsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Concurrency   int    `mapstructure:"concurrency"`
	PurgeSchedule string `mapstructure:"purge_schedule"`
	AsyncNotify   bool   `mapstructure:"async_notify"`
}

// I18nConfig selects the message catalog locale. LocalesDir replaces the
// embedded catalogs when set.
type I18nConfig struct {
	DefaultLocale string `mapstructure:"default_locale"`
	LocalesDir    string `mapstructure:"locales_dir"`
}

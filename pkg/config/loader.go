package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// .env files are optional in every environment.
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

// LoadFile reads a single YAML file without consulting the environment. Used by tools and tests.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return decode(v)
}

// Watch invokes fn with the freshly decoded config every time the config file changes.
// Invalid configs are reported through onErr and otherwise ignored.
func Watch(v *viper.Viper, fn func(*Config), onErr func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}

		fn(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.username", "")
	v.SetDefault("bot.owner_id", 0)
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.poll_timeout", 10*time.Second)
	v.SetDefault("bot.webhook_listen", ":8443")
	v.SetDefault("bot.webhook_url", "")
	v.SetDefault("bot.payment_details", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tiergate")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "tiergate")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.pool_timeout", 4*time.Second)
	v.SetDefault("redis.idle_timeout", 5*time.Minute)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.min_retry_backoff", 8*time.Millisecond)
	v.SetDefault("redis.max_retry_backoff", 512*time.Millisecond)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file.enabled", false)
	v.SetDefault("logger.file.path", "logs/bot.log")
	v.SetDefault("logger.file.max_size_mb", 100)
	v.SetDefault("logger.file.max_backups", 5)
	v.SetDefault("logger.file.max_age_days", 30)
	v.SetDefault("logger.file.compress", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_tier.free.limit", 10)
	v.SetDefault("rate_limit.per_tier.free.window", "1h")
	v.SetDefault("rate_limit.per_tier.monthly.limit", 100)
	v.SetDefault("rate_limit.per_tier.monthly.window", "1h")
	v.SetDefault("rate_limit.per_tier.lifetime.limit", 100)
	v.SetDefault("rate_limit.per_tier.lifetime.window", "1h")
	v.SetDefault("rate_limit.owner.limit", 1000)
	v.SetDefault("rate_limit.owner.window", "1h")
	v.SetDefault("rate_limit.cooldowns.check", "60s")
	v.SetDefault("rate_limit.cooldowns.masschk", "300s")
	v.SetDefault("rate_limit.cooldowns.generate", "180s")
	v.SetDefault("rate_limit.cooldowns.bin", "120s")
	v.SetDefault("rate_limit.cooldowns.deepchk", "600s")

	v.SetDefault("ledger.registration_bonus", 50)
	v.SetDefault("ledger.referral_bonus", 25)
	v.SetDefault("ledger.month_days", 30)
	v.SetDefault("ledger.locker", "redis")
	v.SetDefault("ledger.lock_ttl", 10*time.Second)
	v.SetDefault("ledger.lock_wait", 3*time.Second)

	freeCommands := []string{"start", "register", "check", "buy", "credits", "referral", "myreferrals", "me", "disclaimer"}
	monthlyCommands := append(append([]string{}, freeCommands...), "masschk", "generate", "generateinfo", "bin")
	lifetimeCommands := append(append([]string{}, monthlyCommands...), "deepchk", "binstats", "vault", "autocharge", "binweekly", "log")

	v.SetDefault("tiers.free.credits_per_check", 5)
	v.SetDefault("tiers.free.checks_per_day", 5)
	v.SetDefault("tiers.free.commands", freeCommands)
	v.SetDefault("tiers.monthly.credits_per_check", 2)
	v.SetDefault("tiers.monthly.checks_per_day", 50)
	v.SetDefault("tiers.monthly.commands", monthlyCommands)
	v.SetDefault("tiers.lifetime.credits_per_check", 1)
	v.SetDefault("tiers.lifetime.checks_per_day", -1)
	v.SetDefault("tiers.lifetime.commands", lifetimeCommands)

	v.SetDefault("commands.owner_only", []string{"users", "broadcast", "confirm", "reject", "ban", "unban", "addcredits"})
	v.SetDefault("commands.check_class", []string{"check"})

	v.SetDefault("bin_lookup.base_url", "https://lookup.binlist.net/")
	v.SetDefault("bin_lookup.timeout", 10*time.Second)
	v.SetDefault("bin_lookup.user_agent", "tiergate-bot/1.0")
	v.SetDefault("bin_lookup.cache_ttl", 24*time.Hour)
	v.SetDefault("bin_lookup.cache_backend", "redis")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.concurrency", 5)
	v.SetDefault("jobs.purge_schedule", "@every 1h")
	v.SetDefault("jobs.async_notify", true)

	v.SetDefault("i18n.default_locale", "en")
	v.SetDefault("i18n.locales_dir", "")
}

// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps flat, deployment-friendly variable names onto config keys.
var envBindings = map[string]string{
	"bot.token":                "BOT_TOKEN",
	"admin.ids":                "ADMIN_IDS",
	"admin.support_group_id":   "SUPPORT_GROUP_ID",
	"admin.questions_group_id": "QUESTIONS_GROUP_ID",
	"database.dsn":             "DATABASE_DSN",
	"database.driver":          "DATABASE_DRIVER",
	"redis.addr":               "REDIS_ADDR",
	"redis.password":           "REDIS_PASSWORD",
	"sentry.dsn":               "SENTRY_DSN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.timeout", "10s")
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.webhook_listen", ":8443")
	v.SetDefault("bot.webhook_url", "")

	v.SetDefault("admin.ids", []int64{})
	v.SetDefault("admin.support_group_id", 0)
	v.SetDefault("admin.questions_group_id", 0)

	v.SetDefault("inventory.head_office_name", "Головной офис")
	v.SetDefault("inventory.timezone", "Asia/Almaty")
	v.SetDefault("inventory.auto_schedule_cron", "0 8 * * *")
	v.SetDefault("inventory.reminder_cron", "0 9 * * *")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.create_if_missing", false)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.pool_timeout", "4s")
	v.SetDefault("redis.idle_timeout", "5m")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.min_retry_backoff", "8ms")
	v.SetDefault("redis.max_retry_backoff", "512ms")

	v.SetDefault("state.ttl", "0s")
	v.SetDefault("state.sweep_interval", "10m")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 30)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("server.port", "8080")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_user.limit", 30)
	v.SetDefault("rate_limit.per_user.window", "1m")
	v.SetDefault("rate_limit.global.limit", 600)
	v.SetDefault("rate_limit.global.window", "1m")
	v.SetDefault("rate_limit.whitelist", []int64{})

	v.SetDefault("i18n.default_lang", "ru")
}

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// env files are optional
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range envBindings {
		if err := v.BindEnv(key, name); err != nil {
			return nil, nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.Set("app_env", env)

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
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

// Watch re-reads the config file whenever it changes and hands the validated result to onChange.
// Invalid edits are logged and ignored.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if log == nil {
		log = slog.Default()
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err != nil {
		log.Info("config file not watched", "file", v.ConfigFileUsed(), "error", err)
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			log.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		log.Info("config reloaded", "file", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
}

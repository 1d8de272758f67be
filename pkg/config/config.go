package config

import (
	"fmt"
	"time"

	"github.com/Proton-105/stockroom-bot/pkg/redis"
)

// Config holds runtime configuration for the stockroom bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Bot       BotConfig       `mapstructure:"bot"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     redis.Config    `mapstructure:"redis"`
	State     StateConfig     `mapstructure:"state"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	I18n      I18nConfig      `mapstructure:"i18n"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token         string        `mapstructure:"token" validate:"required"`
	Mode          string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout       time.Duration `mapstructure:"timeout"`
	WebhookListen string        `mapstructure:"webhook_listen"`
	WebhookURL    string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
}

// AdminConfig lists the privileged users and the staff chats receiving tickets.
type AdminConfig struct {
	IDs              []int64 `mapstructure:"ids"`
	SupportGroupID   int64   `mapstructure:"support_group_id"`
	QuestionsGroupID int64   `mapstructure:"questions_group_id"`
}

// InventoryConfig holds the inventory collection settings that are not stored in the database.
type InventoryConfig struct {
	HeadOfficeName   string `mapstructure:"head_office_name" validate:"required"`
	Timezone         string `mapstructure:"timezone" validate:"required"`
	AutoScheduleCron string `mapstructure:"auto_schedule_cron" validate:"required"`
	ReminderCron     string `mapstructure:"reminder_cron" validate:"required"`
}

// Location resolves the configured timezone.
func (c InventoryConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DatabaseConfig selects the record store backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	CreateIfMissing bool          `mapstructure:"create_if_missing"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StateConfig controls conversation draft persistence.
type StateConfig struct {
	// TTL of an idle draft; zero keeps drafts until the flow ends.
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LoggerConfig configures the slog handler chain.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required"`
}

// RateLimitRule is a limit within a window, e.g. 30 per "1m".
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig configures per-user throttling of inbound updates.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerUser   RateLimitRule `mapstructure:"per_user"`
	Global    RateLimitRule `mapstructure:"global"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

// I18nConfig selects the fallback language.
type I18nConfig struct {
	DefaultLang string `mapstructure:"default_lang" validate:"oneof=ru kz"`
}

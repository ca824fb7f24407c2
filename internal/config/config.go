// Package config provides configuration loading, validation, and defaults
// for the group digest bot. Values come from config.yaml and BOT_-prefixed
// environment variables layered over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// GeminiConfig configures the LLM provider. Timeout and retry tunables are
// explicit per-provider settings rather than constants: a long-running
// "thinking" model needs a larger timeout than a standard one.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"      validate:"required"`
	Endpoint    string        `mapstructure:"endpoint"`
	Model       string        `mapstructure:"model"        validate:"required"`
	Temperature float32       `mapstructure:"temperature"  validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=1s,max=30m"`
	MaxRetries  int           `mapstructure:"max_retries"  validate:"min=0,max=10"`
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"min=100ms"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"  validate:"min=1s"`
}

// AnalysisConfig bounds the message window and the extraction outputs.
type AnalysisConfig struct {
	Days            int      `mapstructure:"days"              validate:"min=1"`
	MaxMessages     int      `mapstructure:"max_messages"      validate:"min=1"`
	MinMessages     int      `mapstructure:"min_messages"      validate:"min=1"`
	MaxTopics       int      `mapstructure:"max_topics"        validate:"min=1,max=10"`
	MaxUserTitles   int      `mapstructure:"max_user_titles"   validate:"min=1,max=50"`
	MaxGoldenQuotes int      `mapstructure:"max_golden_quotes" validate:"min=0,max=20"`
	TopKeywords     int      `mapstructure:"top_keywords"      validate:"min=1,max=50"`
	StopWords       []string `mapstructure:"stop_words"`
}

// SchedulerConfig controls the automatic daily analysis and the worker pool.
// An empty AllowedGroups list means every group is eligible.
type SchedulerConfig struct {
	Enabled                 bool          `mapstructure:"enabled"`
	Schedule                string        `mapstructure:"schedule" validate:"required"`
	Workers                 int           `mapstructure:"workers"  validate:"min=1,max=64"`
	Cooldown                time.Duration `mapstructure:"cooldown" validate:"min=0"`
	ManualOverridesCooldown bool          `mapstructure:"manual_overrides_cooldown"`
	AllowedGroups           []int64       `mapstructure:"allowed_groups"`
}

// LoadConfig reads configuration from the given YAML file and BOT_* environment
// variables, applies defaults, and validates the result. A missing config file
// is not an error; defaults and environment variables are used instead.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) && !strings.Contains(err.Error(), "no such file") {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		slog.Info("Config file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("database.path", "storage.db")

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.6)
	v.SetDefault("gemini.timeout", 2*time.Minute)
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.backoff_base", time.Second)
	v.SetDefault("gemini.backoff_max", 30*time.Second)

	v.SetDefault("analysis.days", 1)
	v.SetDefault("analysis.max_messages", 1000)
	v.SetDefault("analysis.min_messages", 10)
	v.SetDefault("analysis.max_topics", 5)
	v.SetDefault("analysis.max_user_titles", 10)
	v.SetDefault("analysis.max_golden_quotes", 5)
	v.SetDefault("analysis.top_keywords", 10)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.schedule", "0 0 23 * * *")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.cooldown", time.Hour)
	v.SetDefault("scheduler.manual_overrides_cooldown", true)
}

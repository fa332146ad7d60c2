package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	Addr          string     `mapstructure:"ADDR"`
	Store         string     `mapstructure:"STORE"`
	DBPath        string     `mapstructure:"DB"`
	RedisURL      string     `mapstructure:"REDIS_URL"`
	RedisPrefix   string     `mapstructure:"REDIS_PREFIX"`
	AdminUser     string     `mapstructure:"ADMIN_USER"`
	AdminPassword string     `mapstructure:"ADMIN_PASSWORD"`
	LogLevel      string     `mapstructure:"LOG_LEVEL"`
	LogFormat     string     `mapstructure:"LOG_FORMAT"`
	RateLimits    RateLimits `mapstructure:",squash"`
}

type RateLimits struct {
	PostPerMinute   int `mapstructure:"RL_POST_PER_MIN"`
	VotePerMinute   int `mapstructure:"RL_VOTE_PER_MIN"`
	ReportPerMinute int `mapstructure:"RL_REPORT_PER_MIN"`
}

var defaults = map[string]any{
	"ADDR":              ":8080",
	"STORE":             StoreSQLite,
	"DB":                "commons.db",
	"REDIS_URL":         "redis://localhost:6379/0",
	"REDIS_PREFIX":      "commons:",
	"ADMIN_USER":        "admin",
	"ADMIN_PASSWORD":    "admin",
	"LOG_LEVEL":         "info",
	"LOG_FORMAT":        "json",
	"RL_POST_PER_MIN":   30,
	"RL_VOTE_PER_MIN":   120,
	"RL_REPORT_PER_MIN": 10,
}

// Load reads configuration from COMMONS_* environment variables and an
// optional config file. With an empty path, commons.yaml in the working
// directory is used when present.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("COMMONS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("commons")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Store == StoreSQLite && c.DBPath == "" {
		return errors.New("DB is required for the sqlite store")
	}
	if c.Store == StoreRedis && c.RedisURL == "" {
		return errors.New("REDIS_URL is required for the redis store")
	}
	if strings.TrimSpace(c.AdminUser) == "" {
		return errors.New("ADMIN_USER is required")
	}
	if c.RateLimits.PostPerMinute < 0 || c.RateLimits.VotePerMinute < 0 || c.RateLimits.ReportPerMinute < 0 {
		return errors.New("rate limits must not be negative")
	}
	return nil
}

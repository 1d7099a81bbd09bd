package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Telegram struct {
		BotToken      string `yaml:"bot_token"`
		Debug         bool   `yaml:"debug"`
		UpdateTimeout int    `yaml:"update_timeout"`
	} `yaml:"telegram"`

	API struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		RateLimitRPS    float64 `yaml:"rate_limit_rps"`
		RateLimitBurst  int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Journal struct {
		Enabled            bool `yaml:"enabled"`
		RetentionDays      int  `yaml:"retention_days"`
		PruneIntervalHours int  `yaml:"prune_interval_hours"`
	} `yaml:"journal"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Reminders struct {
		Enabled              bool    `yaml:"enabled"`
		LeadMinutes          int     `yaml:"lead_minutes"`
		CheckIntervalSeconds int     `yaml:"check_interval_seconds"`
		MaxAttempts          int     `yaml:"max_attempts"`
		BatchSize            int     `yaml:"batch_size"`
		SendRate             float64 `yaml:"send_rate"`
		Timezone             string  `yaml:"timezone"`
	} `yaml:"reminders"`

	Session struct {
		DialogTimeoutMinutes int `yaml:"dialog_timeout_minutes"`
	} `yaml:"session"`

	// Masters restricts the master role to these profiles ("chat:<id>").
	// Empty means anyone may pick it on the welcome screen.
	Masters []string `yaml:"masters"`
}

// Load reads the YAML file at path, then .env and environment overrides.
// A missing file at the default path is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	_ = godotenv.Load(".env")

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.API.BaseURL = cast.ToString(getOrReturnDefault("SCHEDULINK_API_URL", c.API.BaseURL))
	c.API.APIKey = cast.ToString(getOrReturnDefault("SCHEDULINK_API_KEY", c.API.APIKey))
	c.API.TimeoutSeconds = cast.ToInt(getOrReturnDefault("SCHEDULINK_API_TIMEOUT_SECONDS", c.API.TimeoutSeconds))
	c.API.CacheTTLSeconds = cast.ToInt(getOrReturnDefault("SCHEDULINK_CACHE_TTL_SECONDS", c.API.CacheTTLSeconds))
	c.API.RateLimitRPS = cast.ToFloat64(getOrReturnDefault("SCHEDULINK_RATE_LIMIT_RPS", c.API.RateLimitRPS))

	c.Telegram.BotToken = cast.ToString(getOrReturnDefault("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken))
	c.Telegram.Debug = cast.ToBool(getOrReturnDefault("TELEGRAM_DEBUG", c.Telegram.Debug))

	c.Redis.Address = cast.ToString(getOrReturnDefault("REDIS_ADDR", c.Redis.Address))
	c.Redis.Password = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", c.Redis.Password))

	c.Database.Path = cast.ToString(getOrReturnDefault("SCHEDULINK_DB_PATH", c.Database.Path))
	c.Logging.Level = cast.ToString(getOrReturnDefault("SCHEDULINK_LOG_LEVEL", c.Logging.Level))
	c.Monitoring.PrometheusEnabled = cast.ToBool(getOrReturnDefault("SCHEDULINK_PROMETHEUS_ENABLED", c.Monitoring.PrometheusEnabled))
	c.Reminders.Enabled = cast.ToBool(getOrReturnDefault("SCHEDULINK_REMINDERS_ENABLED", c.Reminders.Enabled))
	c.Reminders.Timezone = cast.ToString(getOrReturnDefault("SCHEDULINK_TIMEZONE", c.Reminders.Timezone))
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000"
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = 10
	}
	if c.API.RateLimitBurst <= 0 {
		c.API.RateLimitBurst = 5
	}
	if c.Telegram.UpdateTimeout <= 0 {
		c.Telegram.UpdateTimeout = 60
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/schedulink.db"
	}
	if c.Journal.RetentionDays <= 0 {
		c.Journal.RetentionDays = 90
	}
	if c.Journal.PruneIntervalHours <= 0 {
		c.Journal.PruneIntervalHours = 24
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Reminders.LeadMinutes <= 0 {
		c.Reminders.LeadMinutes = 60
	}
	if c.Reminders.CheckIntervalSeconds <= 0 {
		c.Reminders.CheckIntervalSeconds = 60
	}
	if c.Reminders.MaxAttempts <= 0 {
		c.Reminders.MaxAttempts = 3
	}
	if c.Reminders.BatchSize <= 0 {
		c.Reminders.BatchSize = 50
	}
	if c.Reminders.SendRate <= 0 {
		c.Reminders.SendRate = 20
	}
	if c.Session.DialogTimeoutMinutes <= 0 {
		c.Session.DialogTimeoutMinutes = 30
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs error

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = multierr.Append(errs, fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.CacheTTLSeconds < 0 {
		errs = multierr.Append(errs, fmt.Errorf("api.cache_ttl_seconds must not be negative"))
	}
	if c.API.RateLimitRPS < 0 {
		errs = multierr.Append(errs, fmt.Errorf("api.rate_limit_rps must not be negative"))
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("logging.level: %w", err))
	}
	for _, p := range []struct {
		name string
		port int
	}{
		{"monitoring.health_check_port", c.Monitoring.HealthCheckPort},
		{"monitoring.prometheus_port", c.Monitoring.PrometheusPort},
	} {
		if p.port < 0 || p.port > 65535 {
			errs = multierr.Append(errs, fmt.Errorf("%s out of range: %d", p.name, p.port))
		}
	}
	if c.Reminders.Timezone != "" {
		if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reminders.timezone: %w", err))
		}
	}
	for i, m := range c.Masters {
		if m == "" {
			errs = multierr.Append(errs, fmt.Errorf("masters[%d] is empty", i))
		}
	}
	return errs
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) DialogTimeout() time.Duration {
	return time.Duration(c.Session.DialogTimeoutMinutes) * time.Minute
}

func (c *Config) JournalPruneInterval() time.Duration {
	return time.Duration(c.Journal.PruneIntervalHours) * time.Hour
}

func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.Reminders.LeadMinutes) * time.Minute
}

func (c *Config) ReminderInterval() time.Duration {
	return time.Duration(c.Reminders.CheckIntervalSeconds) * time.Second
}

// ReminderLocation is the zone slot dates and times are read in.
func (c *Config) ReminderLocation() *time.Location {
	if c.Reminders.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Reminders.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LogLevel returns the configured level, or info if it does not parse.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Logging.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

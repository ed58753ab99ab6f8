package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"gold-price-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Source    SourceConfig    `mapstructure:"source"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Charting  ChartingConfig  `mapstructure:"charting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToMinute   bool          `mapstructure:"align_to_minute"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SourceConfig covers the G2G marketplace price feed.
type SourceConfig struct {
	KeywordURL     string        `mapstructure:"keyword_url"`
	SearchBaseURL  string        `mapstructure:"search_base_url"`
	OfferBaseURL   string        `mapstructure:"offer_base_url"`
	OfferTitle     string        `mapstructure:"offer_title"`
	ServiceTerm    string        `mapstructure:"service_term"`
	BrandTerm      string        `mapstructure:"brand_term"`
	RegionName     string        `mapstructure:"region_name"`
	Country        string        `mapstructure:"country"`
	Currency       string        `mapstructure:"currency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertingConfig defines notification delivery.
type AlertingConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Discord DiscordConfig `mapstructure:"discord"`
}

// DiscordConfig describes Discord DM delivery parameters.
type DiscordConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// ChartingConfig sets chart rendering behaviour.
type ChartingConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// MetricsConfig controls the optional prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOLDWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "goldwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_minute", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x676f6c64))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("source.keyword_url", "https://assets.g2g.com/offer/keyword.json")
	v.SetDefault("source.search_base_url", "https://sls.g2g.com/offer")
	v.SetDefault("source.offer_base_url", "https://www.g2g.com/offer")
	v.SetDefault("source.offer_title", "Grobbulus [US] - Alliance")
	v.SetDefault("source.service_term", "game-coins")
	v.SetDefault("source.brand_term", "wow-classic")
	v.SetDefault("source.region_name", "US")
	v.SetDefault("source.country", "US")
	v.SetDefault("source.currency", "USD")
	v.SetDefault("source.request_timeout", "10s")
	v.SetDefault("source.user_agent", "goldwatcher/1.0")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.discord.enabled", false)
	v.SetDefault("alerting.discord.api_base", "https://discord.com/api/v10")

	v.SetDefault("charting.width", 600)
	v.SetDefault("charting.height", 300)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9100")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Source.OfferTitle == "" {
		return fmt.Errorf("source.offer_title must be configured")
	}
	if c.Source.RequestTimeout <= 0 {
		return fmt.Errorf("source.request_timeout must be greater than zero")
	}
	if c.Charting.Width <= 0 || c.Charting.Height <= 0 {
		return fmt.Errorf("charting dimensions must be greater than zero")
	}
	if c.Alerting.Discord.Enabled && c.Alerting.Discord.BotToken == "" {
		return fmt.Errorf("alerting.discord.bot_token must be configured")
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr must be configured")
	}
	return nil
}

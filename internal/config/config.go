package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultStalenessHours is how long an event stays fresh after a check
	// before the next crawl pass re-fetches its detail page.
	DefaultStalenessHours = 72

	// DefaultCrawlConcurrency caps how many producers crawl at once.
	DefaultCrawlConcurrency = 4
)

// Config holds all configuration for concertron.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Labels  LabelsConfig  `mapstructure:"labels"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig selects and locates the event store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "sqlite" or "memory"
	Path    string `mapstructure:"path"`
}

// CrawlConfig holds crawl pass settings.
type CrawlConfig struct {
	StalenessHours int `mapstructure:"staleness_hours"`
	Concurrency    int `mapstructure:"concurrency"`
}

// StalenessWindow returns the staleness window as a duration.
func (c CrawlConfig) StalenessWindow() time.Duration {
	return time.Duration(c.StalenessHours) * time.Hour
}

// LabelsConfig locates the external label classification rule table.
type LabelsConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// NotifyConfig holds notification dispatch settings.
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Consumer   string `mapstructure:"consumer"`
	Home       string `mapstructure:"home"` // broadcast recipient, optional
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", filepath.Join(homeDir(), ".concertron", "concertron.db"))

	v.SetDefault("crawl.staleness_hours", DefaultStalenessHours)
	v.SetDefault("crawl.concurrency", DefaultCrawlConcurrency)

	v.SetDefault("labels.rules_file", filepath.Join(homeDir(), ".concertron", "rules.yaml"))

	v.SetDefault("notify.consumer", "discord")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.home", "")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".concertron"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("CONCERTRON")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("store.path", "CONCERTRON_STORE_PATH")
	_ = v.BindEnv("labels.rules_file", "CONCERTRON_RULES_FILE")
	_ = v.BindEnv("notify.webhook_url", "CONCERTRON_WEBHOOK_URL")
	_ = v.BindEnv("api.listen_addr", "CONCERTRON_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "CONCERTRON_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Missing config file is fine, defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must not be empty for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be \"sqlite\" or \"memory\", got %q", c.Store.Backend)
	}
	if c.Crawl.StalenessHours <= 0 {
		return fmt.Errorf("crawl.staleness_hours must be greater than 0")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be greater than 0")
	}
	if c.Notify.Consumer == "" {
		return fmt.Errorf("notify.consumer must not be empty")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

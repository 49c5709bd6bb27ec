// Package config loads the harvester's own process configuration (listen
// address, production mode, Apify actor ids) via viper, grounded on the
// teacher's pkg/config/viper.go InitConfig pattern. The operator-account
// cookies, proxy URL, and pacing preset the scraping core reads live in the
// external config table behind persistence.ConfigStore, not here.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the harvester process's own settings, as opposed to the
// runtime-tunable values the scraping core reads from persistence.ConfigStore.
type Config struct {
	HTTPAddr          string        `mapstructure:"http_addr"`
	Production        bool          `mapstructure:"production"`
	LogDevelopment    bool          `mapstructure:"log_development"`
	ApifyReplyActor   string        `mapstructure:"apify_reply_actor"`
	ApifyTimelineActor string       `mapstructure:"apify_timeline_actor"`
	DatabaseDSN       string        `mapstructure:"database_dsn"`
	ProgressSweepTTL  time.Duration `mapstructure:"progress_sweep_ttl"`
	DefaultMaxPosts   int           `mapstructure:"default_max_posts"`
}

// Load reads configuration from (in ascending priority) defaults, an
// optional config file, and HARVESTER_-prefixed environment variables.
func Load() (Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/harvester/")
	viper.AddConfigPath("$HOME/.harvester")

	viper.SetDefault("http_addr", ":8080")
	viper.SetDefault("production", false)
	viper.SetDefault("log_development", true)
	viper.SetDefault("apify_reply_actor", "apify/twitter-reply-scraper")
	viper.SetDefault("apify_timeline_actor", "apify/twitter-user-scraper")
	viper.SetDefault("database_dsn", "")
	viper.SetDefault("progress_sweep_ttl", 30*time.Minute)
	viper.SetDefault("default_max_posts", 20)

	viper.SetEnvPrefix("HARVESTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot run with.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr must not be empty")
	}
	if c.DefaultMaxPosts <= 0 {
		return fmt.Errorf("default_max_posts must be positive")
	}
	if c.ProgressSweepTTL <= 0 {
		return fmt.Errorf("progress_sweep_ttl must be positive")
	}
	return nil
}

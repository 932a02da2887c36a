// Package config loads feed-proxy configuration from defaults, an optional
// config file, FEED_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/logging"
	"github.com/Sternrassler/feedcache/pkg/pagination"
	"github.com/Sternrassler/feedcache/pkg/wordpress"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. FEED_BASE_URL.
const EnvPrefix = "FEED"

// Config is the complete feed-proxy configuration.
type Config struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	PageSize          int           `mapstructure:"page_size"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ResolveTimeout    time.Duration `mapstructure:"resolve_timeout"`

	MaxAssetEntries    int           `mapstructure:"max_asset_entries"`
	MaxAssetBytes      int64         `mapstructure:"max_asset_bytes"`
	MaxResponseEntries int           `mapstructure:"max_response_entries"`
	FreshnessWindow    time.Duration `mapstructure:"freshness_window"`
	StaleRetention     time.Duration `mapstructure:"stale_retention"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`

	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`
	LogPretty  bool   `mapstructure:"log_pretty"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "")
	v.SetDefault("user_agent", "feedcache/0.1.0")
	v.SetDefault("page_size", 20)
	v.SetDefault("max_concurrency", pagination.DefaultMaxConcurrency)
	v.SetDefault("requests_per_second", 5.0)
	v.SetDefault("burst", 10)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("resolve_timeout", pagination.DefaultResolveTimeout)

	v.SetDefault("max_asset_entries", cache.DefaultMaxEntries)
	v.SetDefault("max_asset_bytes", int64(cache.DefaultMaxAssetBytes))
	v.SetDefault("max_response_entries", cache.DefaultMaxEntries)
	v.SetDefault("freshness_window", cache.DefaultFreshnessWindow)
	v.SetDefault("stale_retention", cache.DefaultStaleRetentionWindow)
	v.SetDefault("sweep_interval", 10*time.Minute)

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v, decodes and validates the result.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.UserAgent, validation.Required),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.MaxConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ResolveTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MaxAssetEntries, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxAssetBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxResponseEntries, validation.Required, validation.Min(1)),
		validation.Field(&c.FreshnessWindow, validation.Required),
		validation.Field(&c.StaleRetention, validation.Required, validation.Min(c.FreshnessWindow)),
		validation.Field(&c.SweepInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.LogLevel, validation.In(toInterfaces(logging.Levels)...)),
	)
}

// CacheConfig maps c onto the cache manager configuration.
func (c Config) CacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.MaxAssetEntries = c.MaxAssetEntries
	cfg.MaxAssetBytes = c.MaxAssetBytes
	cfg.MaxResponseEntries = c.MaxResponseEntries
	cfg.FreshnessWindow = c.FreshnessWindow
	cfg.StaleRetentionWindow = c.StaleRetention
	return cfg
}

// GatewayConfig maps c onto the WordPress client configuration.
func (c Config) GatewayConfig() wordpress.Config {
	cfg := wordpress.DefaultConfig(c.BaseURL, c.UserAgent)
	cfg.RequestTimeout = c.RequestTimeout
	cfg.RequestsPerSecond = c.RequestsPerSecond
	cfg.Burst = c.Burst
	return cfg
}

// PaginationConfig maps c onto the controller configuration.
func (c Config) PaginationConfig() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.PageSize = c.PageSize
	cfg.MaxConcurrency = c.MaxConcurrency
	cfg.ResolveTimeout = c.ResolveTimeout
	return cfg
}

// LoggingConfig maps c onto the logger configuration.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	cfg.Service = "feed-proxy"
	return cfg
}

func absoluteURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	return nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

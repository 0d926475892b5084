// Package config loads and validates favicond configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Icon    IconConfig    `mapstructure:"icon"`
	Convert ConvertConfig `mapstructure:"convert"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// HTTPConfig configures outbound fetch behavior.
type HTTPConfig struct {
	IdleTimeoutSeconds int    `mapstructure:"idle_timeout_seconds"`
	MaxRedirects       int    `mapstructure:"max_redirects"`
	UserAgent          string `mapstructure:"user_agent"`
}

// CacheConfig sets the on-disk cache layout and freshness window.
type CacheConfig struct {
	Dir        string `mapstructure:"dir"`
	ScratchDir string `mapstructure:"scratch_dir"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// IconConfig governs response defaults.
type IconConfig struct {
	DefaultSize  int    `mapstructure:"default_size"`
	DefaultImage string `mapstructure:"default_image"`
	SelfPath     string `mapstructure:"self_path"`
}

// ConvertConfig describes the external image conversion tool.
type ConvertConfig struct {
	Command        string `mapstructure:"command"`
	Sizes          []int  `mapstructure:"sizes"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAVICOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.idle_timeout_seconds", 10)
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("http.user_agent", "favicond/0.1")
	v.SetDefault("cache.dir", "data/icons")
	v.SetDefault("cache.scratch_dir", "data/scratch")
	v.SetDefault("cache.ttl_seconds", 24*60*60)
	v.SetDefault("icon.default_size", 16)
	v.SetDefault("icon.default_image", "")
	v.SetDefault("icon.self_path", "/favicon.ico")
	v.SetDefault("convert.command", "convert")
	v.SetDefault("convert.sizes", []int{16, 32, 64})
	v.SetDefault("convert.timeout_seconds", 20)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.IdleTimeoutSeconds <= 0 {
		return fmt.Errorf("http.idle_timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("http.max_redirects must be >= 0")
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	if c.Icon.DefaultSize <= 0 {
		return fmt.Errorf("icon.default_size must be > 0")
	}
	if len(c.Convert.Sizes) == 0 {
		return fmt.Errorf("convert.sizes must not be empty")
	}
	return nil
}

// CacheTTL converts the configured TTL into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// IdleTimeout converts the configured per-socket timeout into a duration.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleTimeoutSeconds) * time.Second
}

// ConvertTimeout bounds one external conversion invocation.
func (c Config) ConvertTimeout() time.Duration {
	return time.Duration(c.Convert.TimeoutSeconds) * time.Second
}

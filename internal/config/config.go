// Package config loads service settings from defaults, an optional config
// file and the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting cmd/server needs.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration

	LogLevel string
	LogFile  string

	SimWorkers     int
	DiscountRate   float64
	PricingTimeout time.Duration

	// MaxPathSteps caps assets*paths*(steps+1) for one quote.
	MaxPathSteps int64
	// MaxInFlightPathSteps caps the same product summed over every quote
	// being priced.
	MaxInFlightPathSteps int64
}

var defaults = map[string]any{
	"port":                    "8080",
	"database_url":            "",
	"redis_url":               "",
	"cache_ttl":               "30s",
	"log_level":               "info",
	"log_file":                "",
	"sim_workers":             0,
	"discount_rate":           0.0,
	"pricing_timeout":         "60s",
	"max_path_steps":          int64(50_000_000),
	"max_inflight_path_steps": int64(200_000_000),
}

// Load reads the settings. path may be empty; when set, the file must
// exist. Environment variables use the upper-case key names (PORT,
// DATABASE_URL, SIM_WORKERS, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:                 v.GetString("port"),
		DatabaseURL:          v.GetString("database_url"),
		RedisURL:             v.GetString("redis_url"),
		CacheTTL:             v.GetDuration("cache_ttl"),
		LogLevel:             v.GetString("log_level"),
		LogFile:              v.GetString("log_file"),
		SimWorkers:           v.GetInt("sim_workers"),
		DiscountRate:         v.GetFloat64("discount_rate"),
		PricingTimeout:       v.GetDuration("pricing_timeout"),
		MaxPathSteps:         v.GetInt64("max_path_steps"),
		MaxInFlightPathSteps: v.GetInt64("max_inflight_path_steps"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("config: port is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: cache_ttl must be positive, got %s", c.CacheTTL)
	}
	if c.PricingTimeout < 0 {
		return fmt.Errorf("config: pricing_timeout must not be negative, got %s", c.PricingTimeout)
	}
	if c.MaxPathSteps < 0 || c.MaxInFlightPathSteps < 0 {
		return fmt.Errorf("config: work limits must not be negative")
	}
	return nil
}

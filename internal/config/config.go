// Package config loads and validates client config from the environment using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	minRequestTimeout = time.Second
	maxRequestTimeout = 2 * time.Minute
)

// Config holds client configuration loaded from the environment.
type Config struct {
	// APIURL is the custody backend base URL.
	APIURL string `mapstructure:"NFTVAULT_API_URL"`
	// RequestTimeout bounds every backend request (1s to 2m).
	RequestTimeout time.Duration `mapstructure:"NFTVAULT_REQUEST_TIMEOUT"`
	// RetryWindow is how long a failed withdrawal may be retried with the same session.
	RetryWindow time.Duration `mapstructure:"NFTVAULT_RETRY_WINDOW"`

	// Launch context, used when no --launch-url is given.
	UserID   string `mapstructure:"NFTVAULT_USER_ID"`
	QueryID  string `mapstructure:"NFTVAULT_QUERY_ID"`
	InitData string `mapstructure:"NFTVAULT_INIT_DATA"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogDev   bool   `mapstructure:"LOG_DEV"`
	// LogFile is a strftime pattern for the rotating log file.
	LogFile string `mapstructure:"LOG_FILE"`
}

// Load builds and validates Config from the environment. A .env file, if any,
// must already have been loaded into the environment by the caller.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("NFTVAULT_API_URL", "http://localhost:10000")
	v.SetDefault("NFTVAULT_REQUEST_TIMEOUT", 20*time.Second)
	v.SetDefault("NFTVAULT_RETRY_WINDOW", 2*time.Minute)
	v.SetDefault("NFTVAULT_USER_ID", "")
	v.SetDefault("NFTVAULT_QUERY_ID", "")
	v.SetDefault("NFTVAULT_INIT_DATA", "")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("LOG_DEV", false)
	v.SetDefault("LOG_FILE", defaultLogFile())

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	u, err := url.Parse(cfg.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("config: NFTVAULT_API_URL must be an http(s) URL")
	}
	if cfg.RequestTimeout < minRequestTimeout || cfg.RequestTimeout > maxRequestTimeout {
		return nil, errors.New("config: NFTVAULT_REQUEST_TIMEOUT must be between 1s and 2m")
	}
	if cfg.RetryWindow <= 0 {
		return nil, errors.New("config: NFTVAULT_RETRY_WINDOW must be positive")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		if cfg.LogDev {
			cfg.LogLevel = "debug"
		}
	}

	return &cfg, nil
}

func defaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".nftvault", "logs", "nftvault.%Y%m%d.log")
}

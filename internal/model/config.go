package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Default redirect endpoint for the loopback OAuth flow. The path must be
// non-root so stray requests to "/" are never mistaken for a callback.
const DefaultRedirectURI = "http://127.0.0.1:8765/oauth/callback"

// DefaultStorePath is where the credential store lives unless overridden.
const DefaultStorePath = "data/mail.db"

// EngineConfig is the engine-level configuration, resolved from an optional
// YAML config file plus environment overrides.
type EngineConfig struct {
	// StorePath is the SQLite database location. Env: MAIL_DB_PATH.
	StorePath string `mapstructure:"store_path"`

	// RedirectURI is the loopback redirect endpoint registered with the
	// OAuth clients. Env: MAIL_REDIRECT_URI.
	RedirectURI string `mapstructure:"redirect_uri"`

	// CallbackTimeoutSec bounds the wait for the browser redirect.
	CallbackTimeoutSec int `mapstructure:"callback_timeout_sec"`

	// ReadTimeoutSec bounds each read on the accepted callback connection.
	ReadTimeoutSec int `mapstructure:"read_timeout_sec"`

	// GoogleClientID / GoogleClientSecret are the environment fallback for
	// Google client credentials, consulted when the store has none.
	// Env: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET.
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
}

// CallbackTimeout returns the wait for the browser redirect as a Duration.
func (c *EngineConfig) CallbackTimeout() time.Duration {
	return time.Duration(c.CallbackTimeoutSec) * time.Second
}

// ReadTimeout returns the per-read bound on the callback connection as a
// Duration.
func (c *EngineConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mail-engine/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mail-engine", "config.yaml")
}

// LoadEngineConfig reads configuration from the given YAML file path using
// Viper. A missing file is fine; defaults and environment overrides still
// apply.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("store_path", DefaultStorePath)
	v.SetDefault("redirect_uri", DefaultRedirectURI)
	v.SetDefault("callback_timeout_sec", 180)
	v.SetDefault("read_timeout_sec", 20)

	_ = v.BindEnv("store_path", "MAIL_DB_PATH")
	_ = v.BindEnv("redirect_uri", "MAIL_REDIRECT_URI")
	_ = v.BindEnv("google_client_id", "GOOGLE_CLIENT_ID")
	_ = v.BindEnv("google_client_secret", "GOOGLE_CLIENT_SECRET")

	if err := v.ReadInConfig(); err != nil {
		_, pathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !pathErr && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &EngineConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

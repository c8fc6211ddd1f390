// Package config loads process configuration from the environment. It only
// parameterizes how the listeners and the account store are opened; nothing
// in the relay core reads the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration, populated from RELAY_* variables.
type Config struct {
	ChatAddr  string `envconfig:"CHAT_ADDR" default:":12345"`
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	AssetsDir string `envconfig:"ASSETS_DIR"`
	StorePath string `envconfig:"STORE_PATH" default:"accounts.db"`

	TLSCert string `envconfig:"TLS_CERT"`
	TLSKey  string `envconfig:"TLS_KEY"`

	AllowedOrigins    []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
	MaxMessageSize    int64         `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	RateLimitBurst    int           `envconfig:"RATE_LIMIT_BURST" default:"10"`
	RateLimitInterval time.Duration `envconfig:"RATE_LIMIT_INTERVAL" default:"1s"`

	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads the configuration from the environment. TLS is all-or-nothing:
// a certificate without its key (or the reverse) is a configuration error.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("relay", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return Config{}, fmt.Errorf("config: RELAY_TLS_CERT and RELAY_TLS_KEY must be set together")
	}

	return cfg, nil
}

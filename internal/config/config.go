// Package config loads the environment-variable configuration surface
// described in spec §6, using struct-tag parsing the way the renderer
// app parses its own (much smaller) config.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"0.0.0.0"`

	TargetSite string `env:"TARGET_SITE" envDefault:""`

	ProxyHost        string `env:"PROXY_HOST" envDefault:""`
	ProxyPort        string `env:"PROXY_PORT" envDefault:""`
	ProxyProtocol    string `env:"PROXY_PROTOCOL" envDefault:"socks5"`
	ProxyBaseUser    string `env:"PROXY_BASE_USER" envDefault:""`
	ProxyPassword    string `env:"PROXY_PASSWORD" envDefault:""`
	ProxyZone        string `env:"PROXY_ZONE" envDefault:"custom"`
	ProxyRegion      string `env:"PROXY_REGION" envDefault:"US"`
	ProxySessionTime int    `env:"PROXY_SESSION_TIME" envDefault:"120"`

	UseProxy bool `env:"USE_PROXY" envDefault:"true"`

	SessionTTLMinutes int    `env:"SESSION_TTL_MINUTES" envDefault:"30"`
	SessionCookieName string `env:"SESSION_COOKIE_NAME" envDefault:"proxy_session"`

	Env string `env:"NODE_ENV" envDefault:"development"`

	SentryDSN string `env:"SENTRY_DSN" envDefault:""`
}

// Load parses environment variables into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.UseProxy {
		if c.ProxyHost == "" || c.ProxyPort == "" {
			return fmt.Errorf("PROXY_HOST and PROXY_PORT are required when USE_PROXY is true")
		}
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}
	return nil
}

// IsProduction reports whether the Secure cookie flag and suppressed debug
// logging should be in effect.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// SessionTTL is the configured session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// ProxySessionTimeDuration is the SOCKS5 sticky-session window.
func (c *Config) ProxySessionTimeDuration() time.Duration {
	return time.Duration(c.ProxySessionTime) * time.Minute
}

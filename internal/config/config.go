// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads and validates the accounts service configuration.
//
// Values are layered in increasing precedence: built-in defaults, the YAML
// config file, ACCOUNTS_* environment variables, then explicitly set flags.
package config

import (
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/logging"
)

// Store backends.
const (
	BackendDocstore = "docstore"
	BackendPostgres = "postgres"
)

// Config is the complete service configuration.
type Config struct {
	Log          LogConfig          `koanf:"log" json:"log,omitempty" yaml:"log"`
	HTTP         HTTPConfig         `koanf:"http" json:"http,omitempty" yaml:"http"`
	Metrics      MetricsConfig      `koanf:"metrics" json:"metrics,omitempty" yaml:"metrics"`
	Store        StoreConfig        `koanf:"store" json:"store,omitempty" yaml:"store"`
	Database     DatabaseConfig     `koanf:"database" json:"database,omitempty" yaml:"database"`
	Session      SessionConfig      `koanf:"session" json:"session,omitempty" yaml:"session"`
	Password     PasswordConfig     `koanf:"password" json:"password,omitempty" yaml:"password"`
	Subscription SubscriptionConfig `koanf:"subscription" json:"subscription,omitempty" yaml:"subscription"`
	Crypto       CryptoConfig       `koanf:"crypto" json:"crypto,omitempty" yaml:"crypto"`
}

// LogConfig controls log output.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" yaml:"format" jsonschema:"enum=json,enum=text,default=json"`
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
}

// HTTPConfig controls the public HTTP listener.
type HTTPConfig struct {
	Addr    string   `koanf:"addr" json:"addr,omitempty" yaml:"addr" jsonschema:"default=:8080"`
	Origins []string `koanf:"origins" json:"origins,omitempty" yaml:"origins" jsonschema:"description=Glob patterns of allowed CORS origins"`
}

// MetricsConfig controls the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" yaml:"addr" jsonschema:"default=127.0.0.1:9100"`
}

// StoreConfig selects and configures the account storage backend.
type StoreConfig struct {
	Backend string        `koanf:"backend" json:"backend,omitempty" yaml:"backend" jsonschema:"enum=docstore,enum=postgres,default=docstore"`
	URL     string        `koanf:"url" json:"url,omitempty" yaml:"url" jsonschema:"description=Base URL of the document store"`
	Secret  string        `koanf:"secret" json:"secret,omitempty" yaml:"secret" jsonschema:"description=Shared secret sent as the auth query parameter"`
	Timeout time.Duration `koanf:"timeout" json:"timeout,omitempty" yaml:"timeout"`
	Retries int           `koanf:"retries" json:"retries,omitempty" yaml:"retries" jsonschema:"minimum=0"`
}

// DatabaseConfig configures the PostgreSQL backend.
type DatabaseConfig struct {
	URL string `koanf:"url" json:"url,omitempty" yaml:"url" jsonschema:"description=PostgreSQL connection URL"`
}

// SessionConfig controls web sessions.
type SessionConfig struct {
	TTL    time.Duration `koanf:"ttl" json:"ttl,omitempty" yaml:"ttl"`
	Secure bool          `koanf:"secure" json:"secure,omitempty" yaml:"secure"`
}

// PasswordConfig selects the password policy.
type PasswordConfig struct {
	Policy string `koanf:"policy" json:"policy,omitempty" yaml:"policy" jsonschema:"enum=strict,enum=simple,default=strict"`
}

// SubscriptionConfig controls subscription lifetimes.
type SubscriptionConfig struct {
	Validity time.Duration `koanf:"validity" json:"validity,omitempty" yaml:"validity"`
}

// CryptoConfig holds the reversible cipher secret. Empty disables the cipher.
type CryptoConfig struct {
	Key string `koanf:"key" json:"key,omitempty" yaml:"key"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Log:          LogConfig{Format: "json", Level: "info"},
		HTTP:         HTTPConfig{Addr: ":8080"},
		Metrics:      MetricsConfig{Addr: "127.0.0.1:9100"},
		Store:        StoreConfig{Backend: BackendDocstore, Timeout: 10 * time.Second, Retries: 2},
		Session:      SessionConfig{TTL: 24 * time.Hour},
		Password:     PasswordConfig{Policy: auth.PolicyStrict},
		Subscription: SubscriptionConfig{Validity: 720 * time.Hour},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "must be debug, info, warn or error")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return invalid("http.addr", "is required")
	}
	if c.Metrics.Addr != "" && c.Metrics.Addr == c.HTTP.Addr {
		return invalid("metrics.addr", "must differ from http.addr")
	}

	switch c.Store.Backend {
	case BackendDocstore:
		if c.Store.URL == "" {
			return invalid("store.url", "is required for the docstore backend")
		}
		if c.Store.Secret == "" {
			return invalid("store.secret", "is required for the docstore backend")
		}
		if c.Store.Timeout <= 0 {
			return invalid("store.timeout", "must be positive")
		}
		if c.Store.Retries < 0 {
			return invalid("store.retries", "must not be negative")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "is required for the postgres backend")
		}
	default:
		return invalid("store.backend", "must be docstore or postgres")
	}

	if c.Session.TTL <= 0 {
		return invalid("session.ttl", "must be positive")
	}
	if _, err := auth.PolicyByName(c.Password.Policy); err != nil {
		return invalid("password.policy", "must be strict or simple")
	}
	if c.Subscription.Validity <= 0 {
		return invalid("subscription.validity", "must be positive")
	}
	return nil
}

// LogOptions converts the log section for logging.Setup.
func (c *Config) LogOptions() logging.Options {
	// Validate has already rejected unknown levels.
	level, _ := logging.ParseLevel(c.Log.Level) //nolint:errcheck // validated
	return logging.Options{Format: c.Log.Format, Level: level}
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, msg)
}

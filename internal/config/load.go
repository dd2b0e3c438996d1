// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/accounts/internal/xdg"
)

// EnvPrefix prefixes environment overrides. ACCOUNTS_STORE_SECRET sets store.secret.
const EnvPrefix = "ACCOUNTS_"

// defaultValues flattens Defaults into koanf keys. Its key set is also the
// set of keys accepted from the environment and flags.
func defaultValues() map[string]any {
	d := Defaults()
	return map[string]any{
		"log.format":            d.Log.Format,
		"log.level":             d.Log.Level,
		"http.addr":             d.HTTP.Addr,
		"http.origins":          d.HTTP.Origins,
		"metrics.addr":          d.Metrics.Addr,
		"store.backend":         d.Store.Backend,
		"store.url":             d.Store.URL,
		"store.secret":          d.Store.Secret,
		"store.timeout":         d.Store.Timeout,
		"store.retries":         d.Store.Retries,
		"database.url":          d.Database.URL,
		"session.ttl":           d.Session.TTL,
		"session.secure":        d.Session.Secure,
		"password.policy":       d.Password.Policy,
		"subscription.validity": d.Subscription.Validity,
		"crypto.key":            d.Crypto.Key,
	}
}

// BindFlags registers the non-secret settings as flags.
// Flag names are keys with '.' replaced by '-'.
func BindFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("http-addr", d.HTTP.Addr, "public HTTP listen address")
	flags.StringSlice("http-origins", d.HTTP.Origins, "allowed CORS origin patterns")
	flags.String("metrics-addr", d.Metrics.Addr, "observability listen address (empty to disable)")
	flags.String("store-backend", d.Store.Backend, "storage backend (docstore or postgres)")
	flags.String("store-url", d.Store.URL, "document store base URL")
	flags.Duration("store-timeout", d.Store.Timeout, "document store request timeout")
	flags.Int("store-retries", d.Store.Retries, "retries for idempotent document store requests")
	flags.Duration("session-ttl", d.Session.TTL, "web session lifetime")
	flags.Bool("session-secure", d.Session.Secure, "mark session cookies Secure")
	flags.String("password-policy", d.Password.Policy, "password policy (strict or simple)")
	flags.Duration("subscription-validity", d.Subscription.Validity, "subscription validity period")
}

// Load assembles and validates the configuration. An empty path falls back
// to the XDG config file when one exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := Decode(path, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode assembles the configuration like Load without validating it.
// Commands that need only a few keys check those themselves.
func Decode(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	known := defaultValues()
	for key, val := range known {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if err := loadFile(k, path, explicit); err != nil {
		return nil, err
	}

	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key := envKey(name)
		if _, ok := known[key]; !ok {
			continue
		}
		var v any = val
		if key == "http.origins" {
			v = splitList(val)
		}
		if err := k.Set(key, v); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", name).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := strings.ReplaceAll(f.Name, "-", ".")
			if _, ok := known[key]; !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// envKey maps ACCOUNTS_STORE_SECRET to store.secret.
func envKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", ".")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

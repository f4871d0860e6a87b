// Package config loads the orchestrator's runtime settings from the
// environment via koanf, the way the teacher's pkg/config loads application
// settings: a typed struct populated from a koanf instance, with documented
// defaults. This package scopes down to a handful of scalar settings; of
// these, the conductor reads RetryMaxAttempts and RetryBackoffMax, and no
// other package reads LogLevel, LogJSON or ExpressionLang — see DESIGN.md
// for what of the
// teacher's fuller config manager (hot-reload, provider watching, sensitive
// value redaction) was left out and why.
package config

import (
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix every environment variable this package reads
// must carry, stripped before the key reaches koanf (e.g. ORQUESTA_LOG_LEVEL
// becomes "log_level").
const EnvPrefix = "ORQUESTA_"

// Config is the orchestrator's runtime configuration.
type Config struct {
	LogLevel         string        `koanf:"log_level"`
	LogJSON          bool          `koanf:"log_json"`
	ExpressionLang   string        `koanf:"expression_lang"`
	RetryMaxAttempts int           `koanf:"retry_max_attempts"`
	RetryBackoffMax  time.Duration `koanf:"retry_backoff_max"`
}

// Default returns the built-in configuration, used whenever the
// environment supplies no override.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		LogJSON:          false,
		ExpressionLang:   "cel",
		RetryMaxAttempts: 3,
		RetryBackoffMax:  time.Minute,
	}
}

// Load builds a Config starting from Default() and overlaying any
// ORQUESTA_-prefixed environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			return normalizeEnvKey(k), v
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: failed to load environment: %w", err)
	}
	overrides := &Config{}
	if err := k.Unmarshal("", overrides); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal environment overrides: %w", err)
	}
	cfg := Default()
	if err := mergo.Merge(cfg, overrides, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: failed to merge environment overrides: %w", err)
	}
	return cfg, nil
}

// normalizeEnvKey turns "ORQUESTA_LOG_LEVEL" into "log_level".
func normalizeEnvKey(k string) string {
	return strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
}

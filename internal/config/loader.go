package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "SIMON_"
	configFileEnv = "SIMON_CONFIG"
)

// bareEnv maps the unprefixed variable names used by existing deployments
// to config keys.
var bareEnv = map[string]string{
	"PORT":        "port",
	"MONGODB_URI": "mongodb_uri",
	"MONGO_URI":   "mongodb_uri",
	"BROKER_URL":  "broker_url",
	"START_TOPIC": "start_topic",
	"SCORE_TOPIC": "score_topic",
	"LOG_LEVEL":   "log_level",
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if SIMON_CONFIG is set
//  3. bare env names (PORT, MONGODB_URI, BROKER_URL, START_TOPIC, SCORE_TOPIC)
//  4. env (prefix SIMON_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(configFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	bare := env.Provider("", ".", func(s string) string {
		return bareEnv[s]
	})
	if err := k.Load(bare, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// SIMON_QUEUE_SIZE -> queue_size; underscores are kept to match the flat koanf tags.
	prefixed := env.Provider(envPrefix, ".", func(s string) string {
		if s == configFileEnv {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

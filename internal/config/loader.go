package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if BIDFINDER_CONFIG is set
//  3. env (prefix BIDFINDER_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("BIDFINDER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Map env keys like BIDFINDER_SAM_API_KEY -> sam_api_key (flat keys,
	// underscores preserved to match koanf tags on the struct).
	envProvider := env.Provider("BIDFINDER_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "bidfinder_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database_url must not be empty")
	}
	if cfg.SAMInterRequestDelay < 1 {
		cfg.SAMInterRequestDelay = 1
	}
	if cfg.FreshnessTTLMinutes <= 0 {
		cfg.FreshnessTTLMinutes = 15
	}
	return &cfg, nil
}

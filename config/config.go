// Package config loads client configuration from defaults, an optional YAML
// file and DYNAGO_* environment variables, in ascending priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment variables read during Load.
const EnvPrefix = "DYNAGO_"

// Load builds the configuration. Pass an empty path to skip the YAML file;
// a non-empty path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %q: %w", path, err)
		}
	}

	if err := k.Load(envprovider.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the struct-level constraints declared on Config.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("field %s failed on the %q constraint", first.Namespace(), first.Tag())
		}
		return err
	}
	return nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"region.name":        "us-east-1",
		"region.endpoint":    "",
		"region.endpoints":   "",
		"http.secure":        true,
		"http.port":          0,
		"http.timeout":       70 * time.Second,
		"http.poolsize":      10,
		"http.ratelimit":     0.0,
		"retry.max":          10,
		"retry.maxdelay":     60 * time.Second,
		"validate.checksums": true,
		"log.level":          "info",
		"log.pretty":         false,
	}
	return k.Load(confmap.Provider(defaults, "."), nil)
}

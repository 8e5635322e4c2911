package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every Tapestry environment variable.
const EnvPrefix = "TAPESTRY_"

// ParseEnv loads configuration from environment variables using the exact
// names in the struct tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParsePrefixedEnv loads configuration whose tags omit the shared
// TAPESTRY_ prefix, so `env:"API_ADDR"` reads TAPESTRY_API_ADDR.
func ParsePrefixedEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (Transport, Store) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the client is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Lumina client.
type Config struct {

	// Identity service settings
	APIBaseURL string `env:"LUMINA_API_URL" envDefault:"http://localhost:8000"`

	// HTTPTimeout bounds every single HTTP exchange issued by the transport.
	HTTPTimeout time.Duration `env:"LUMINA_HTTP_TIMEOUT" envDefault:"30s"`

	// CredentialsPath is the file holding the cached token pair and profile.
	// Empty means "<user config dir>/lumina/credentials.json".
	CredentialsPath string `env:"LUMINA_CREDENTIALS_FILE"`

	// RedisURL selects the Redis credential-store backend when set.
	// Used for shared development environments; the file store is the default.
	RedisURL string `env:"LUMINA_REDIS_URL"`

	Debug bool `env:"LUMINA_DEBUG" envDefault:"false"`

	// Development identity server (lumina dev-server)
	DevServerPort   string `env:"LUMINA_DEV_PORT"   envDefault:"8000"`
	DevServerSecret string `env:"LUMINA_DEV_SECRET" envDefault:"lumina-dev-secret"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// Resolve the default credentials path lazily: env tags cannot expand
	// the per-user configuration directory.
	if cfg.CredentialsPath == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("config: failed to resolve user config dir: %w", err)
		}
		cfg.CredentialsPath = filepath.Join(base, "lumina", "credentials.json")
	}

	return cfg, nil
}

// Package config loads server configuration from environment variables.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config contains all server configuration parameters.
//
// Every field has an env tag so the whole struct is populated by a single
// env.Parse call. JWT_SECRET has no default on purpose: the server refuses to
// start without one rather than falling back to a guessable signing key.
type Config struct {
	Port         int    `env:"PORT" envDefault:"8080"`
	DBPath       string `env:"DB_PATH" envDefault:"data/snippethub.db"`
	JWTSecret    string `env:"JWT_SECRET"`
	BcryptCost   int    `env:"BCRYPT_COST" envDefault:"12"`
	SecureCookie bool   `env:"SECURE_COOKIE" envDefault:"false"`
}

// New loads and validates configuration from the environment.
func New() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: invalid PORT %d", cfg.Port)
	}

	return &cfg, nil
}

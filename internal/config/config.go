// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the bets daemon.
type Config struct {
	HTTPAddr string `env:"BETS_HTTP_ADDR,default=:8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	ProviderURL     string        `env:"DRAW_PROVIDER_URL,default=https://api.guidi.dev.br/loteria"`
	ProviderTimeout time.Duration `env:"DRAW_PROVIDER_TIMEOUT,default=10s"`
	ProviderRPS     float64       `env:"DRAW_PROVIDER_RPS,default=5"`

	RulesFile        string `env:"BETS_RULES_FILE"`
	SweepSchedule    string `env:"BETS_SWEEP_SCHEDULE,default=@every 10m"`
	SweepBatchSize   int    `env:"BETS_SWEEP_BATCH_SIZE,default=200"`
	BatchConcurrency int    `env:"BETS_RECONCILE_CONCURRENCY,default=4"`

	JWTSecret string  `env:"JWT_SECRET"`
	RateLimit float64 `env:"BETS_RATE_LIMIT,default=20"`
	RateBurst int     `env:"BETS_RATE_BURST,default=40"`

	CORSOrigins string `env:"BETS_CORS_ORIGINS,default=*"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// Load reads envFile (if it exists) into the environment and decodes Config from it.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env (%s): %w", envFile, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("BETS_HTTP_ADDR is required")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("DRAW_PROVIDER_TIMEOUT must be positive")
	}
	if c.SweepBatchSize < 0 || c.BatchConcurrency < 0 {
		return fmt.Errorf("sweep batch size and reconcile concurrency must not be negative")
	}
	return nil
}

// DevMode reports whether authentication falls back to trusted identity headers.
func (c Config) DevMode() bool {
	return c.JWTSecret == ""
}

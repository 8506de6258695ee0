package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every externally tunable setting for the process.
// Tags:
//
//	env: environment variable name
//	envDefault: value used when the variable is unset
type Config struct {
	Addr string `env:"WS_ADDR" envDefault:":3002"`

	UpstreamURL string `env:"UPSTREAM_URL,required"`

	MongoURI      string `env:"MONGO_URI,required"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"exchange_rates"`

	// Comma-separated, order defines asset id assignment (1-based).
	AssetList string `env:"ASSET_LIST,required"`

	IngestWorkers  int           `env:"INGEST_WORKERS" envDefault:"4"`
	IngestInterval time.Duration `env:"INGEST_INTERVAL" envDefault:"500ms"`
	HistoryWindow  time.Duration `env:"HISTORY_WINDOW" envDefault:"30m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Assets splits AssetList on commas, trimming whitespace and dropping
// empty entries, preserving order.
func (c *Config) Assets() []string {
	var names []string
	for _, a := range strings.Split(c.AssetList, ",") {
		trimmed := strings.TrimSpace(a)
		if trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// LoadConfig loads an optional .env file, then parses environment
// variables into a Config and validates it. A missing .env file is not
// an error: production deployments set real environment variables.
func LoadConfig(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate enforces the range, enum and required-field checks the
// loose env-tag parsing can't express on its own.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("WS_ADDR is required")
	}
	if len(c.Assets()) == 0 {
		return fmt.Errorf("ASSET_LIST must name at least one asset")
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be > 0, got %d", c.IngestWorkers)
	}
	if c.IngestInterval <= 0 {
		return fmt.Errorf("INGEST_INTERVAL must be > 0, got %s", c.IngestInterval)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be > 0, got %s", c.HistoryWindow)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "text": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of json, text, pretty (got %q)", c.LogFormat)
	}
	return nil
}

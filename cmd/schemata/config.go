package main

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config is read from the environment.
type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	Dialect       string `env:"SCHEMATA_DIALECT" envDefault:"postgres"`
	Dir           string `env:"SCHEMATA_DIR" envDefault:"migrations"`
	Table         string `env:"SCHEMATA_TABLE" envDefault:"schema_version"`
	NoTransaction bool   `env:"SCHEMATA_NO_TX" envDefault:"false"`
	LogFormat     string `env:"SCHEMATA_LOG_FORMAT" envDefault:"text"`
	LogLevel      string `env:"SCHEMATA_LOG_LEVEL" envDefault:"info"`
}

func loadConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

func (c Config) logLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package monitoring holds the process-wide structured logger and
// Prometheus metric registry shared by every component.
package monitoring

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig configures the root logger built by NewLogger.
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text, pretty
}

// NewLogger builds the root structured logger. Every component logger
// is derived from it via .With().Str("component", ...).Logger() so log
// lines carry a consistent set of base fields.
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).With().
		Timestamp().
		Str("service", "exchange-rate-ws").
		Logger()
}

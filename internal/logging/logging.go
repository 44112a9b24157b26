// Package logging builds the application zerolog logger from configuration.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"backtest-lab/internal/config"
)

// New builds a logger for the given configuration. Unknown levels fall back
// to info; any format other than "json" selects the console writer.
func New(cfg config.Logging) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	return logger.Level(level).With().Timestamp().Logger()
}

// Package logger builds the zerolog.Logger used throughout the core,
// grounded on the teacher's use of github.com/rs/zerolog directly in its
// expression-executor code.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New parses level (as accepted by zerolog.ParseLevel — "debug", "info",
// "warn", "error", ...) and returns a logger writing to stderr, falling
// back to info on an unrecognized level.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

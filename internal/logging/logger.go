// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "SMARTFILTER_LOG_LEVEL"

// EnvLogFormat selects "json" output instead of the console writer.
const EnvLogFormat = "SMARTFILTER_LOG_FORMAT"

// Init initializes the global logger writing to stderr.
//
// The level comes from SMARTFILTER_LOG_LEVEL if set, otherwise from level:
// debug, info, warn, error (default: info).
func Init(level string) {
	InitWithWriter(os.Stderr, level)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(w io.Writer, level string) {
	if env := os.Getenv(EnvLogLevel); env != "" {
		level = env
	}
	zerolog.SetGlobalLevel(ParseLevel(level))

	if strings.EqualFold(os.Getenv(EnvLogFormat), "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name onto a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

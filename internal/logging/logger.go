package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by Init.
const (
	LevelEnv  = "ASTRO_LOG_LEVEL"
	FormatEnv = "ASTRO_LOG_FORMAT"
)

// Init initializes the global logger from environment variables.
// ASTRO_LOG_LEVEL: trace, debug, info, warn, error (default: info).
// ASTRO_LOG_FORMAT: "json" writes raw JSON lines (used in Lambda, where
// CloudWatch indexes the fields); anything else uses the console writer.
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(LevelEnv)))

	if strings.EqualFold(os.Getenv(FormatEnv), "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
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
